package tracer

// Config defines tracing settings.
type Config struct {
	// ServiceName is reported as service.name.
	ServiceName string `yaml:"service_name" envconfig:"TRACER_SERVICE_NAME"`

	// AppEnv is reported as deployment.environment.
	AppEnv string `yaml:"app_env" envconfig:"APP_ENV"`

	// EnableExport ships spans through OTLP over HTTP. The exporter honours
	// the standard OTEL_EXPORTER_OTLP_* variables unless Endpoint is set.
	EnableExport bool `yaml:"enable_export" envconfig:"TRACER_ENABLE_EXPORT"`

	// Endpoint is the host:port of the OTLP collector.
	Endpoint string `yaml:"endpoint" envconfig:"TRACER_ENDPOINT"`

	// Insecure disables TLS towards Endpoint.
	Insecure bool `yaml:"insecure" envconfig:"TRACER_INSECURE"`
}
