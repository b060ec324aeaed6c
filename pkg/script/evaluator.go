package script

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/Aleph-Alpha/amqpconnector/pkg/message"
)

// ErrUnresolved is returned when an expression produces no value.
var ErrUnresolved = errors.New("expression did not resolve to a value")

// Scope is what an expression can see.
type Scope struct {
	Message *message.Message
	// Vars holds pipeline scoped variables.
	Vars map[string]interface{}
}

// Evaluator resolves dynamic strings. Static values must be returned as is.
type Evaluator interface {
	Evaluate(ctx context.Context, value DynamicString, scope Scope) (string, error)
}

// TemplateEvaluator evaluates expressions as text/template pipelines. The
// expression "#[ .attributes.properties.replyTo ]" is run as the template
// "{{ .attributes.properties.replyTo }}"; bodies that already contain "{{"
// are used verbatim. The template data exposes payload, attributes (the
// map form of message.Attributes), correlationId and vars. Missing map keys
// are errors.
type TemplateEvaluator struct {
	funcs template.FuncMap

	mu    sync.RWMutex
	cache map[string]*template.Template
}

// NewTemplateEvaluator returns an evaluator with the given extra functions.
func NewTemplateEvaluator(funcs template.FuncMap) *TemplateEvaluator {
	merged := template.FuncMap{
		"lower":      strings.ToLower,
		"upper":      strings.ToUpper,
		"trim":       strings.TrimSpace,
		"trimPrefix": func(prefix, s string) string { return strings.TrimPrefix(s, prefix) },
		"default": func(fallback string, v interface{}) string {
			if v == nil {
				return fallback
			}
			if s := fmt.Sprint(v); s != "" {
				return s
			}
			return fallback
		},
	}
	for k, v := range funcs {
		merged[k] = v
	}
	return &TemplateEvaluator{funcs: merged, cache: make(map[string]*template.Template)}
}

// Evaluate implements Evaluator.
func (e *TemplateEvaluator) Evaluate(ctx context.Context, value DynamicString, scope Scope) (string, error) {
	if !value.IsScript() {
		return string(value), nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpl, err := e.template(value.Body())
	if err != nil {
		return "", fmt.Errorf("parse expression %q: %w", value, err)
	}

	var out strings.Builder
	if err := tmpl.Execute(&out, templateData(scope)); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrUnresolved, value, err)
	}

	result := strings.TrimSpace(out.String())
	if result == "" || result == "<no value>" {
		return "", fmt.Errorf("%w: %q", ErrUnresolved, value)
	}
	return result, nil
}

func (e *TemplateEvaluator) template(body string) (*template.Template, error) {
	e.mu.RLock()
	tmpl, ok := e.cache[body]
	e.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	text := body
	if !strings.Contains(body, "{{") {
		text = "{{ " + body + " }}"
	}
	tmpl, err := template.New("expr").Funcs(e.funcs).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[body] = tmpl
	e.mu.Unlock()
	return tmpl, nil
}

func templateData(scope Scope) map[string]interface{} {
	data := map[string]interface{}{
		"vars": scope.Vars,
	}
	if scope.Vars == nil {
		data["vars"] = map[string]interface{}{}
	}
	if msg := scope.Message; msg != nil {
		data["payload"] = msg.Payload()
		data["attributes"] = msg.Attributes.AsMap()
		data["correlationId"] = msg.CorrelationID()
	} else {
		data["payload"] = nil
		data["attributes"] = map[string]interface{}{}
		data["correlationId"] = ""
	}
	return data
}
