package rabbit

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Standardized broker errors. TranslateError maps raw client errors onto
// these, and every typed error below exposes the translated sentinel through
// Unwrap so callers can test with errors.Is.
var (
	ErrConnectionFailed   = errors.New("connection failed")
	ErrConnectionLost     = errors.New("connection lost")
	ErrConnectionForced   = errors.New("connection forced")
	ErrClosed             = errors.New("channel or connection closed")
	ErrAccessRefused      = errors.New("access refused")
	ErrNotFound           = errors.New("not found")
	ErrResourceLocked     = errors.New("resource locked")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrContentTooLarge    = errors.New("content too large")
	ErrNoRoute            = errors.New("no route")
	ErrChannelError       = errors.New("channel error")
	ErrNotAllowed         = errors.New("not allowed")
	ErrNotImplemented     = errors.New("not implemented")
	ErrInternalError      = errors.New("internal error")
	ErrProtocolError      = errors.New("protocol error")
	ErrTimeout            = errors.New("timeout")
	ErrNetworkError       = errors.New("network error")
	ErrInvalidURI         = errors.New("invalid uri")
	ErrUnknown            = errors.New("unknown error")
)

// Message templates kept stable so operators can grep for them.
const (
	MsgCreateChannel  = "The channel could not be created"
	MsgPublishMessage = "The message could not be published to the queue (Queue name=[%s])"
	MsgEmptyQueue     = "The queue name must not be empty (DynamicValue=[%s])"
	MsgAckFailed      = "An error occurred while sending ack for tag=[%d]"
	MsgConsume        = "The consumer could not be registered on the queue (Queue name=[%s])"
)

// TranslateError converts an amqp091 or transport error into one of the
// sentinel errors above. It returns nil for nil and ErrUnknown for anything
// it does not recognize.
func TranslateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, amqp.ErrClosed) {
		return ErrClosed
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return translateAMQPError(amqpErr)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrTimeout
		}
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return translateSyscallError(errno)
	}

	if netErr != nil {
		return ErrNetworkError
	}
	return ErrUnknown
}

func translateAMQPError(amqpErr *amqp.Error) error {
	switch amqpErr.Code {
	case amqp.ConnectionForced:
		return ErrConnectionForced
	case amqp.AccessRefused:
		return ErrAccessRefused
	case amqp.NotFound, amqp.InvalidPath:
		return ErrNotFound
	case amqp.ResourceLocked:
		return ErrResourceLocked
	case amqp.PreconditionFailed:
		return ErrPreconditionFailed
	case amqp.ContentTooLarge:
		return ErrContentTooLarge
	case amqp.NoRoute, amqp.NoConsumers:
		return ErrNoRoute
	case amqp.ChannelError:
		return ErrChannelError
	case amqp.NotAllowed:
		return ErrNotAllowed
	case amqp.NotImplemented:
		return ErrNotImplemented
	case amqp.InternalError, amqp.ResourceError:
		return ErrInternalError
	case amqp.FrameError, amqp.SyntaxError, amqp.CommandInvalid, amqp.UnexpectedFrame:
		return ErrProtocolError
	default:
		return ErrUnknown
	}
}

func translateSyscallError(errno syscall.Errno) error {
	switch errno {
	case syscall.ECONNREFUSED:
		return ErrConnectionFailed
	case syscall.ECONNRESET, syscall.ECONNABORTED, syscall.EPIPE, syscall.ENOTCONN:
		return ErrConnectionLost
	case syscall.ETIMEDOUT:
		return ErrTimeout
	case syscall.EACCES, syscall.EPERM:
		return ErrAccessRefused
	default:
		return ErrNetworkError
	}
}

// unwrapWithKind returns the raw error followed by its translated sentinel,
// skipping the sentinel when it carries no information.
func unwrapWithKind(err error) []error {
	if err == nil {
		return nil
	}
	kind := TranslateError(err)
	if kind == ErrUnknown || errors.Is(err, kind) {
		return []error{err}
	}
	return []error{err, kind}
}

// ConnectionError is returned when a broker connection cannot be
// established. Addr never contains credentials.
type ConnectionError struct {
	Op   string
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("rabbit %s %s: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return unwrapWithKind(e.Err) }

// ChannelError is returned when a channel cannot be opened or configured.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("%s (%s): %v", MsgCreateChannel, e.Op, e.Err)
}

func (e *ChannelError) Unwrap() []error { return unwrapWithKind(e.Err) }

// QueueDeclarationError is returned when a requested queue declaration is
// rejected, typically because the queue exists with different properties.
type QueueDeclarationError struct {
	Queue      string
	Durable    bool
	Exclusive  bool
	AutoDelete bool
	Err        error
}

func (e *QueueDeclarationError) Error() string {
	return fmt.Sprintf("queue declaration failed (Queue name=[%s], durable=%t, exclusive=%t, autoDelete=%t): %v",
		e.Queue, e.Durable, e.Exclusive, e.AutoDelete, e.Err)
}

func (e *QueueDeclarationError) Unwrap() []error { return unwrapWithKind(e.Err) }

// ConsumeError is returned when basic.consume cannot be registered.
type ConsumeError struct {
	Queue string
	Err   error
}

func (e *ConsumeError) Error() string {
	return fmt.Sprintf(MsgConsume+": %v", e.Queue, e.Err)
}

func (e *ConsumeError) Unwrap() []error { return unwrapWithKind(e.Err) }

// PublishError is returned by a failed publish call.
type PublishError struct {
	Exchange string
	Queue    string
	Err      error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf(MsgPublishMessage+": %v", e.Queue, e.Err)
}

func (e *PublishError) Unwrap() []error { return unwrapWithKind(e.Err) }

// AckError records a failed basic.ack. It is logged, never returned to the
// pipeline.
type AckError struct {
	DeliveryTag uint64
	Err         error
}

func (e *AckError) Error() string {
	return fmt.Sprintf(MsgAckFailed+": %v", e.DeliveryTag, e.Err)
}

func (e *AckError) Unwrap() []error { return unwrapWithKind(e.Err) }

// ConfigurationError reports an invalid or unresolvable configuration value.
type ConfigurationError struct {
	Field string
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Field, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
