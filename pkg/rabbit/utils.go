package rabbit

import (
	"errors"
	"strings"
)

// ErrNilConnection is returned by OpenChannel when no connection is given.
var ErrNilConnection = errors.New("nil connection")

// OpenChannel opens a channel dedicated to one consumer or producer.
func OpenChannel(conn Connection) (Channel, error) {
	if conn == nil {
		return nil, &ChannelError{Op: "open", Err: ErrNilConnection}
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, &ChannelError{Op: "open", Err: err}
	}
	return ch, nil
}

// CloseChannelSilently closes ch if it is still open and discards any error.
// It is safe to call repeatedly and with a nil channel.
func CloseChannelSilently(ch Channel) {
	if ch == nil || ch.IsClosed() {
		return
	}
	_ = ch.Close()
}

// CloseConnectionSilently closes conn if it is still open and discards any
// error. It is safe to call repeatedly and with a nil connection.
func CloseConnectionSilently(conn Connection) {
	if conn == nil || conn.IsClosed() {
		return
	}
	_ = conn.Close()
}

// Release closes ch then conn, silently. The channel always goes first.
func Release(ch Channel, conn Connection) {
	CloseChannelSilently(ch)
	CloseConnectionSilently(conn)
}

// DeclareIfRequested declares queue name on ch with the flags of decl.
//
// Nothing is sent when decl.Create is false, or when static is false because
// the name is only known per message; such queues must already exist. The
// returned bool reports whether a declaration was issued. A broker rejection,
// for instance an existing queue with different flags, is returned as a
// *QueueDeclarationError.
func DeclareIfRequested(ch Channel, name string, decl QueueDeclaration, static bool) (bool, error) {
	if !decl.Create || !static {
		return false, nil
	}
	if strings.TrimSpace(name) == "" {
		return false, &QueueDeclarationError{
			Queue:      name,
			Durable:    decl.Durable,
			Exclusive:  decl.Exclusive,
			AutoDelete: decl.AutoDelete,
			Err:        &ConfigurationError{Field: "queueName", Err: errors.New("queue name must not be empty")},
		}
	}

	_, err := ch.QueueDeclare(
		name,
		decl.Durable,
		decl.AutoDelete,
		decl.Exclusive,
		false, // NoWait
		nil,   // Arguments
	)
	if err != nil {
		return true, &QueueDeclarationError{
			Queue:      name,
			Durable:    decl.Durable,
			Exclusive:  decl.Exclusive,
			AutoDelete: decl.AutoDelete,
			Err:        err,
		}
	}
	return true, nil
}
