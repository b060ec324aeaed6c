package rabbit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	amqp "github.com/rabbitmq/amqp091-go"
)

var (
	// ErrSessionClosed is returned once Close has been called on a Session.
	ErrSessionClosed = errors.New("session closed")

	// ErrRecoveryDisabled is returned by Recover when the endpoint does not
	// enable automatic recovery.
	ErrRecoveryDisabled = errors.New("automatic recovery disabled")
)

// Session owns the connection/channel pair of a single consumer or producer.
// The channel is always released before its connection.
type Session struct {
	provider *Provider
	endpoint Endpoint
	logger   Logger

	mu   sync.RWMutex
	conn Connection
	ch   Channel

	closed    chan struct{}
	closeOnce sync.Once

	newBackOff func() backoff.BackOff
}

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithBackOff sets the policy used between recovery attempts.
func WithBackOff(newBackOff func() backoff.BackOff) SessionOption {
	return func(s *Session) {
		if newBackOff != nil {
			s.newBackOff = newBackOff
		}
	}
}

// NewSession creates an unopened session for endpoint.
func NewSession(provider *Provider, endpoint Endpoint, logger Logger, opts ...SessionOption) *Session {
	s := &Session{
		provider:   provider,
		endpoint:   endpoint,
		logger:     OrNop(logger),
		closed:     make(chan struct{}),
		newBackOff: defaultBackOff,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Open connects once and opens the channel. On failure nothing is left open.
func (s *Session) Open(ctx context.Context) (Channel, error) {
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	conn, err := s.provider.Connect(ctx, s.endpoint)
	if err != nil {
		return nil, err
	}
	ch, err := OpenChannel(conn)
	if err != nil {
		s.logger.Error(MsgCreateChannel, err, map[string]interface{}{
			"rabbit_addr": s.endpoint.Addr(),
		})
		CloseConnectionSilently(conn)
		return nil, err
	}

	s.mu.Lock()
	s.conn, s.ch = conn, ch
	s.mu.Unlock()
	return ch, nil
}

// Channel returns the current channel, nil before Open or after Close.
func (s *Session) Channel() Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ch
}

// Endpoint returns the endpoint the session connects to.
func (s *Session) Endpoint() Endpoint {
	return s.endpoint
}

// Recover replaces the connection and channel after a loss. It retries with
// backoff until setup succeeds on a fresh channel, ctx ends or the session
// is closed. setup may be nil.
func (s *Session) Recover(ctx context.Context, setup func(Channel) error) (Channel, error) {
	if !s.endpoint.AutomaticRecovery {
		return nil, ErrRecoveryDisabled
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.closed:
			cancel()
		case <-ctx.Done():
		}
	}()

	var (
		recovered Channel
		attempt   int
	)

	operation := func() error {
		attempt++

		s.mu.Lock()
		stale, staleConn := s.ch, s.conn
		s.ch, s.conn = nil, nil
		s.mu.Unlock()
		Release(stale, staleConn)

		if s.isClosed() {
			return backoff.Permanent(ErrSessionClosed)
		}

		conn, err := s.provider.Connect(ctx, s.endpoint)
		if err != nil {
			return err
		}
		ch, err := OpenChannel(conn)
		if err != nil {
			CloseConnectionSilently(conn)
			return err
		}
		if setup != nil {
			if err := setup(ch); err != nil {
				Release(ch, conn)
				return err
			}
		}

		s.mu.Lock()
		if s.isClosed() {
			s.mu.Unlock()
			Release(ch, conn)
			return backoff.Permanent(ErrSessionClosed)
		}
		s.conn, s.ch = conn, ch
		s.mu.Unlock()

		recovered = ch
		return nil
	}

	notify := func(err error, wait time.Duration) {
		s.logger.Warn("Reconnection failed, retrying...", err, map[string]interface{}{
			"attempt":     attempt,
			"retry_in":    wait.String(),
			"rabbit_addr": s.endpoint.Addr(),
		})
	}

	if err := backoff.RetryNotify(operation, backoff.WithContext(s.newBackOff(), ctx), notify); err != nil {
		if s.isClosed() {
			return nil, ErrSessionClosed
		}
		return nil, err
	}

	s.logger.Info("Reconnected to RabbitMQ", nil, map[string]interface{}{
		"rabbit_addr": s.endpoint.Addr(),
		"attempts":    attempt,
	})
	return recovered, nil
}

// Watch blocks until ctx ends or the session is closed. Each time the
// current channel is lost it recovers through Recover with setup, or returns
// ErrConnectionLost when automatic recovery is disabled.
func (s *Session) Watch(ctx context.Context, setup func(Channel) error) error {
	for {
		ch := s.Channel()
		if ch == nil {
			if s.isClosed() {
				return nil
			}
			return ErrClosed
		}

		lost := ch.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.closed:
			return nil
		case amqpErr := <-lost:
			if s.isClosed() {
				return nil
			}

			var cause error
			if amqpErr != nil {
				cause = amqpErr
			}
			s.logger.Warn("RabbitMQ channel closed", cause, map[string]interface{}{
				"rabbit_addr":        s.endpoint.Addr(),
				"automatic_recovery": s.endpoint.AutomaticRecovery,
			})

			if !s.endpoint.AutomaticRecovery {
				return ErrConnectionLost
			}
			if _, err := s.Recover(ctx, setup); err != nil {
				return err
			}
		}
	}
}

// Close releases the channel and connection silently. It is idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.closed) })

	s.mu.Lock()
	ch, conn := s.ch, s.conn
	s.ch, s.conn = nil, nil
	s.mu.Unlock()

	Release(ch, conn)
}

func (s *Session) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
