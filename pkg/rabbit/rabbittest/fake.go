// Package rabbittest provides in-memory fakes of the rabbit Connection and
// Channel interfaces for unit tests.
package rabbittest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Aleph-Alpha/amqpconnector/pkg/rabbit"
)

// QueueDeclareCall records one QueueDeclare invocation.
type QueueDeclareCall struct {
	Name       string
	Durable    bool
	AutoDelete bool
	Exclusive  bool
}

// ConsumeCall records one Consume invocation.
type ConsumeCall struct {
	Queue    string
	Consumer string
	AutoAck  bool
}

// Publication records one PublishWithContext invocation.
type Publication struct {
	Exchange string
	Key      string
	Msg      amqp.Publishing
}

// Channel is a fake rabbit.Channel. Error fields make the matching call fail.
type Channel struct {
	DeclareErr error
	ConsumeErr error
	PublishErr error
	AckErr     error
	QosErr     error
	CloseErr   error

	// PublishDelay is slept inside PublishWithContext to widen races.
	PublishDelay time.Duration

	mu          sync.Mutex
	declares    []QueueDeclareCall
	consumes    []ConsumeCall
	publishes   []Publication
	acks        []uint64
	qos         []int
	closeCalls  int
	closed      bool
	deliveries  chan amqp.Delivery
	notifiers   []chan *amqp.Error
	inFlight    int32
	overlapped  atomic.Bool
	onPublished func(Publication)
}

var _ rabbit.Channel = (*Channel)(nil)

// NewChannel returns an open fake channel.
func NewChannel() *Channel {
	return &Channel{}
}

// OnPublish registers a hook run after every successful publish.
func (c *Channel) OnPublish(fn func(Publication)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPublished = fn
}

func (c *Channel) Qos(prefetchCount, _ int, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = append(c.qos, prefetchCount)
	return c.QosErr
}

func (c *Channel) QueueDeclare(name string, durable, autoDelete, exclusive, _ bool, _ amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.declares = append(c.declares, QueueDeclareCall{Name: name, Durable: durable, AutoDelete: autoDelete, Exclusive: exclusive})
	if c.DeclareErr != nil {
		return amqp.Queue{}, c.DeclareErr
	}
	return amqp.Queue{Name: name}, nil
}

func (c *Channel) Consume(queue, consumer string, autoAck, _, _, _ bool, _ amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consumes = append(c.consumes, ConsumeCall{Queue: queue, Consumer: consumer, AutoAck: autoAck})
	if c.ConsumeErr != nil {
		return nil, c.ConsumeErr
	}
	if c.closed {
		return nil, amqp.ErrClosed
	}
	c.deliveries = make(chan amqp.Delivery, 64)
	return c.deliveries, nil
}

func (c *Channel) Cancel(string, bool) error {
	return nil
}

func (c *Channel) PublishWithContext(ctx context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	if atomic.AddInt32(&c.inFlight, 1) > 1 {
		c.overlapped.Store(true)
	}
	defer atomic.AddInt32(&c.inFlight, -1)

	if c.PublishDelay > 0 {
		time.Sleep(c.PublishDelay)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.PublishErr != nil {
		c.mu.Unlock()
		return c.PublishErr
	}
	if c.closed {
		c.mu.Unlock()
		return amqp.ErrClosed
	}
	p := Publication{Exchange: exchange, Key: key, Msg: msg}
	c.publishes = append(c.publishes, p)
	hook := c.onPublished
	c.mu.Unlock()

	if hook != nil {
		hook(p)
	}
	return nil
}

func (c *Channel) Ack(tag uint64, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.AckErr != nil {
		return c.AckErr
	}
	if c.closed {
		return amqp.ErrClosed
	}
	c.acks = append(c.acks, tag)
	return nil
}

func (c *Channel) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notifiers = append(c.notifiers, receiver)
	return receiver
}

func (c *Channel) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Channel) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.shutdown(nil)
	return c.CloseErr
}

// Deliver pushes d to the active consumer. It reports false when the channel
// is closed or nothing consumes from it.
func (c *Channel) Deliver(d amqp.Delivery) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.deliveries == nil {
		return false
	}
	c.deliveries <- d
	return true
}

// Fail simulates a broker initiated close with err.
func (c *Channel) Fail(err *amqp.Error) {
	c.shutdown(err)
}

func (c *Channel) shutdown(err *amqp.Error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, n := range c.notifiers {
		if err != nil {
			n <- err
		}
		close(n)
	}
	c.notifiers = nil
	if c.deliveries != nil {
		close(c.deliveries)
	}
}

// Declares returns the recorded QueueDeclare calls.
func (c *Channel) Declares() []QueueDeclareCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]QueueDeclareCall(nil), c.declares...)
}

// Consumes returns the recorded Consume calls.
func (c *Channel) Consumes() []ConsumeCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ConsumeCall(nil), c.consumes...)
}

// Publications returns the recorded publishes.
func (c *Channel) Publications() []Publication {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Publication(nil), c.publishes...)
}

// Acks returns the acknowledged delivery tags in call order.
func (c *Channel) Acks() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint64(nil), c.acks...)
}

// QosCalls returns the prefetch counts passed to Qos.
func (c *Channel) QosCalls() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.qos...)
}

// CloseCalls returns how often Close was invoked.
func (c *Channel) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// Overlapped reports whether two publishes ever ran at the same time.
func (c *Channel) Overlapped() bool {
	return c.overlapped.Load()
}

// Connection is a fake rabbit.Connection.
type Connection struct {
	// ChannelErr makes Channel fail.
	ChannelErr error
	// CloseErr is returned by Close.
	CloseErr error
	// NewChannel builds the channels handed out by Channel. Defaults to
	// NewChannel.
	NewChannel func() *Channel

	mu         sync.Mutex
	channels   []*Channel
	closed     bool
	closeCalls int
	notifiers  []chan *amqp.Error
}

var _ rabbit.Connection = (*Connection)(nil)

func (c *Connection) Channel() (rabbit.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ChannelErr != nil {
		return nil, c.ChannelErr
	}
	if c.closed {
		return nil, amqp.ErrClosed
	}
	newChannel := c.NewChannel
	if newChannel == nil {
		newChannel = NewChannel
	}
	ch := newChannel()
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *Connection) NotifyClose(receiver chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(receiver)
		return receiver
	}
	c.notifiers = append(c.notifiers, receiver)
	return receiver
}

func (c *Connection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Connection) Close() error {
	c.mu.Lock()
	c.closeCalls++
	c.mu.Unlock()
	c.shutdown(nil)
	return c.CloseErr
}

// Drop simulates a lost connection: every channel fails with err.
func (c *Connection) Drop(err *amqp.Error) {
	c.shutdown(err)
}

func (c *Connection) shutdown(err *amqp.Error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	channels := append([]*Channel(nil), c.channels...)
	for _, n := range c.notifiers {
		if err != nil {
			n <- err
		}
		close(n)
	}
	c.notifiers = nil
	c.mu.Unlock()

	for _, ch := range channels {
		ch.shutdown(err)
	}
}

// Channels returns every channel opened on the connection.
func (c *Connection) Channels() []*Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Channel(nil), c.channels...)
}

// LastChannel returns the most recently opened channel or nil.
func (c *Connection) LastChannel() *Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.channels) == 0 {
		return nil
	}
	return c.channels[len(c.channels)-1]
}

// CloseCalls returns how often Close was invoked.
func (c *Connection) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// DialCall records one dial attempt.
type DialCall struct {
	URL    string
	Config amqp.Config
}

// Broker hands out fake connections through its Dial method, which matches
// rabbit.Dialer.
type Broker struct {
	// DialErr makes Dial fail while set.
	DialErr error
	// FailDials makes the next n dials fail with DialErr or amqp.ErrClosed.
	FailDials int
	// NewConnection builds every connection. Defaults to an empty Connection.
	NewConnection func() *Connection

	mu    sync.Mutex
	dials []DialCall
	conns []*Connection
}

// Dial implements rabbit.Dialer.
func (b *Broker) Dial(url string, cfg amqp.Config) (rabbit.Connection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dials = append(b.dials, DialCall{URL: url, Config: cfg})

	if b.FailDials > 0 {
		b.FailDials--
		if b.DialErr != nil {
			return nil, b.DialErr
		}
		return nil, amqp.ErrClosed
	}
	if b.DialErr != nil {
		return nil, b.DialErr
	}

	newConnection := b.NewConnection
	if newConnection == nil {
		newConnection = func() *Connection { return &Connection{} }
	}
	conn := newConnection()
	b.conns = append(b.conns, conn)
	return conn, nil
}

// Dials returns every recorded dial attempt.
func (b *Broker) Dials() []DialCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]DialCall(nil), b.dials...)
}

// Connections returns every successfully dialed connection.
func (b *Broker) Connections() []*Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Connection(nil), b.conns...)
}

// LastConnection returns the most recent connection or nil.
func (b *Broker) LastConnection() *Connection {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.conns) == 0 {
		return nil
	}
	return b.conns[len(b.conns)-1]
}

// LastChannel returns the most recent channel of the most recent connection.
func (b *Broker) LastChannel() *Channel {
	conn := b.LastConnection()
	if conn == nil {
		return nil
	}
	return conn.LastChannel()
}
