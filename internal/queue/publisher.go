package queue

import (
    "context"
    "encoding/json"
    "errors"
    "net"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
    "go.uber.org/zap"
    "golang.org/x/sync/semaphore"
)

// Publisher sends reservation events.  Failures are returned so callers can
// log them; they never undo the committed reservation change.
type Publisher interface {
    Publish(ctx context.Context, ev ReservationEvent) error
}

// NopPublisher drops every event.  Used when QUEUE_ENABLED=false.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

// ErrBrokerBackoff is returned while the publisher waits out the pause that
// follows a failed connection attempt.
var ErrBrokerBackoff = errors.New("broker unreachable, backing off")

const (
    defaultRedialBackoff = 2 * time.Second
    // handshake bound when the caller's context has no deadline
    defaultDialTimeout = 10 * time.Second
)

// AMQPPublisher publishes persistent JSON messages to a durable queue via the
// default exchange.  The connection is opened lazily and reopened after any
// failure.  Waiting for the publisher, dialing and the AMQP handshake are all
// bounded by the caller's context.
type AMQPPublisher struct {
    url    string
    queue  string
    logger *zap.Logger

    // guards conn, ch and retryAt; an amqp.Channel is not safe for
    // concurrent publishes
    sem     *semaphore.Weighted
    conn    *amqp.Connection
    ch      *amqp.Channel
    retryAt time.Time
    backoff time.Duration
}

// NewAMQPPublisher returns a publisher for queue on the broker at url.
func NewAMQPPublisher(url, queue string, logger *zap.Logger) *AMQPPublisher {
    if logger == nil {
        logger = zap.NewNop()
    }
    return &AMQPPublisher{
        url:     url,
        queue:   queue,
        logger:  logger,
        sem:     semaphore.NewWeighted(1),
        backoff: defaultRedialBackoff,
    }
}

// Publish sends ev.
func (p *AMQPPublisher) Publish(ctx context.Context, ev ReservationEvent) error {
    body, err := json.Marshal(ev)
    if err != nil {
        return err
    }

    if err := p.sem.Acquire(ctx, 1); err != nil {
        return err
    }
    defer p.sem.Release(1)
    if err := ctx.Err(); err != nil {
        return err
    }

    if err := p.ensureChannel(ctx); err != nil {
        return err
    }
    err = p.ch.PublishWithContext(ctx,
        "",      // default exchange
        p.queue, // routing key = queue name
        false,   // mandatory
        false,   // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Type:         ev.Type,
            MessageId:    ev.ReservationID + ":" + ev.Type,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        })
    if err != nil {
        p.reset()
        return err
    }
    return nil
}

func (p *AMQPPublisher) ensureChannel(ctx context.Context) error {
    if p.ch != nil && !p.ch.IsClosed() {
        return nil
    }
    p.reset()
    if time.Now().Before(p.retryAt) {
        return ErrBrokerBackoff
    }
    conn, ch, err := p.connect(ctx)
    if err != nil {
        p.retryAt = time.Now().Add(p.backoff)
        p.logger.Warn("rabbitmq publisher connect failed",
            zap.String("queue", p.queue), zap.Duration("retry_in", p.backoff), zap.Error(err))
        return err
    }
    p.conn, p.ch = conn, ch
    p.retryAt = time.Time{}
    p.logger.Debug("rabbitmq publisher connected", zap.String("queue", p.queue))
    return nil
}

// connect dials with ctx and puts the ctx deadline on the socket so the AMQP
// handshake cannot outlive it.  amqp clears the deadline once the connection
// is open.
func (p *AMQPPublisher) connect(ctx context.Context) (*amqp.Connection, *amqp.Channel, error) {
    deadline, ok := ctx.Deadline()
    if !ok {
        deadline = time.Now().Add(defaultDialTimeout)
    }
    conn, err := amqp.DialConfig(p.url, amqp.Config{
        Heartbeat: 10 * time.Second,
        Locale:    "en_US",
        Dial: func(network, addr string) (net.Conn, error) {
            var d net.Dialer
            c, err := d.DialContext(ctx, network, addr)
            if err != nil {
                return nil, err
            }
            if err := c.SetDeadline(deadline); err != nil {
                _ = c.Close()
                return nil, err
            }
            return c, nil
        },
    })
    if err != nil {
        return nil, nil, err
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return nil, nil, err
    }
    if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return nil, nil, err
    }
    return conn, ch, nil
}

func (p *AMQPPublisher) reset() {
    if p.ch != nil {
        _ = p.ch.Close()
    }
    if p.conn != nil {
        _ = p.conn.Close()
    }
    p.ch, p.conn = nil, nil
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
    _ = p.sem.Acquire(context.Background(), 1)
    defer p.sem.Release(1)
    if p.conn == nil {
        return nil
    }
    err := p.conn.Close()
    p.ch, p.conn = nil, nil
    if errors.Is(err, amqp.ErrClosed) {
        return nil
    }
    return err
}
