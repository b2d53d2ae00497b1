package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"namex/pkg/domain"
	"namex/pkg/requestcontext"
)

const (
	defaultBatchSize     = 50
	defaultFlushInterval = 500 * time.Millisecond
)

// Sink delivers a batch of messages. Implementations must be safe to retry:
// a failed batch is sent again on the next flush.
type Sink interface {
	Send(ctx context.Context, msgs []Message) error
}

// Dispatcher queues notifications and delivers them from Run.
type Dispatcher struct {
	buffer    *ringBuffer
	sink      Sink
	logger    *slog.Logger
	metrics   *Metrics
	batchSize int
	interval  time.Duration
	wake      chan struct{}
	pending   []Message
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithCapacity bounds the queue. Beyond it Publish returns ErrQueueFull.
func WithCapacity(n int) Option {
	return func(d *Dispatcher) {
		d.buffer = newRingBuffer(n)
	}
}

func WithBatchSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.batchSize = n
		}
	}
}

func WithFlushInterval(interval time.Duration) Option {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.interval = interval
		}
	}
}

func NewDispatcher(sink Sink, opts ...Option) (*Dispatcher, error) {
	if sink == nil {
		return nil, errors.New("notification sink is required")
	}
	d := &Dispatcher{
		buffer:    newRingBuffer(0),
		sink:      sink,
		logger:    slog.Default(),
		batchSize: defaultBatchSize,
		interval:  defaultFlushInterval,
		wake:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// ErrQueueFull is returned by Publish when the queue has no room left.
var ErrQueueFull = errors.New("notification queue is full")

// Publish queues a notification and returns immediately. A full queue
// refuses the message so the caller can account for it.
func (d *Dispatcher) Publish(ctx context.Context, nrNum domain.NRNumber, option string, detail map[string]string) error {
	msg := NewMessage(nrNum, option, detail, requestcontext.Now(ctx))
	if !d.buffer.enqueue(msg) {
		d.metrics.rejected(d.buffer.len())
		d.logger.WarnContext(ctx, "notification queue full, message refused",
			"nr_num", nrNum,
			"option", option,
			"rejected_total", d.buffer.rejectedTotal(),
		)
		return ErrQueueFull
	}
	d.metrics.enqueued(d.buffer.len())
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return nil
}

// Run delivers queued messages until ctx is cancelled, then makes one last
// attempt with a short grace period.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			d.Flush(drainCtx)
			cancel()
			return ctx.Err()
		case <-ticker.C:
			d.Flush(ctx)
		case <-d.wake:
			d.Flush(ctx)
		}
	}
}

// Flush sends everything currently queued. A failed batch is kept and
// retried first on the next call. Run and Flush must not be called
// concurrently.
func (d *Dispatcher) Flush(ctx context.Context) {
	for {
		if len(d.pending) == 0 {
			d.pending = d.buffer.dequeueBatch(d.batchSize)
		}
		if len(d.pending) == 0 {
			return
		}
		if err := d.sink.Send(ctx, d.pending); err != nil {
			d.metrics.sendError()
			d.logger.ErrorContext(ctx, "failed to deliver notifications",
				"count", len(d.pending),
				"error", err,
			)
			return
		}
		d.metrics.delivered(len(d.pending), d.buffer.len())
		d.pending = nil
	}
}

// Queued reports how many messages await delivery.
func (d *Dispatcher) Queued() int {
	return d.buffer.len() + len(d.pending)
}
