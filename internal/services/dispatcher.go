package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"silent-auction/internal/domain"
	"silent-auction/pkg/logger"
	"silent-auction/pkg/utils"
)

type DispatcherOptions struct {
	Workers         int
	QueueSize       int
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Dispatcher persists notification intents off the bid path. Intents are
// queued in process and written by a worker pool with bounded retries.
// Redelivery is harmless: the repository drops a second write for the same
// event and recipient.
type Dispatcher struct {
	repo domain.NotificationRepository
	sink domain.NotificationSink
	opts DispatcherOptions
	log  logger.Logger
	now  func() time.Time

	queue   chan domain.NotificationIntent
	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	delivered  atomic.Uint64
	duplicates atomic.Uint64
	failed     atomic.Uint64
}

func NewDispatcher(repo domain.NotificationRepository, opts DispatcherOptions, log logger.Logger) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.QueueSize < 0 {
		opts.QueueSize = 0
	}
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = 1
	}
	if opts.InitialInterval <= 0 {
		opts.InitialInterval = 100 * time.Millisecond
	}
	if opts.MaxInterval < opts.InitialInterval {
		opts.MaxInterval = opts.InitialInterval
	}

	return &Dispatcher{
		repo:  repo,
		opts:  opts,
		log:   log,
		now:   time.Now,
		queue: make(chan domain.NotificationIntent, opts.QueueSize),
	}
}

// SetSink registers a live feed for newly written notifications. Call it
// before Start.
func (d *Dispatcher) SetSink(sink domain.NotificationSink) {
	d.sink = sink
}

// Start launches the workers. ctx bounds each delivery, not the workers'
// lifetime; use Stop to shut down.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true

	for i := 0; i < d.opts.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.log.Info("Notification dispatcher started", "workers", d.opts.Workers, "queue_size", d.opts.QueueSize)
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for intent := range d.queue {
		d.deliver(context.WithoutCancel(ctx), intent)
	}
	d.log.Debug("Notification worker stopped", "worker", id)
}

// Enqueue hands intents to the workers. When the queue is full, or the
// dispatcher is not running, the intent is delivered on the caller's
// goroutine instead of being dropped.
func (d *Dispatcher) Enqueue(ctx context.Context, intents ...domain.NotificationIntent) {
	for _, intent := range intents {
		if !d.tryQueue(intent) {
			d.deliver(context.WithoutCancel(ctx), intent)
		}
	}
}

func (d *Dispatcher) tryQueue(intent domain.NotificationIntent) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.started || d.closed {
		return false
	}
	select {
	case d.queue <- intent:
		return true
	default:
		d.log.Warn("Notification queue full, delivering inline", "event_key", intent.EventKey)
		return false
	}
}

func (d *Dispatcher) deliver(ctx context.Context, intent domain.NotificationIntent) {
	if err := d.Emit(ctx, intent); err != nil {
		d.failed.Add(1)
		d.log.Error("Dropping notification after retries",
			"event_key", intent.EventKey, "recipient", intent.Recipient, "type", intent.Type, "error", err)
	}
}

// Emit persists one intent synchronously, retrying transient failures.
func (d *Dispatcher) Emit(ctx context.Context, intent domain.NotificationIntent) error {
	if intent.Recipient == "" || intent.EventKey == "" {
		return fmt.Errorf("notification without recipient or event key: %w", domain.ErrValidation)
	}

	notification := &domain.Notification{
		ID:        utils.GenerateID(""),
		UserID:    intent.Recipient,
		ItemID:    intent.ItemID,
		Type:      intent.Type,
		Message:   intent.Message,
		BidAmount: intent.BidAmount,
		ItemTitle: intent.ItemTitle,
		ItemImage: intent.ItemImage,
		EventKey:  intent.EventKey,
		CreatedAt: d.now().UTC(),
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.opts.InitialInterval
	policy.MaxInterval = d.opts.MaxInterval

	created, err := backoff.Retry(ctx, func() (bool, error) {
		created, err := d.repo.CreateNotification(ctx, notification)
		if errors.Is(err, domain.ErrValidation) {
			return false, backoff.Permanent(err)
		}
		return created, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(d.opts.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.log.Warn("Notification write failed, retrying",
				"event_key", intent.EventKey, "recipient", intent.Recipient, "retry_in", next, "error", err)
		}),
	)
	if err != nil {
		return err
	}

	if created {
		d.delivered.Add(1)
		if d.sink != nil {
			d.sink.Push(ctx, notification)
		}
	} else {
		d.duplicates.Add(1)
		d.log.Debug("Duplicate notification ignored", "event_key", intent.EventKey, "recipient", intent.Recipient)
	}
	return nil
}

// Stop closes intake and waits until every queued intent has been handled.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("Notification dispatcher stopped",
		"delivered", d.delivered.Load(), "duplicates", d.duplicates.Load(), "failed", d.failed.Load())
}

// Stats returns counts of written, deduplicated and abandoned intents.
func (d *Dispatcher) Stats() (delivered, duplicates, failed uint64) {
	return d.delivered.Load(), d.duplicates.Load(), d.failed.Load()
}
