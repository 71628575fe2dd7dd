package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	model "property-auction/internal/models"
	"property-auction/internal/repository"
	"property-auction/utils"

	"github.com/viney-shih/goroutines"
)

const writeTimeout = 5 * time.Second

// Options tunes the background writers
type Options struct {
	Workers     int
	QueueLength int
	MaxAttempts int
	RetryDelay  time.Duration
}

// Dispatcher records outbid/win/loss events durably. Delivery itself is done by whoever
// polls PendingFor and acknowledges with MarkDelivered.
type Dispatcher struct {
	store       repository.NotificationStore
	pool        *goroutines.Pool
	maxAttempts int
	retryDelay  time.Duration
	now         func() time.Time
	inflight    sync.WaitGroup
}

// NewDispatcher creates a dispatcher writing to store
func NewDispatcher(store repository.NotificationStore, opts Options) *Dispatcher {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	return &Dispatcher{
		store:       store,
		pool:        goroutines.NewPool(opts.Workers, goroutines.WithTaskQueueLength(opts.QueueLength)),
		maxAttempts: opts.MaxAttempts,
		retryDelay:  opts.RetryDelay,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Enqueue writes the notification and returns it with its id
func (d *Dispatcher) Enqueue(ctx context.Context, n model.Notification) (model.Notification, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}
	n.Delivered = false

	id, err := d.store.InsertNotification(ctx, n)
	if err != nil {
		return model.Notification{}, fmt.Errorf("dispatcher: enqueue %s for user %d: %w", n.Kind, n.RecipientUserID, err)
	}
	n.ID = id
	return n, nil
}

// Publish hands the notification to a background worker that retries the write.
// It returns as soon as the task is queued.
func (d *Dispatcher) Publish(n model.Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}

	d.inflight.Add(1)
	task := func() {
		defer d.inflight.Done()
		d.writeWithRetry(n)
	}
	if err := d.pool.Schedule(task); err != nil {
		utils.Warn("dispatcher: pool unavailable, writing on a detached goroutine", map[string]any{
			"kind":      n.Kind,
			"recipient": n.RecipientUserID,
			"error":     err.Error(),
		})
		go task()
	}
}

func (d *Dispatcher) writeWithRetry(n model.Notification) {
	delay := d.retryDelay
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		stored, err := d.Enqueue(ctx, n)
		cancel()
		if err == nil {
			utils.Debug("dispatcher: notification stored", map[string]any{
				"notification_id": stored.ID,
				"kind":            stored.Kind,
				"recipient":       stored.RecipientUserID,
				"property_id":     stored.Payload.PropertyID,
			})
			return
		}

		fields := map[string]any{
			"kind":        n.Kind,
			"recipient":   n.RecipientUserID,
			"property_id": n.Payload.PropertyID,
			"attempt":     attempt,
			"error":       err.Error(),
		}
		if attempt == d.maxAttempts {
			utils.Error("dispatcher: giving up on notification", fields)
			return
		}
		utils.Warn("dispatcher: notification write failed, retrying", fields)
		time.Sleep(delay)
		delay *= 2
	}
}

// MarkDelivered acknowledges a notification. Acknowledging twice is not an error.
func (d *Dispatcher) MarkDelivered(ctx context.Context, notificationID int64) error {
	if err := d.store.MarkDelivered(ctx, notificationID); err != nil {
		return fmt.Errorf("dispatcher: mark delivered %d: %w", notificationID, err)
	}
	return nil
}

// PendingFor lists the undelivered notifications of a user
func (d *Dispatcher) PendingFor(ctx context.Context, userID int64) ([]model.Notification, error) {
	pending, err := d.store.PendingFor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("dispatcher: pending for user %d: %w", userID, err)
	}
	return pending, nil
}

// Flush blocks until every published notification has been written or given up on
func (d *Dispatcher) Flush() {
	d.inflight.Wait()
}

// Close flushes outstanding work and stops the workers
func (d *Dispatcher) Close() {
	d.Flush()
	d.pool.Release()
}
