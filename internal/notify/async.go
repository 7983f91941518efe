package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

var ErrQueueFull = errors.New("notification queue full")

// Async queues notifications for a single delivery goroutine. When the
// queue is full the notification is dropped.
type Async struct {
	next    Notifier
	queue   chan Notification
	log     zerolog.Logger
	dropped atomic.Int64
}

func NewAsync(next Notifier, size int, log zerolog.Logger) *Async {
	if size < 1 {
		size = 1
	}
	return &Async{
		next:  next,
		queue: make(chan Notification, size),
		log:   log,
	}
}

func (a *Async) Notify(_ context.Context, n Notification) error {
	select {
	case a.queue <- n:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

// Dropped reports how many notifications were discarded.
func (a *Async) Dropped() int64 {
	return a.dropped.Load()
}

// Run delivers queued notifications until ctx is cancelled, then drains
// whatever is still queued with a short deadline.
func (a *Async) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			a.drain()
			return nil
		case n := <-a.queue:
			a.deliver(ctx, n)
		}
	}
}

func (a *Async) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case n := <-a.queue:
			a.deliver(ctx, n)
		default:
			return
		}
	}
}

func (a *Async) deliver(ctx context.Context, n Notification) {
	if err := a.next.Notify(ctx, n); err != nil {
		a.log.Warn().Err(err).
			Str("recipient_id", n.RecipientID.String()).
			Str("type", n.Type).
			Msg("notification: async delivery failed")
	}
}
