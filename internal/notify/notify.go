// Package notify carries user notifications out of the services. Delivery is
// best effort: a failure here never rolls back or fails a committed operation.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	TypeBudget        = "budget"
	TypeDisbursement  = "disbursement"
	TypeExpenditure   = "expenditure"
	TypeSupplementary = "supplementary"
	TypeRemittance    = "remittance"
)

type Notification struct {
	RecipientID uuid.UUID              `json:"recipient_id"`
	Title       string                 `json:"title"`
	Message     string                 `json:"message"`
	Type        string                 `json:"type"`
	Data        map[string]interface{} `json:"data,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

func (n Notification) ToJSON() ([]byte, error) {
	return json.Marshal(n)
}

func FromJSON(data []byte) (Notification, error) {
	var n Notification
	err := json.Unmarshal(data, &n)
	return n, err
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// Outbox collects notifications inside a unit of work. Dispatch must only be
// called once the unit of work has committed.
type Outbox struct {
	pending []Notification
}

func (o *Outbox) Add(n Notification) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	o.pending = append(o.pending, n)
}

func (o *Outbox) Len() int {
	return len(o.pending)
}

// Dispatch hands every pending notification to n and empties the outbox.
func (o *Outbox) Dispatch(ctx context.Context, n Notifier, log zerolog.Logger) {
	pending := o.pending
	o.pending = nil
	if n == nil {
		return
	}
	for _, item := range pending {
		if err := n.Notify(ctx, item); err != nil {
			log.Warn().Err(err).
				Str("recipient_id", item.RecipientID.String()).
				Str("type", item.Type).
				Msg("notification: delivery failed (non-fatal)")
		}
	}
}

// LogNotifier writes notifications to the log only.
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info().
		Str("recipient_id", n.RecipientID.String()).
		Str("type", n.Type).
		Str("title", n.Title).
		Msg("notification")
	return nil
}
