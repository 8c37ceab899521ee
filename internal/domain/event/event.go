package event

import (
	"time"

	"github.com/google/uuid"
)

// Name identifies a lifecycle notification.
type Name string

const (
	PaymentCreated       Name = "paymentCreated"
	PaymentStatusChanged Name = "paymentStatusChanged"
	PaymentCompleted     Name = "paymentCompleted"
	PaymentFailed        Name = "paymentFailed"
	PaymentCancelled     Name = "paymentCancelled"
	PaymentExpired       Name = "paymentExpired"
	PaymentError         Name = "paymentError"
	RefundCompleted      Name = "refundCompleted"
	RefundFailed         Name = "refundFailed"
)

// All lists every event the orchestrator publishes.
var All = []Name{
	PaymentCreated,
	PaymentStatusChanged,
	PaymentCompleted,
	PaymentFailed,
	PaymentCancelled,
	PaymentExpired,
	PaymentError,
	RefundCompleted,
	RefundFailed,
}

// Event is a single notification. Data holds a JSON-friendly snapshot.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Name       Name           `json:"name"`
	PaymentID  uuid.UUID      `json:"payment_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// New builds an event for a payment.
func New(name Name, paymentID uuid.UUID, at time.Time, data map[string]any) Event {
	if data == nil {
		data = make(map[string]any)
	}
	return Event{
		ID:         uuid.New(),
		Name:       name,
		PaymentID:  paymentID,
		OccurredAt: at,
		Data:       data,
	}
}
