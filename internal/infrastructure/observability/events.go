package observability

import (
	"context"
	"time"

	"github.com/cassiomorais/payorders/internal/domain/event"
	"github.com/cassiomorais/payorders/internal/infrastructure/eventbus"
	"github.com/shopspring/decimal"
)

// Subscriber is the subscription side of the event bus.
type Subscriber interface {
	On(name event.Name, handler eventbus.HandlerFunc) eventbus.SubscriptionID
}

// SubscribeLifecycle turns lifecycle events into counters.
func (m *Metrics) SubscribeLifecycle(bus Subscriber) eventbus.SubscriptionID {
	return bus.On(eventbus.All, m.HandleEvent)
}

// HandleEvent records one lifecycle event.
func (m *Metrics) HandleEvent(_ context.Context, evt event.Event) error {
	switch evt.Name {
	case event.PaymentCreated:
		method, currency := str(evt.Data, "method"), str(evt.Data, "currency")
		m.PaymentsCreated.WithLabelValues(method, currency).Inc()
		if amount, err := decimal.NewFromString(str(evt.Data, "amount")); err == nil {
			m.PaymentAmount.WithLabelValues(currency).Observe(amount.InexactFloat64())
		}
	case event.PaymentStatusChanged:
		m.PaymentTransitions.WithLabelValues(str(evt.Data, "from"), str(evt.Data, "to")).Inc()
	case event.PaymentCompleted:
		m.PaymentsCompleted.WithLabelValues(str(evt.Data, "method"), str(evt.Data, "currency")).Inc()
	case event.PaymentFailed:
		m.PaymentsFailed.WithLabelValues(str(evt.Data, "method")).Inc()
	case event.PaymentCancelled:
		m.PaymentsCancelled.Inc()
	case event.PaymentExpired:
		m.PaymentsExpired.Inc()
	case event.PaymentError:
		terminal := "false"
		if t, ok := evt.Data["terminal"].(bool); ok && t {
			terminal = "true"
		}
		m.PaymentErrors.WithLabelValues(terminal).Inc()
	case event.RefundCompleted:
		m.Refunds.WithLabelValues("completed").Inc()
	case event.RefundFailed:
		m.Refunds.WithLabelValues("failed").Inc()
	}
	return nil
}

// ObserveGatewayCall records one gateway call.
func (m *Metrics) ObserveGatewayCall(gateway, operation, outcome string, took time.Duration) {
	m.GatewayAttempts.WithLabelValues(gateway, operation, outcome).Inc()
	m.GatewayDuration.WithLabelValues(gateway, operation).Observe(took.Seconds())
}

// SetBreakerState records a circuit breaker state (0=closed, 1=half-open, 2=open).
func (m *Metrics) SetBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveSweep records the result of an expiry sweep.
func (m *Metrics) ObserveSweep(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ExpirySweeps.WithLabelValues(result).Inc()
}

func str(data map[string]any, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return "unknown"
}
