package stats

import (
	"fmt"

	"github.com/ardhiansyah/veloria/internal/common/kafka"
)

// Topics carrying domain events this service consumes.
var EventTopics = []string{
	"user.created",
	"order.placed",
	"order.status_changed",
	"product.created",
	"review.created",
	"review.approved",
}

// EventEnvelope is the shared shape of domain events on the bus. Only the
// order topics populate OrderID/Status.
type EventEnvelope struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	OrderID    string `json:"order_id,omitempty"`
	Status     string `json:"status,omitempty"`
	OccurredAt string `json:"occurred_at,omitempty"`
}

// ProcessEvent translates a Kafka event into the matching recorder hook.
// Unknown event types are logged and dropped; only a malformed payload is an
// error (so the consumer can surface it).
func (r *Recorder) ProcessEvent(value []byte) error {
	var env EventEnvelope
	if err := kafka.UnmarshalEvent(value, &env); err != nil {
		return err
	}

	switch env.EventType {
	case "user.created":
		r.OnUserCreated()
	case "order.placed":
		r.OnOrderPlaced()
	case "order.status_changed":
		if env.OrderID == "" || env.Status == "" {
			return fmt.Errorf("order.status_changed event %s missing order_id or status", env.EventID)
		}
		r.OnOrderStatusChanged(env.OrderID, env.Status)
	case "product.created":
		r.OnProductCreated()
	case "review.created":
		r.OnReviewCreated()
	case "review.approved":
		r.OnReviewApproved()
	default:
		r.logger.Warnf("Ignoring unknown event type %q (event %s)", env.EventType, env.EventID)
	}

	return nil
}
