package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/foodtruck-orders/internal/events"
)

// Task types executed by the worker after an order is persisted.
const (
	TypeConfirmationEmail = "order:confirmation_email"
	TypePush              = "order:push"
	TypeLoyaltyCredit     = "order:loyalty_credit"
)

// OrderPayload is the body of every order side-effect task.
type OrderPayload struct {
	EventID    string              `json:"eventId"`
	OccurredAt time.Time           `json:"occurredAt"`
	Order      events.OrderCreated `json:"order"`
}

// DecodePayload reads an order task body. Malformed bodies are never retried.
func DecodePayload(t *asynq.Task) (OrderPayload, error) {
	var p OrderPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return OrderPayload{}, fmt.Errorf("notify: decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if p.Order.OrderID == "" {
		return OrderPayload{}, fmt.Errorf("notify: %s payload without order id: %w", t.Type(), asynq.SkipRetry)
	}
	return p, nil
}

// Handlers groups the task handlers served by the worker. Nil handlers are not registered.
type Handlers struct {
	Email   *EmailHandler
	Push    *PushHandler
	Loyalty *LoyaltyHandler
}

// RegisterHandlers mounts the configured handlers on mux.
func RegisterHandlers(mux *asynq.ServeMux, h Handlers) {
	if h.Email != nil {
		mux.Handle(TypeConfirmationEmail, h.Email)
	}
	if h.Push != nil {
		mux.Handle(TypePush, h.Push)
	}
	if h.Loyalty != nil {
		mux.Handle(TypeLoyaltyCredit, h.Loyalty)
	}
}
