package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/foodtruck-orders/internal/events"
	"github.com/noah-isme/foodtruck-orders/internal/obs"
)

// Enqueuer is the subset of *asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskNotifier turns order.created events into asynq tasks.
type TaskNotifier struct {
	Client   Enqueuer
	Email    bool
	Push     bool
	Loyalty  bool
	Queue    string
	MaxRetry int
}

// Notify implements events.Notifier. Each enabled side effect is enqueued under a
// task id derived from the order so a replayed event does not duplicate work.
func (n TaskNotifier) Notify(ctx context.Context, event events.Event) error {
	if n.Client == nil || event.Topic != events.TopicOrderCreated {
		return nil
	}
	var order events.OrderCreated
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return fmt.Errorf("task notifier: decode payload: %w", err)
	}
	body, err := json.Marshal(OrderPayload{EventID: event.ID, OccurredAt: event.OccurredAt, Order: order})
	if err != nil {
		return fmt.Errorf("task notifier: encode payload: %w", err)
	}

	var joined error
	for _, kind := range n.kinds() {
		_, err := n.Client.EnqueueContext(ctx, asynq.NewTask(kind, body), n.options(kind, order.OrderID)...)
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			err = nil
		}
		obs.RecordSideEffect("enqueue_"+kind, err)
		if err != nil {
			joined = errors.Join(joined, fmt.Errorf("enqueue %s: %w", kind, err))
		}
	}
	return joined
}

func (n TaskNotifier) kinds() []string {
	out := make([]string, 0, 3)
	if n.Email {
		out = append(out, TypeConfirmationEmail)
	}
	if n.Push {
		out = append(out, TypePush)
	}
	if n.Loyalty {
		out = append(out, TypeLoyaltyCredit)
	}
	return out
}

func (n TaskNotifier) options(kind, orderID string) []asynq.Option {
	maxRetry := n.MaxRetry
	if maxRetry <= 0 {
		maxRetry = 5
	}
	opts := []asynq.Option{
		asynq.TaskID(kind + ":" + orderID),
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(30 * time.Second),
	}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	return opts
}
