package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

// TypeOrderPlaced is the asynq task type emitted after an order is committed.
const TypeOrderPlaced = "order:placed"

const orderPlacedMaxRetry = 5

// OrderPlaced is the task payload for an order confirmation.
type OrderPlaced struct {
	OrderID int64  `json:"orderId"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Total   string `json:"total"`
}

// NewOrderPlacedTask builds the task. The task id makes re-enqueueing the same order a no-op.
func NewOrderPlacedTask(p OrderPlaced) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("notify: encode order placed: %w", err)
	}
	return asynq.NewTask(TypeOrderPlaced, payload,
		asynq.MaxRetry(orderPlacedMaxRetry),
		asynq.TaskID(fmt.Sprintf("order-placed:%d", p.OrderID)),
	), nil
}

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer publishes notification tasks through asynq.
type Enqueuer struct {
	Client taskEnqueuer
}

// OrderPlaced enqueues an order confirmation. Duplicate task ids are not errors.
func (e Enqueuer) OrderPlaced(ctx context.Context, p OrderPlaced) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewOrderPlacedTask(p)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrTaskIDConflict) {
		return fmt.Errorf("notify: enqueue order placed: %w", err)
	}
	return nil
}
