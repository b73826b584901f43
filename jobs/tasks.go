package jobs

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPublishProduct projects a published draft onto the product table.
	TaskPublishProduct = "catalog:publish_product"
)

// ErrInvalidPayload marks a task body that can never be processed.
var ErrInvalidPayload = errors.New("jobs: invalid task payload")

// PublishProductPayload identifies the draft by its code. The draft itself is
// re-read when the task runs.
type PublishProductPayload struct {
	DraftID       int64     `json:"draft_id"`
	Code          string    `json:"code"`
	PublishedAt   time.Time `json:"published_at"`
	CorrelationID string    `json:"correlation_id"`
}

// NewPublishProductTask constructs an Asynq task, assigning a correlation id
// when the payload has none.
func NewPublishProductTask(payload PublishProductPayload, opts ...asynq.Option) (*asynq.Task, error) {
	if payload.Code == "" {
		return nil, ErrInvalidPayload
	}
	if payload.CorrelationID == "" {
		payload.CorrelationID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPublishProduct, body, opts...), nil
}

func decodePublishProduct(task *asynq.Task) (PublishProductPayload, error) {
	var payload PublishProductPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, ErrInvalidPayload
	}
	if payload.Code == "" {
		return payload, ErrInvalidPayload
	}
	return payload, nil
}
