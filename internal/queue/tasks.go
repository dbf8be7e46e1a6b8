package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const TypeConvertBatch = "biometric:convert"

// ConvertBatchPayload references a batch already written to object storage; the
// records themselves never travel through redis.
type ConvertBatchPayload struct {
	JobID        string    `json:"job_id"`
	InputKey     string    `json:"input_key"`
	SourceFormat string    `json:"source_format"`
	TargetFormat string    `json:"target_format"`
	WebhookURL   string    `json:"webhook_url,omitempty"`
	RequestedAt  time.Time `json:"requested_at"`
}

func NewConvertBatchTask(payload ConvertBatchPayload) (*asynq.Task, error) {
	if payload.JobID == "" || payload.InputKey == "" {
		return nil, fmt.Errorf("convert payload requires job_id and input_key")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal convert payload: %w", err)
	}
	return asynq.NewTask(TypeConvertBatch, body), nil
}

func ParseConvertBatchPayload(task *asynq.Task) (ConvertBatchPayload, error) {
	var payload ConvertBatchPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ConvertBatchPayload{}, fmt.Errorf("unmarshal convert payload: %w", err)
	}
	return payload, nil
}
