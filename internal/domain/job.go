package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
)

// CreateJobRequest is the body of POST /v1/jobs. It carries the same batch as a
// synchronous conversion plus an optional completion webhook.
type CreateJobRequest struct {
	ConvertRequest
	WebhookURL string `json:"webhookUrl,omitempty"`
}

type Job struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	SourceFormat string    `json:"sourceFormat"`
	TargetFormat string    `json:"targetFormat"`
	WebhookURL   string    `json:"webhookUrl,omitempty"`
	InputKey     string    `json:"-"`
	ResultKey    string    `json:"-"`
	ErrorCode    string    `json:"errorCode,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	Entries      int       `json:"entries"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Terminal reports whether the job reached a final status.
func (j Job) Terminal() bool {
	return j.Status == JobStatusSucceeded || j.Status == JobStatusFailed
}

// Validate checks the envelope fields of an asynchronous job. Format tokens and
// values are left to the converter so that a job fails with the same error codes
// as a synchronous request.
func (r CreateJobRequest) Validate() error {
	if len(r.Values) == 0 {
		return errors.New("values must contain at least one entry")
	}
	if strings.TrimSpace(r.SourceFormat) == "" {
		return errors.New("sourceFormat is required")
	}
	if strings.TrimSpace(r.TargetFormat) == "" {
		return errors.New("targetFormat is required")
	}
	if r.WebhookURL != "" {
		u, err := url.Parse(r.WebhookURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("unsupported webhookUrl: %s", r.WebhookURL)
		}
	}
	return nil
}
