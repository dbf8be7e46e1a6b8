package store

import (
	"context"
	"errors"

	"github.com/dunamismax/bioconvert/internal/domain"
)

var ErrJobNotFound = errors.New("job not found")

// JobStore persists asynchronous conversion jobs. Get reports a missing job with
// ok == false; the mutating methods return ErrJobNotFound.
type JobStore interface {
	Create(ctx context.Context, job domain.Job) error
	Get(ctx context.Context, id string) (domain.Job, bool, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Job, error)
	Complete(ctx context.Context, id, resultKey string) (domain.Job, error)
	Fail(ctx context.Context, id, errorCode, errorMessage string) (domain.Job, error)
}
