package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/bioconvert/internal/config"
	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/dunamismax/bioconvert/internal/domain"
	"github.com/dunamismax/bioconvert/internal/queue"
	"github.com/dunamismax/bioconvert/internal/storage"
	"github.com/dunamismax/bioconvert/internal/store"
	"github.com/dunamismax/bioconvert/internal/webhook"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Server struct {
	logger        *log.Logger
	server        *asynq.Server
	sem           chan struct{}
	converter     converter
	batches       batchStore
	webhookClient webhookSender
	jobStore      store.JobStore
	metrics       *metrics
	tracer        trace.Tracer
}

type converter interface {
	Convert(ctx context.Context, req convert.Request) (convert.Result, error)
}

type batchStore interface {
	GetBatch(ctx context.Context, key string) (domain.ConvertRequest, error)
	PutResult(ctx context.Context, jobID string, result storage.Result) (string, error)
	StoredResult(ctx context.Context, jobID string) (string, bool, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

func NewServer(
	logger *log.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	conv converter,
	batches batchStore,
	webhookClient webhookSender,
	jobStore store.JobStore,
) (*Server, error) {
	if conv == nil {
		return nil, fmt.Errorf("converter is required")
	}
	if batches == nil {
		return nil, fmt.Errorf("batch storage is required")
	}
	if jobStore == nil {
		return nil, fmt.Errorf("job store is required")
	}

	s := newServer(logger, workerCfg.MaxActiveJobs, conv, batches, webhookClient, jobStore)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: workerCfg.Concurrency,
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Printf("task failed type=%s retry=%d/%d err=%v", task.Type(), retried, maxRetry, err)
			}),
		},
	)
	return s, nil
}

func newServer(logger *log.Logger, maxActiveJobs int, conv converter, batches batchStore, webhookClient webhookSender, jobStore store.JobStore) *Server {
	return &Server{
		logger:        logger,
		sem:           make(chan struct{}, max(1, maxActiveJobs)),
		converter:     conv,
		batches:       batches,
		webhookClient: webhookClient,
		jobStore:      jobStore,
		metrics:       newMetrics(),
		tracer:        otel.Tracer("bioconvert/worker"),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeConvertBatch, s.handleConvertBatch)
	return s.server.Run(mux)
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

// handleConvertBatch runs one asynchronous job. Conversion errors are final and
// skip retries since the same input fails the same way; storage and store errors
// are returned for asynq to retry.
func (s *Server) handleConvertBatch(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseConvertBatchPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.convert_batch", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_format", payload.SourceFormat),
		attribute.String("job.target_format", payload.TargetFormat),
	)
	defer span.End()
	defer func() {
		source := formatLabel(payload.SourceFormat)
		s.metrics.jobDuration.WithLabelValues(source, outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(source, outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("wait for job slot: %w", ctx.Err())
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	job, ok, err := s.jobStore.Get(ctx, payload.JobID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load job: %w", err)
	}
	if !ok {
		return fmt.Errorf("job %s: %w: %w", payload.JobID, store.ErrJobNotFound, asynq.SkipRetry)
	}

	// A retry after a failed webhook finds the job already converted.
	if job.Status != domain.JobStatusSucceeded {
		s.logger.Printf("Working... job_id=%s source_format=%s target_format=%s input_key=%s",
			payload.JobID, payload.SourceFormat, payload.TargetFormat, payload.InputKey)
		s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing)

		if job, err = s.convert(ctx, payload); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "conversion failed")
			return err
		}
	}

	if err := s.dispatchWebhook(ctx, payload, webhook.EventJobCompleted, map[string]any{
		"job_id":        job.ID,
		"status":        job.Status,
		"source_format": job.SourceFormat,
		"target_format": job.TargetFormat,
		"entries":       job.Entries,
		"result_url":    "/v1/jobs/" + job.ID + "/result",
		"requested_at":  payload.RequestedAt,
		"completed_at":  job.UpdatedAt,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.JobStatusSucceeded
	span.SetStatus(codes.Ok, "converted")
	return nil
}

func (s *Server) convert(ctx context.Context, payload queue.ConvertBatchPayload) (domain.Job, error) {
	// A delivery that stored the result but died before completing the job
	// only has the bookkeeping left.
	storedKey, stored, err := s.batches.StoredResult(ctx, payload.JobID)
	if err != nil {
		return domain.Job{}, fmt.Errorf("check result: %w", err)
	}
	if stored {
		job, err := s.jobStore.Complete(ctx, payload.JobID, storedKey)
		if err != nil {
			return domain.Job{}, fmt.Errorf("complete job: %w", err)
		}
		s.logger.Printf("Resumed job_id=%s result_key=%s", payload.JobID, storedKey)
		return job, nil
	}

	req, err := s.batches.GetBatch(ctx, payload.InputKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		s.fail(ctx, payload, convert.NewError(convert.KindTechnical, err))
		return domain.Job{}, fmt.Errorf("load batch: %w: %w", err, asynq.SkipRetry)
	}
	if err != nil {
		return domain.Job{}, fmt.Errorf("load batch: %w", err)
	}

	result, err := s.converter.Convert(ctx, req.ToConvert())
	if err != nil {
		s.fail(ctx, payload, err)
		return domain.Job{}, fmt.Errorf("convert batch: %w: %w", err, asynq.SkipRetry)
	}

	resultKey, err := s.batches.PutResult(ctx, payload.JobID, storage.Result{Values: result.Values})
	if err != nil {
		return domain.Job{}, fmt.Errorf("store result: %w", err)
	}

	job, err := s.jobStore.Complete(ctx, payload.JobID, resultKey)
	if err != nil {
		return domain.Job{}, fmt.Errorf("complete job: %w", err)
	}

	s.metrics.entriesTotal.WithLabelValues(payload.SourceFormat, payload.TargetFormat).Add(float64(len(result.Values)))
	s.logger.Printf("Converted job_id=%s entries=%d result_key=%s", payload.JobID, len(result.Values), resultKey)
	return job, nil
}

func (s *Server) fail(ctx context.Context, payload queue.ConvertBatchPayload, convErr error) {
	svcErr := domain.ServiceErrorOf(convErr)
	s.metrics.failuresTotal.WithLabelValues(svcErr.ErrorCode).Inc()
	s.logger.Printf("conversion failed job_id=%s code=%s err=%v", payload.JobID, svcErr.ErrorCode, convErr)

	if _, err := s.jobStore.Fail(ctx, payload.JobID, svcErr.ErrorCode, svcErr.Message); err != nil {
		s.logger.Printf("job fail update failed job_id=%s err=%v", payload.JobID, err)
	}

	// The failure is final either way; a lost notification is only logged.
	_ = s.dispatchWebhook(ctx, payload, webhook.EventJobFailed, map[string]any{
		"job_id":        payload.JobID,
		"status":        domain.JobStatusFailed,
		"source_format": payload.SourceFormat,
		"target_format": payload.TargetFormat,
		"requested_at":  payload.RequestedAt,
		"failed_at":     time.Now().UTC(),
		"errors":        []domain.ServiceError{svcErr},
	})
}

func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) {
	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Printf("job status update failed job_id=%s status=%s err=%v", jobID, status, err)
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, payload queue.ConvertBatchPayload, event string, body map[string]any) error {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.logger.Printf("webhook delivery failed job_id=%s event=%s err=%v", payload.JobID, event, err)
		return fmt.Errorf("dispatch webhook: %w", err)
	}

	return nil
}
