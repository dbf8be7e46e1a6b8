package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/dunamismax/bioconvert/internal/domain"
	"github.com/dunamismax/bioconvert/internal/id"
	"github.com/dunamismax/bioconvert/internal/queue"
	"github.com/dunamismax/bioconvert/internal/storage"
	"github.com/dunamismax/bioconvert/internal/store"
)

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateJobRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		status := http.StatusBadRequest
		if isBodyTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !s.allow(w, r, len(req.Values)) {
		return
	}

	ctx := r.Context()
	now := s.now().UTC()
	jobID := id.New()

	inputKey, err := s.batches.PutBatch(ctx, jobID, req.ConvertRequest)
	if err != nil {
		s.logger.Printf("store batch failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store batch"})
		return
	}

	job := domain.Job{
		ID:           jobID,
		Status:       domain.JobStatusQueued,
		SourceFormat: req.SourceFormat,
		TargetFormat: req.TargetFormat,
		WebhookURL:   req.WebhookURL,
		InputKey:     inputKey,
		Entries:      len(req.Values),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.jobStore.Create(ctx, job); err != nil {
		s.logger.Printf("create job failed job_id=%s err=%v", job.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	taskInfo, err := s.queueClient.EnqueueConvertBatch(ctx, queue.ConvertBatchPayload{
		JobID:        job.ID,
		InputKey:     inputKey,
		SourceFormat: job.SourceFormat,
		TargetFormat: job.TargetFormat,
		WebhookURL:   job.WebhookURL,
		RequestedAt:  now,
	})
	if err != nil {
		s.logger.Printf("enqueue failed job_id=%s err=%v", job.ID, err)
		if _, failErr := s.jobStore.Fail(ctx, job.ID, convert.KindTechnical.Code(), "failed to enqueue job"); failErr != nil {
			s.logger.Printf("mark job failed job_id=%s err=%v", job.ID, failErr)
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":      job.ID,
		"status":      job.Status,
		"entries":     job.Entries,
		"queue":       taskInfo.Queue,
		"task_id":     taskInfo.ID,
		"status_url":  "/v1/jobs/" + job.ID,
		"result_url":  "/v1/jobs/" + job.ID + "/result",
		"enqueued_at": taskInfo.NextProcessAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleGetJobResult answers with the same envelope as a synchronous conversion
// once the job is terminal.
func (s *Server) handleGetJobResult(w http.ResponseWriter, r *http.Request) {
	job, ok := s.loadJob(w, r)
	if !ok {
		return
	}

	if !job.Terminal() {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":  "job has not finished",
			"status": job.Status,
		})
		return
	}
	if job.Status == domain.JobStatusFailed {
		resp := domain.NewResponse[map[string]string](job.ID, "", s.now())
		resp.Errors = []domain.ServiceError{{ErrorCode: job.ErrorCode, Message: job.ErrorMessage}}
		writeJSON(w, http.StatusOK, resp)
		return
	}

	result, err := s.batches.GetResult(r.Context(), job.ResultKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job result is no longer available"})
		return
	}
	if err != nil {
		s.logger.Printf("load result failed job_id=%s key=%s err=%v", job.ID, job.ResultKey, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load result"})
		return
	}

	resp := domain.NewResponse[map[string]string](job.ID, "", s.now())
	resp.Response = &result.Values
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) loadJob(w http.ResponseWriter, r *http.Request) (domain.Job, bool) {
	jobID := r.PathValue("id")
	if jobID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return domain.Job{}, false
	}

	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Printf("fetch job failed job_id=%s err=%v", jobID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return domain.Job{}, false
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": store.ErrJobNotFound.Error()})
		return domain.Job{}, false
	}
	return job, true
}
