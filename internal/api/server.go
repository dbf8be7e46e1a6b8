package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/dunamismax/bioconvert/internal/domain"
	"github.com/dunamismax/bioconvert/internal/queue"
	"github.com/dunamismax/bioconvert/internal/storage"
	"github.com/dunamismax/bioconvert/internal/store"
	"github.com/hibiken/asynq"
	"github.com/klauspost/compress/gzhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultMaxBodyBytes = 16 << 20

type Server struct {
	logger                *log.Logger
	converter             converter
	queueClient           queueEnqueuer
	jobStore              store.JobStore
	batches               batchStore
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	maxBodyBytes          int64
	metrics               *metrics
	tracer                trace.Tracer
	now                   func() time.Time
	mux                   *http.ServeMux
	handler               http.Handler
}

type converter interface {
	Convert(ctx context.Context, req convert.Request) (convert.Result, error)
}

type queueEnqueuer interface {
	EnqueueConvertBatch(ctx context.Context, payload queue.ConvertBatchPayload) (*asynq.TaskInfo, error)
}

type batchStore interface {
	PutBatch(ctx context.Context, jobID string, req domain.ConvertRequest) (string, error)
	GetResult(ctx context.Context, key string) (storage.Result, error)
}

// Options tunes the optional parts of the server. Zero values disable rate
// limiting and use a 16 MiB body cap.
type Options struct {
	MaxBodyBytes           int64
	RateLimiter            RateLimiter
	RateLimitSubjectHeader string
}

func NewServer(logger *log.Logger, conv converter, queueClient queueEnqueuer, jobStore store.JobStore, batches batchStore, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.RateLimitSubjectHeader == "" {
		opts.RateLimitSubjectHeader = "X-Client-ID"
	}
	if batches == nil {
		batches = unavailableBatchStore{}
	}

	s := &Server{
		logger:                logger,
		converter:             conv,
		queueClient:           queueClient,
		jobStore:              jobStore,
		batches:               batches,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: opts.RateLimitSubjectHeader,
		maxBodyBytes:          opts.MaxBodyBytes,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("bioconvert/api"),
		now:                   time.Now,
		mux:                   http.NewServeMux(),
	}
	s.routes()
	s.handler = s.metrics.withHTTPMetrics(s.withTracing(gzhttp.GzipHandler(s.mux)))
	return s
}

type unavailableBatchStore struct{}

func (unavailableBatchStore) PutBatch(context.Context, string, domain.ConvertRequest) (string, error) {
	return "", errors.New("object storage is unavailable")
}

func (unavailableBatchStore) GetResult(context.Context, string) (storage.Result, error) {
	return storage.Result{}, errors.New("object storage is unavailable")
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/convert", s.handleConvert)
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}/result", s.handleGetJobResult)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, into any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
