package api

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dunamismax/bioconvert/internal/convert"
	"github.com/dunamismax/bioconvert/internal/domain"
	"github.com/dunamismax/bioconvert/internal/iso19794"
	"github.com/dunamismax/bioconvert/internal/queue"
	"github.com/dunamismax/bioconvert/internal/ratelimit"
	"github.com/dunamismax/bioconvert/internal/storage"
	"github.com/dunamismax/bioconvert/internal/store"
	"github.com/dunamismax/bioconvert/internal/wsq/wsqtest"
	"github.com/hibiken/asynq"
)

type fakeQueue struct {
	payloads []queue.ConvertBatchPayload
	err      error
}

func (q *fakeQueue) EnqueueConvertBatch(_ context.Context, payload queue.ConvertBatchPayload) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.payloads = append(q.payloads, payload)
	return &asynq.TaskInfo{ID: payload.JobID, Queue: "default", NextProcessAt: time.Now()}, nil
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get object %s: %w", key, storage.ErrObjectNotFound)
	}
	return data, nil
}

func (m *memoryObjects) WriteObject(_ context.Context, key string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

type fakeLimiter struct {
	allowed bool
	costs   []int64
}

func (l *fakeLimiter) Allow(_ context.Context, _ string, cost int64) (ratelimit.Decision, error) {
	l.costs = append(l.costs, cost)
	return ratelimit.Decision{Allowed: l.allowed, RetryAfter: 1500 * time.Millisecond}, nil
}

type testServer struct {
	*Server
	queue   *fakeQueue
	jobs    *store.MemoryJobStore
	batches *storage.Batches
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()

	q := &fakeQueue{}
	jobs := store.NewMemoryJobStore()
	batches := storage.NewBatches(&memoryObjects{objects: map[string][]byte{}})
	s := NewServer(log.New(io.Discard, "", 0), convert.NewDefault(), q, jobs, batches, opts)
	return &testServer{Server: s, queue: q, jobs: jobs, batches: batches}
}

func fingerValue(t *testing.T, width, height int) string {
	t.Helper()

	record, err := iso19794.EncodeFinger(&iso19794.FingerRecord{
		DistinctPositionsCount: 1,
		Representations: []iso19794.FingerRepresentation{{
			Position:    1,
			BitDepth:    8,
			Compression: iso19794.FingerCompressionWSQ,
			Width:       uint16(width),
			Height:      uint16(height),
			Image:       wsqtest.Blank(width, height),
		}},
	})
	if err != nil {
		t.Fatalf("encode finger record: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(record)
}

func convertBody(values map[string]string, source, target string) string {
	body, _ := json.Marshal(map[string]any{
		"id":          "mosip.bioconvert",
		"version":     "1.0",
		"requesttime": "2026-10-19T10:00:00.000Z",
		"request": map[string]any{
			"values":           values,
			"sourceFormat":     source,
			"targetFormat":     target,
			"sourceParameters": map[string]string{"key": "value"},
		},
	})
	return string(body)
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	ID           string                `json:"id"`
	Version      string                `json:"version"`
	ResponseTime string                `json:"responsetime"`
	Response     map[string]string     `json:"response"`
	Errors       []domain.ServiceError `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return env
}

func TestConvertSucceeds(t *testing.T) {
	s := newTestServer(t, Options{})
	value := fingerValue(t, 32, 24)

	rec := do(s.Handler(), http.MethodPost, "/v1/convert",
		convertBody(map[string]string{"Left Thumb": value, "Right Thumb": value}, "ISO19794_4_2011", "IMAGE/PNG"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	env := decodeEnvelope(t, rec)
	if env.ID != "mosip.bioconvert" || env.Version != "1.0" {
		t.Fatalf("expected id and version to be echoed, got %q %q", env.ID, env.Version)
	}
	if _, err := time.Parse(domain.ResponseTimeLayout, env.ResponseTime); err != nil {
		t.Fatalf("unexpected responsetime %q: %v", env.ResponseTime, err)
	}
	if len(env.Errors) != 0 || len(env.Response) != 2 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	png, err := base64.RawURLEncoding.DecodeString(env.Response["Left Thumb"])
	if err != nil || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("expected base64url PNG, got err=%v", err)
	}
}

func TestConvertErrors(t *testing.T) {
	s := newTestServer(t, Options{})
	value := fingerValue(t, 8, 8)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"null request", `{"id":"x","version":"1.0","request":null}`, http.StatusInternalServerError, "MOS-CNV-001"},
		{"malformed json", `{"id":`, http.StatusInternalServerError, "MOS-CNV-001"},
		{"empty values", convertBody(map[string]string{}, "ISO19794_4_2011", "IMAGE/JPEG"), http.StatusInternalServerError, "MOS-CNV-500"},
		{"null values", convertBody(nil, "ISO19794_4_2011", "IMAGE/JPEG"), http.StatusInternalServerError, "MOS-CNV-500"},
		{"bad source", convertBody(map[string]string{"k": value}, "ISO19794_3_2011", "IMAGE/JPEG"), http.StatusBadRequest, "MOS-CNV-003"},
		{"bad target", convertBody(map[string]string{"k": value}, "ISO19794_4_2011", "IMAGE/JPEGLL"), http.StatusBadRequest, "MOS-CNV-004"},
		{"blank value", convertBody(map[string]string{"k": " "}, "ISO19794_4_2011", "IMAGE/JPEG"), http.StatusBadRequest, "MOS-CNV-005"},
		{"bad base64", convertBody(map[string]string{"k": "12SGVsbGxyz8gd29ybGQ="}, "ISO19794_4_2011", "IMAGE/JPEG"), http.StatusBadRequest, "MOS-CNV-006"},
		{"wrong modality", convertBody(map[string]string{"k": value}, "ISO19794_6_2011", "IMAGE/JPEG"), http.StatusBadRequest, "MOS-CNV-010"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s.Handler(), http.MethodPost, "/v1/convert", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			env := decodeEnvelope(t, rec)
			if len(env.Errors) != 1 || env.Errors[0].ErrorCode != tt.code {
				t.Fatalf("expected error %s, got %+v", tt.code, env.Errors)
			}
			if env.Response != nil {
				t.Fatalf("expected no response values, got %v", env.Response)
			}
		})
	}
}

func TestConvertRejectsOversizedBody(t *testing.T) {
	s := newTestServer(t, Options{MaxBodyBytes: 64})
	body := convertBody(map[string]string{"k": fingerValue(t, 8, 8)}, "ISO19794_4_2011", "IMAGE/JPEG")

	rec := do(s.Handler(), http.MethodPost, "/v1/convert", body)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestConvertRateLimitedByEntries(t *testing.T) {
	limiter := &fakeLimiter{allowed: false}
	s := newTestServer(t, Options{RateLimiter: limiter})
	value := fingerValue(t, 8, 8)

	rec := do(s.Handler(), http.MethodPost, "/v1/convert",
		convertBody(map[string]string{"a": value, "b": value, "c": value}, "ISO19794_4_2011", "IMAGE/JPEG"))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After 2, got %q", rec.Header().Get("Retry-After"))
	}
	if len(limiter.costs) != 1 || limiter.costs[0] != 3 {
		t.Fatalf("expected one charge of 3 tokens, got %v", limiter.costs)
	}

	if rec := do(s.Handler(), http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected health checks to bypass the limiter, got %d", rec.Code)
	}
}

func TestConvertCompressesLargeResponses(t *testing.T) {
	s := newTestServer(t, Options{})
	value := fingerValue(t, 64, 48)
	body := convertBody(map[string]string{"a": value, "b": value, "c": value}, "ISO19794_4_2011", "IMAGE/JPEG")

	req := httptest.NewRequest(http.MethodPost, "/v1/convert", strings.NewReader(body))
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("expected gzip response, got headers %v", rec.Header())
	}
	zr, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	var env envelope
	if err := json.NewDecoder(zr).Decode(&env); err != nil {
		t.Fatalf("decode gzip body: %v", err)
	}
	if len(env.Response) != 3 {
		t.Fatalf("expected 3 values, got %d", len(env.Response))
	}
}

func TestCreateJobLifecycle(t *testing.T) {
	s := newTestServer(t, Options{})
	value := fingerValue(t, 16, 16)
	body, _ := json.Marshal(map[string]any{
		"values":       map[string]string{"Left Index": value},
		"sourceFormat": "ISO19794_4_2011",
		"targetFormat": "IMAGE/PNG",
		"webhookUrl":   "https://example.com/hook",
	})

	rec := do(s.Handler(), http.MethodPost, "/v1/jobs", string(body))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		JobID  string `json:"job_id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.Status != domain.JobStatusQueued {
		t.Fatalf("expected queued, got %s", created.Status)
	}

	if len(s.queue.payloads) != 1 {
		t.Fatalf("expected one enqueued task, got %d", len(s.queue.payloads))
	}
	payload := s.queue.payloads[0]
	if payload.JobID != created.JobID || payload.WebhookURL != "https://example.com/hook" {
		t.Fatalf("unexpected payload %+v", payload)
	}
	batch, err := s.batches.GetBatch(context.Background(), payload.InputKey)
	if err != nil {
		t.Fatalf("stored batch: %v", err)
	}
	if batch.Values["Left Index"] != value {
		t.Fatal("stored batch does not carry the submitted value")
	}

	rec = do(s.Handler(), http.MethodGet, "/v1/jobs/"+created.JobID, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"status":"queued"`) {
		t.Fatalf("unexpected job status response %d: %s", rec.Code, rec.Body.String())
	}

	rec = do(s.Handler(), http.MethodGet, "/v1/jobs/"+created.JobID+"/result", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before completion, got %d", rec.Code)
	}

	ctx := context.Background()
	resultKey, err := s.batches.PutResult(ctx, created.JobID, storage.Result{Values: map[string]string{"Left Index": "iVBORw0KGgo"}})
	if err != nil {
		t.Fatalf("put result: %v", err)
	}
	if _, err := s.jobs.Complete(ctx, created.JobID, resultKey); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	rec = do(s.Handler(), http.MethodGet, "/v1/jobs/"+created.JobID+"/result", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after completion, got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Response["Left Index"] != "iVBORw0KGgo" {
		t.Fatalf("unexpected result envelope %+v", env)
	}
}

func TestFailedJobResultCarriesError(t *testing.T) {
	s := newTestServer(t, Options{})
	ctx := context.Background()
	if err := s.jobs.Create(ctx, domain.Job{ID: "job-9", Status: domain.JobStatusProcessing}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if _, err := s.jobs.Fail(ctx, "job-9", "MOS-CNV-011", "compression type not supported"); err != nil {
		t.Fatalf("fail job: %v", err)
	}

	env := decodeEnvelope(t, do(s.Handler(), http.MethodGet, "/v1/jobs/job-9/result", ""))
	if len(env.Errors) != 1 || env.Errors[0].ErrorCode != "MOS-CNV-011" {
		t.Fatalf("expected MOS-CNV-011, got %+v", env.Errors)
	}
}

func TestExpiredJobResultIsNotFound(t *testing.T) {
	s := newTestServer(t, Options{})
	ctx := context.Background()
	if err := s.jobs.Create(ctx, domain.Job{ID: "job-10", Status: domain.JobStatusProcessing}); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	if _, err := s.jobs.Complete(ctx, "job-10", storage.ResultKey("job-10")); err != nil {
		t.Fatalf("complete job: %v", err)
	}

	if rec := do(s.Handler(), http.MethodGet, "/v1/jobs/job-10/result", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing result object, got %d", rec.Code)
	}
}

func TestCreateJobErrors(t *testing.T) {
	s := newTestServer(t, Options{})

	if rec := do(s.Handler(), http.MethodPost, "/v1/jobs", `{"values":{}}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid job, got %d", rec.Code)
	}
	if rec := do(s.Handler(), http.MethodPost, "/v1/jobs", `{"unknown":true}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
	if rec := do(s.Handler(), http.MethodGet, "/v1/jobs/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	s.queue.err = errors.New("redis down")
	body := `{"values":{"k":"AAAA"},"sourceFormat":"ISO19794_4_2011","targetFormat":"IMAGE/PNG"}`
	if rec := do(s.Handler(), http.MethodPost, "/v1/jobs", body); rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when enqueue fails, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, Options{})
	do(s.Handler(), http.MethodPost, "/v1/convert", convertBody(map[string]string{"k": "!"}, "ISO19794_4_2011", "IMAGE/PNG"))

	rec := do(s.Handler(), http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, want := range []string{
		"bioconvert_api_requests_total",
		`bioconvert_api_conversions_total{code="MOS-CNV-006",source_format="ISO19794_4_2011",target_format="IMAGE/PNG"} 1`,
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestRouteLabel(t *testing.T) {
	for path, want := range map[string]string{
		"/v1/convert":            "/v1/convert",
		"/v1/jobs":               "/v1/jobs",
		"/v1/jobs/abc123":        "/v1/jobs/{id}",
		"/v1/jobs/abc123/result": "/v1/jobs/{id}/result",
		"/favicon.ico":           "other",
	} {
		if got := routeLabel(path); got != want {
			t.Fatalf("routeLabel(%q): expected %s, got %s", path, want, got)
		}
	}
}

func TestStatusFor(t *testing.T) {
	for kind, want := range map[convert.Kind]int{
		convert.KindInvalidRequest:         http.StatusInternalServerError,
		convert.KindEmptySource:            http.StatusInternalServerError,
		convert.KindRasterDecodeFailed:     http.StatusInternalServerError,
		convert.KindTechnical:              http.StatusInternalServerError,
		convert.KindInvalidSourceFormat:    http.StatusBadRequest,
		convert.KindUnsupportedCompression: http.StatusBadRequest,
	} {
		if got := statusFor(kind); got != want {
			t.Fatalf("%s: expected %d, got %d", kind, want, got)
		}
	}
}
