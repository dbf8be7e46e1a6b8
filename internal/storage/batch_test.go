package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dunamismax/bioconvert/internal/domain"
)

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func newMemoryObjects() *memoryObjects {
	return &memoryObjects{objects: map[string][]byte{}, types: map[string]string{}}
}

func (m *memoryObjects) ReadObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("get object %s: %w", key, ErrObjectNotFound)
	}
	return data, nil
}

func (m *memoryObjects) WriteObject(_ context.Context, key string, data []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

func (m *memoryObjects) ObjectExists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok, nil
}

func TestBatchStoredCompressed(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()
	batches := NewBatches(objects)

	value := string(bytes.Repeat([]byte("QUFBQUFB"), 512))
	req := domain.ConvertRequest{
		Values:       map[string]string{"Left Thumb": value, "Right Thumb": value},
		SourceFormat: "ISO19794_4_2011",
		TargetFormat: "IMAGE/PNG",
	}

	key, err := batches.PutBatch(ctx, "job-1", req)
	if err != nil {
		t.Fatalf("put batch: %v", err)
	}
	if key != "batches/job-1.json.zst" {
		t.Fatalf("unexpected key %s", key)
	}
	if objects.types[key] != compressedJSON {
		t.Fatalf("expected content type %s, got %s", compressedJSON, objects.types[key])
	}
	if stored := len(objects.objects[key]); stored >= len(value) {
		t.Fatalf("expected compressed object smaller than one value, got %d bytes", stored)
	}

	got, err := batches.GetBatch(ctx, key)
	if err != nil {
		t.Fatalf("get batch: %v", err)
	}
	if got.SourceFormat != req.SourceFormat || got.Values["Right Thumb"] != value {
		t.Fatalf("batch did not survive storage: %+v", got.SourceFormat)
	}
}

func TestResultRoundTripAndErrors(t *testing.T) {
	ctx := context.Background()
	objects := newMemoryObjects()
	batches := NewBatches(objects)

	key, err := batches.PutResult(ctx, "job-2", Result{Values: map[string]string{"k": "iVBORw0KGgo"}})
	if err != nil {
		t.Fatalf("put result: %v", err)
	}
	got, err := batches.GetResult(ctx, key)
	if err != nil {
		t.Fatalf("get result: %v", err)
	}
	if got.Values["k"] != "iVBORw0KGgo" {
		t.Fatalf("unexpected result %+v", got)
	}

	if _, err := batches.GetResult(ctx, "results/missing.json.zst"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}

	objects.objects["results/plain.json.zst"] = []byte(`{"values":{}}`)
	_, err = batches.GetResult(ctx, "results/plain.json.zst")
	if err == nil {
		t.Fatalf("expected decompress error, got %v", err)
	}
}

func TestStoredResult(t *testing.T) {
	ctx := context.Background()
	b := NewBatches(newMemoryObjects())

	if _, ok, err := b.StoredResult(ctx, "job-1"); err != nil || ok {
		t.Fatalf("expected no stored result, got ok=%v err=%v", ok, err)
	}
	if _, err := b.PutResult(ctx, "job-1", Result{Values: map[string]string{"k": "v"}}); err != nil {
		t.Fatalf("put result: %v", err)
	}
	key, ok, err := b.StoredResult(ctx, "job-1")
	if err != nil || !ok || key != ResultKey("job-1") {
		t.Fatalf("expected stored result at %s, got key=%s ok=%v err=%v", ResultKey("job-1"), key, ok, err)
	}
}
