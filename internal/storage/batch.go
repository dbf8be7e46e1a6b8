package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dunamismax/bioconvert/internal/domain"
	"github.com/klauspost/compress/zstd"
)

const compressedJSON = "application/zstd"

// ObjectStore is the raw object API the batch helpers build on. *Client
// implements it.
type ObjectStore interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
}

// Result is the stored outcome of a successful job: key to base64url image.
type Result struct {
	Values map[string]string `json:"values"`
}

func BatchKey(jobID string) string {
	return "batches/" + jobID + ".json.zst"
}

func ResultKey(jobID string) string {
	return "results/" + jobID + ".json.zst"
}

// Batches stores job inputs and outputs as zstd-compressed JSON objects.
type Batches struct {
	objects ObjectStore
}

func NewBatches(objects ObjectStore) *Batches {
	return &Batches{objects: objects}
}

func (b *Batches) PutBatch(ctx context.Context, jobID string, req domain.ConvertRequest) (string, error) {
	key := BatchKey(jobID)
	return key, b.put(ctx, key, req)
}

func (b *Batches) GetBatch(ctx context.Context, key string) (domain.ConvertRequest, error) {
	var req domain.ConvertRequest
	err := b.get(ctx, key, &req)
	return req, err
}

func (b *Batches) PutResult(ctx context.Context, jobID string, result Result) (string, error) {
	key := ResultKey(jobID)
	return key, b.put(ctx, key, result)
}

// StoredResult reports the result key of jobID when its result object already
// exists.
func (b *Batches) StoredResult(ctx context.Context, jobID string) (string, bool, error) {
	key := ResultKey(jobID)
	ok, err := b.objects.ObjectExists(ctx, key)
	if err != nil {
		return "", false, err
	}
	return key, ok, nil
}

func (b *Batches) GetResult(ctx context.Context, key string) (Result, error) {
	var result Result
	err := b.get(ctx, key, &result)
	return result, err
}

func (b *Batches) put(ctx context.Context, key string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return b.objects.WriteObject(ctx, key, compress(body), compressedJSON)
}

func (b *Batches) get(ctx context.Context, key string, into any) error {
	data, err := b.objects.ReadObject(ctx, key)
	if err != nil {
		return err
	}
	body, err := decompress(data)
	if err != nil {
		return fmt.Errorf("decompress %s: %w", key, err)
	}
	if err := json.Unmarshal(body, into); err != nil {
		return fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return nil
}

var (
	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
)

// The stateless EncodeAll/DecodeAll calls are safe for concurrent use on shared
// coders.
func codecs() (*zstd.Encoder, *zstd.Decoder) {
	codecOnce.Do(func() {
		encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	})
	return encoder, decoder
}

func compress(data []byte) []byte {
	enc, _ := codecs()
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func decompress(data []byte) ([]byte, error) {
	_, dec := codecs()
	return dec.DecodeAll(data, nil)
}
