package ratelimit

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestParseDecision(t *testing.T) {
	d, err := parseDecision([]any{int64(0), int64(3), "1500"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Allowed || d.Remaining != 3 || d.RetryAfter != 1500*time.Millisecond {
		t.Fatalf("unexpected decision %+v", d)
	}

	if _, err := parseDecision([]any{int64(1), int64(2)}); err == nil {
		t.Fatal("expected error for short response")
	}
	if _, err := parseDecision([]any{int64(1), []byte("x"), int64(0)}); err == nil {
		t.Fatal("expected error for unsupported field type")
	}
}

func TestNewRedisTokenBucketValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	if _, err := NewRedisTokenBucket(nil, 10, time.Minute, ""); err == nil {
		t.Fatal("expected error for nil client")
	}
	if _, err := NewRedisTokenBucket(client, 0, time.Minute, ""); err == nil {
		t.Fatal("expected error for zero capacity")
	}
	if _, err := NewRedisTokenBucket(client, 10, 0, ""); err == nil {
		t.Fatal("expected error for zero window")
	}

	bucket, err := NewRedisTokenBucket(client, 60, time.Minute, "")
	if err != nil {
		t.Fatalf("new bucket: %v", err)
	}
	if bucket.keyPrefix != "bioconvert:ratelimit" {
		t.Fatalf("unexpected default prefix %s", bucket.keyPrefix)
	}
	if bucket.refillPerMS != 0.001 {
		t.Fatalf("expected one token per second, got %v per ms", bucket.refillPerMS)
	}
}
