package telemetry

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/dunamismax/bioconvert/internal/config"
)

func TestSetupTracingDisabled(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	for _, exporter := range []string{"", "none", " NONE "} {
		shutdown, err := SetupTracing(context.Background(), "bioconvert-test", config.TracingConfig{Exporter: exporter}, logger)
		if err != nil {
			t.Fatalf("exporter %q: %v", exporter, err)
		}
		if err := shutdown(context.Background()); err != nil {
			t.Fatalf("exporter %q: shutdown: %v", exporter, err)
		}
	}
}

func TestSetupTracingRejectsBadConfig(t *testing.T) {
	for _, cfg := range []config.TracingConfig{
		{Exporter: "jaeger"},
		{Exporter: "otlp"},
	} {
		if _, err := SetupTracing(context.Background(), "bioconvert-test", cfg, nil); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
