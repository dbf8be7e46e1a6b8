package main

import (
	"bytes"
	"image/png"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dunamismax/bioconvert/internal/iso19794"
	"github.com/dunamismax/bioconvert/internal/wsq/wsqtest"
)

func discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func TestWrapThenConvert(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "thumb.wsq")
	if err := os.WriteFile(imagePath, wsqtest.Blank(32, 24), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var stdout bytes.Buffer
	code := run([]string{
		"wrap",
		"-modality", "finger",
		"-tag", strconv.Itoa(iso19794.FingerCompressionWSQ),
		"-width", "32",
		"-height", "24",
		"-out", filepath.Join(dir, "thumb.iso"),
		imagePath,
	}, &stdout, discard())
	if code != 0 {
		t.Fatalf("expected wrap exit 0, got %d: %s", code, stdout.String())
	}

	stdout.Reset()
	code = run([]string{"convert", "-source", "ISO19794_4_2011", "-target", "IMAGE/PNG", filepath.Join(dir, "thumb.iso")}, &stdout, discard())
	if code != 0 {
		t.Fatalf("expected convert exit 0, got %d: %s", code, stdout.String())
	}

	out := filepath.Join(dir, "thumb.png")
	if got := strings.TrimSpace(stdout.String()); got != out {
		t.Fatalf("expected output path %s, got %q", out, got)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 24 {
		t.Fatalf("expected 32x24, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestConvertFailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "a.iso")
	bad := filepath.Join(dir, "b.iso")

	record, err := wrapRecord("finger", iso19794.FingerCompressionWSQ, 32, 24, wsqtest.Blank(32, 24), time.Now())
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if err := os.WriteFile(good, record, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(bad, []byte("not a record"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if code := run([]string{"convert", "-target", "IMAGE/JPEG", good, bad}, io.Discard, discard()); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.jpg")); !os.IsNotExist(err) {
		t.Fatalf("expected no output for a failed batch, got %v", err)
	}
}

func TestConvertRejectsCollidingOutputs(t *testing.T) {
	dir := t.TempDir()
	record, err := wrapRecord("finger", iso19794.FingerCompressionWSQ, 32, 24, wsqtest.Blank(32, 24), time.Now())
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	first := filepath.Join(dir, "a.iso")
	second := filepath.Join(dir, "a.bin")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, record, 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	if code := run([]string{"convert", first, second}, io.Discard, discard()); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.png")); !os.IsNotExist(err) {
		t.Fatalf("expected nothing written for colliding outputs, got %v", err)
	}

	outputs, err := outputPaths([]string{first, filepath.Join(dir, "b.iso")}, ".png")
	if err != nil {
		t.Fatalf("expected distinct outputs, got %v", err)
	}
	if outputs[first] != filepath.Join(dir, "a.png") {
		t.Fatalf("expected %s, got %s", filepath.Join(dir, "a.png"), outputs[first])
	}
}

func TestWrapStampsCaptureTime(t *testing.T) {
	captured := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	data, err := wrapRecord("finger", iso19794.FingerCompressionWSQ, 1, 1, []byte{1}, captured)
	if err != nil {
		t.Fatalf("wrap: %v", err)
	}
	rec, err := iso19794.DecodeFinger(iso19794.VersionFinger2011, data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := rec.Representations[0].CaptureTime; got != iso19794.CaptureDateTimeOf(captured) || got.Year != 2025 {
		t.Fatalf("expected capture time %+v, got %+v", iso19794.CaptureDateTimeOf(captured), got)
	}
}

func TestConvertArguments(t *testing.T) {
	cases := map[string][]string{
		"no files":           {"convert"},
		"key with two files": {"convert", "-key", "x", "a", "b"},
		"unsupported target": {"convert", "-target", "ISO19794_4_2011/PNG", "a"},
		"unknown target":     {"convert", "-target", "image/png", "a"},
		"missing file":       {"convert", filepath.Join(t.TempDir(), "missing.iso")},
	}
	for name, args := range cases {
		if code := run(args, io.Discard, discard()); code != 1 {
			t.Fatalf("%s: expected exit 1, got %d", name, code)
		}
	}
}

func TestWrapRecordModalities(t *testing.T) {
	for _, modality := range []string{"finger", "face", "iris"} {
		if _, err := wrapRecord(modality, 0, 1, 1, []byte{1}, time.Now()); err != nil {
			t.Fatalf("%s: %v", modality, err)
		}
	}
	if _, err := wrapRecord("palm", 0, 1, 1, []byte{1}, time.Now()); err == nil {
		t.Fatalf("expected error for unknown modality")
	}
}

func TestRunUsage(t *testing.T) {
	var stdout bytes.Buffer
	if code := run(nil, &stdout, discard()); code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stdout.String(), "bioconvert convert") {
		t.Fatalf("expected usage text, got %q", stdout.String())
	}
	if code := run([]string{"bogus"}, io.Discard, discard()); code != 2 {
		t.Fatalf("expected exit 2 for unknown command, got %d", code)
	}
}
