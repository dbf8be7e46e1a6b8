package domain

import (
	"errors"
	"testing"

	"github.com/dunamismax/bioconvert/internal/convert"
)

func TestCreateJobRequestValidate(t *testing.T) {
	valid := CreateJobRequest{
		ConvertRequest: ConvertRequest{
			Values:       map[string]string{"Left Thumb": "AAAA"},
			SourceFormat: "ISO19794_4_2011",
			TargetFormat: "IMAGE/PNG",
		},
		WebhookURL: "https://example.com/hooks/bioconvert",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	invalid := CreateJobRequest{}
	if err := invalid.Validate(); err == nil {
		t.Fatal("expected validation error for empty request")
	}

	missingTarget := valid
	missingTarget.TargetFormat = " "
	if err := missingTarget.Validate(); err == nil {
		t.Fatal("expected validation error for missing targetFormat")
	}

	badWebhook := valid
	badWebhook.WebhookURL = "ftp://example.com/hook"
	if err := badWebhook.Validate(); err == nil {
		t.Fatal("expected validation error for unsupported webhook scheme")
	}
}

func TestServiceErrorOf(t *testing.T) {
	got := ServiceErrorOf(convert.NewError(convert.KindInvalidBase64, errors.New("illegal byte")))
	if got.ErrorCode != "MOS-CNV-006" {
		t.Fatalf("expected MOS-CNV-006, got %s", got.ErrorCode)
	}
	if got.Message != "source value is not url-safe base64" {
		t.Fatalf("unexpected message %q", got.Message)
	}

	technical := ServiceErrorOf(errors.New("disk on fire"))
	if technical.ErrorCode != "MOS-CNV-500" || technical.Message != "disk on fire" {
		t.Fatalf("unexpected technical error %+v", technical)
	}
}

func TestJobTerminal(t *testing.T) {
	for status, want := range map[string]bool{
		JobStatusQueued:     false,
		JobStatusProcessing: false,
		JobStatusSucceeded:  true,
		JobStatusFailed:     true,
	} {
		if got := (Job{Status: status}).Terminal(); got != want {
			t.Fatalf("status %s: expected terminal=%v, got %v", status, want, got)
		}
	}
}
