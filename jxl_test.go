package jxl_test

import (
	"bytes"
	"testing"

	"go.uber.org/zap"

	"github.com/deepteams/jxl"
)

func TestDecodeRejectsBadMarker(t *testing.T) {
	_, err := jxl.Decode(bytes.NewReader([]byte{0xFF, 0x00, 0x01, 0x02}))
	if err == nil {
		t.Fatal("expected an error for a non-JXL marker")
	}
	code, ok := jxl.CodeOf(err)
	if !ok {
		t.Fatalf("expected a sticky code, got %v", err)
	}
	if code.String() != "!jxl" {
		t.Errorf("code = %q, want %q", code.String(), "!jxl")
	}
	if jxl.IsRetriable(err) {
		t.Error("a bad marker should not be retriable")
	}
}

func TestDecodeRetriableOnTruncatedInput(t *testing.T) {
	// Just the codestream marker, nothing else: the image header read
	// should run off the end of input and report the retriable "shrt"
	// condition (spec §7), not a hard failure.
	_, err := jxl.Decode(bytes.NewReader([]byte{0xFF, 0x0A}))
	if err == nil {
		t.Fatal("expected an error for truncated input")
	}
	if !jxl.IsRetriable(err) {
		t.Errorf("expected a retriable error, got %v", err)
	}
}

func TestNewDecoderWithLogger(t *testing.T) {
	logger := zap.NewNop()
	d := jxl.NewDecoder(jxl.WithLogger(logger.Sugar()))
	if d == nil {
		t.Fatal("NewDecoder returned nil")
	}
	_, err := d.Decode(bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected an error decoding an empty reader")
	}
}
