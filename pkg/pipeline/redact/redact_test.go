package redact_test

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/redact"
)

func TestSecrets(t *testing.T) {
	t.Parallel()

	googleKey := "AIza" + strings.Repeat("x", 35)
	tests := []struct {
		name     string
		in       string
		want     string
		mustDrop string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain", in: " connection refused ", want: "connection refused"},
		{name: "bearer", in: "401: Bearer abc.def.ghi rejected", want: "401: Bearer <redacted> rejected", mustDrop: "abc.def.ghi"},
		{name: "kv", in: "bad request api_key=s3cr3t", want: "bad request <redacted_kv>", mustDrop: "s3cr3t"},
		{name: "query_param", in: "POST /v1beta/models?key=s3cr3t&alt=sse", mustDrop: "s3cr3t"},
		{name: "google_key", in: "using " + googleKey + " now", want: "using <redacted_key> now", mustDrop: googleKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redact.Secrets(tt.in)
			if tt.want != "" && got != tt.want {
				t.Fatalf("Secrets(%q)=%q want %q", tt.in, got, tt.want)
			}
			if tt.mustDrop != "" && strings.Contains(got, tt.mustDrop) {
				t.Fatalf("Secrets(%q)=%q still contains %q", tt.in, got, tt.mustDrop)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	t.Parallel()

	if got := redact.Message(nil); got != "" {
		t.Fatalf("Message(nil)=%q want empty", got)
	}
	if got := redact.Message(errors.New("auth: api_key=s3cr3t")); got != "auth: <redacted_kv>" {
		t.Fatalf("Message=%q", got)
	}
}

func TestErrorField(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	zap.New(core).Error("call failed", redact.Error(errors.New("401: Bearer tok123")))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	got, ok := entries[0].ContextMap()["error"].(string)
	if !ok || got != "401: Bearer <redacted>" {
		t.Fatalf("error field=%v", entries[0].ContextMap()["error"])
	}
}
