package main

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shpitdev/zuno-lead-enrichment/internal/mockgemini"
)

func TestEchoReply(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		prompt string
		want   string
	}{
		{name: "enrich", prompt: `**INPUT: "J Doe, 123 Main St"**`, want: `"subject":"J Doe, 123 Main St"`},
		{name: "no match", prompt: `**INPUT: "1 Nomatch Rd"**`, want: `"status":"no_match"`},
		{name: "nearby", prompt: "Find 3-5 properties near 38.25, -85.75", want: "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := echoReply(mockgemini.Call{Prompt: tt.prompt})
			if !strings.Contains(got.Text, tt.want) {
				t.Fatalf("echoReply(%q).Text=%q, want it to contain %q", tt.prompt, got.Text, tt.want)
			}
		})
	}
}

func TestEchoReply_IsValidJSONInsideFence(t *testing.T) {
	t.Parallel()

	got := echoReply(mockgemini.Call{Prompt: `**INPUT: "123 Main St"**`})
	body := strings.TrimSuffix(strings.TrimPrefix(got.Text, "```json\n"), "\n```")
	var v map[string]any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("reply is not JSON: %v\n%s", err, body)
	}
	if len(got.Grounding) != 1 {
		t.Fatalf("expected one grounding chunk, got %d", len(got.Grounding))
	}
}
