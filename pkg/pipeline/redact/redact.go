// Package redact scrubs credentials out of strings before they reach logs, rows or clients.
package redact

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

type rule struct {
	re   *regexp.Regexp
	with string
}

var rules = []rule{
	{regexp.MustCompile(`(?i)\bBearer\s+[^\s"']+`), "Bearer <redacted>"},
	// key=value and header forms, including ?key= in request URLs.
	{regexp.MustCompile(`(?i)\b(api[_-]?key|gemini[_-]?api[_-]?key|x-goog-api-key|key)\b\s*[:=]\s*[^\s"'&]+`), "<redacted_kv>"},
	// Bare Google API keys.
	{regexp.MustCompile(`\bAIza[0-9A-Za-z_\-]{35}\b`), "<redacted_key>"},
}

// Secrets removes obvious secret-bearing substrings from s.
func Secrets(s string) string {
	if s == "" {
		return ""
	}
	for _, r := range rules {
		s = r.re.ReplaceAllString(s, r.with)
	}
	return strings.TrimSpace(s)
}

// Message is Secrets(err.Error()), or "" for a nil error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}

// Error is a zap field carrying the redacted error message.
func Error(err error) zap.Field {
	return zap.String("error", Message(err))
}
