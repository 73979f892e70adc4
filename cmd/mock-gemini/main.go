// Command mock-gemini serves canned generateContent replies for local runs and demos.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"

	"github.com/shpitdev/zuno-lead-enrichment/internal/mockgemini"
)

var inputLine = regexp.MustCompile(`\*\*INPUT: "([^"]*)"\*\*`)

func main() {
	addr := defaultString("MOCK_GEMINI_ADDR", ":8090")
	apiKey := defaultString("MOCK_GEMINI_API_KEY", "")
	replyPath := defaultString("MOCK_GEMINI_REPLY", "")

	fs := flag.NewFlagSet("mock-gemini", flag.ExitOnError)
	fs.StringVar(&addr, "addr", addr, "Listen address")
	fs.StringVar(&apiKey, "api-key", apiKey, "Reject requests without this x-goog-api-key (empty accepts any)")
	fs.StringVar(&replyPath, "reply", replyPath, "File whose contents are returned as the model text for every call")
	_ = fs.Parse(os.Args[1:])

	srv := mockgemini.New()
	srv.RequireAPIKey(apiKey)

	if replyPath != "" {
		b, err := os.ReadFile(replyPath)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "read reply: %v\n", err)
			os.Exit(1)
		}
		text := string(b)
		srv.Respond(func(mockgemini.Call) mockgemini.Reply { return mockgemini.Reply{Text: text} })
	} else {
		srv.Respond(echoReply)
	}

	_, _ = fmt.Fprintf(os.Stdout, "mock-gemini listening on %s\n", addr)
	if err := http.ListenAndServe(addr, srv.Handler()); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// echoReply answers an enrichment prompt with a low-confidence contact for its input line.
// Nearby scans and anything unrecognised get an empty list.
func echoReply(c mockgemini.Call) mockgemini.Reply {
	m := inputLine.FindStringSubmatch(c.Prompt)
	if m == nil {
		return mockgemini.Reply{Text: "[]"}
	}
	subject := m[1]
	if strings.Contains(strings.ToLower(subject), "nomatch") {
		b, _ := json.Marshal(map[string]string{"status": "no_match", "message": "No public owner records found."})
		return mockgemini.Reply{Text: string(b)}
	}
	b, _ := json.Marshal(map[string]any{
		"subject": subject,
		"best_contact": map[string]string{
			"phone":      "555-0100",
			"email":      "owner@example.invalid",
			"confidence": "Low",
		},
		"search_log": []string{subject + " owner"},
		"sources":    []map[string]string{{"label": "Mock", "url": "https://example.invalid", "data_point": "phone"}},
	})
	return mockgemini.Reply{
		Text:      "```json\n" + string(b) + "\n```",
		Grounding: []mockgemini.Chunk{{URI: "https://example.invalid/records", Title: "Mock Records"}},
	}
}

func defaultString(envVar string, fallback string) string {
	v := strings.TrimSpace(os.Getenv(envVar))
	if v == "" {
		return fallback
	}
	return v
}
