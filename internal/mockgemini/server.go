// Package mockgemini is a minimal stand-in for the Gemini generateContent REST endpoint.
package mockgemini

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Call records one generateContent request.
type Call struct {
	Model  string
	Prompt string
	APIKey string
	// Tools is the raw tools array the client sent, if any.
	Tools json.RawMessage
	// ResponseMIMEType is taken from generationConfig.
	ResponseMIMEType string
}

// Chunk is one grounding chunk in a reply.
type Chunk struct {
	URI   string
	Title string
	// Retrieved puts the chunk under retrievedContext instead of web.
	Retrieved bool
}

// Reply scripts one response. A non-zero StatusCode produces an API error body instead.
type Reply struct {
	Text        string
	Grounding   []Chunk
	BlockReason string

	StatusCode int
	ErrMessage string

	// Delay holds the response back. The request context still wins.
	Delay time.Duration
}

// Server answers generateContent calls from a queue of replies, falling back to a
// responder func when the queue is empty.
type Server struct {
	mu        sync.Mutex
	calls     []Call
	queue     []Reply
	responder func(Call) Reply
	apiKey    string
}

// New constructs a server that answers with an empty JSON object until scripted.
func New() *Server {
	return &Server{
		responder: func(Call) Reply { return Reply{Text: "{}"} },
	}
}

// RequireAPIKey rejects requests whose x-goog-api-key header differs from key. An empty
// key disables the check.
func (s *Server) RequireAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = strings.TrimSpace(key)
}

// Enqueue appends replies served in order, one per call.
func (s *Server) Enqueue(replies ...Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, replies...)
}

// Respond sets the fallback used once the queue is drained.
func (s *Server) Respond(f func(Call) Reply) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responder = f
}

// Calls returns a snapshot of calls made to the server.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Handler returns an http.Handler that serves the mock API.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handle)
}

type generateRequest struct {
	Contents []struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"contents"`
	Tools            json.RawMessage `json:"tools"`
	GenerationConfig struct {
		ResponseMIMEType string `json:"responseMimeType"`
	} `json:"generationConfig"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	// /{version}/models/{model}:generateContent
	model, ok := modelFromPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var prompt strings.Builder
	for _, c := range req.Contents {
		for _, p := range c.Parts {
			prompt.WriteString(p.Text)
		}
	}

	call := Call{
		Model:            model,
		Prompt:           prompt.String(),
		APIKey:           r.Header.Get("x-goog-api-key"),
		Tools:            req.Tools,
		ResponseMIMEType: req.GenerationConfig.ResponseMIMEType,
	}
	if call.APIKey == "" {
		call.APIKey = r.URL.Query().Get("key")
	}

	s.mu.Lock()
	s.calls = append(s.calls, call)
	expected := s.apiKey
	var reply Reply
	if len(s.queue) > 0 {
		reply = s.queue[0]
		s.queue = s.queue[1:]
	} else {
		reply = s.responder(call)
	}
	s.mu.Unlock()

	if expected != "" && call.APIKey != expected {
		writeAPIError(w, http.StatusUnauthorized, "API key not valid. Please pass a valid API key.")
		return
	}

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	if reply.StatusCode != 0 {
		writeAPIError(w, reply.StatusCode, reply.ErrMessage)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(encodeReply(reply))
}

func modelFromPath(p string) (string, bool) {
	const suffix = ":generateContent"
	if !strings.HasSuffix(p, suffix) {
		return "", false
	}
	p = strings.TrimSuffix(p, suffix)
	i := strings.LastIndex(p, "/models/")
	if i < 0 {
		return "", false
	}
	return p[i+len("/models/"):], true
}

func encodeReply(r Reply) map[string]any {
	out := map[string]any{}
	if r.BlockReason != "" {
		out["promptFeedback"] = map[string]any{"blockReason": r.BlockReason}
		return out
	}

	candidate := map[string]any{
		"content": map[string]any{
			"role":  "model",
			"parts": []map[string]any{{"text": r.Text}},
		},
		"finishReason": "STOP",
	}
	if len(r.Grounding) > 0 {
		chunks := make([]map[string]any, 0, len(r.Grounding))
		for _, c := range r.Grounding {
			ref := map[string]any{"uri": c.URI}
			if c.Title != "" {
				ref["title"] = c.Title
			}
			key := "web"
			if c.Retrieved {
				key = "retrievedContext"
			}
			chunks = append(chunks, map[string]any{key: ref})
		}
		candidate["groundingMetadata"] = map[string]any{"groundingChunks": chunks}
	}
	out["candidates"] = []map[string]any{candidate}
	return out
}

func writeAPIError(w http.ResponseWriter, code int, msg string) {
	if msg == "" {
		msg = http.StatusText(code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
			"status":  statusName(code),
		},
	})
}

func statusName(code int) string {
	switch code {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		if code >= 500 {
			return "INTERNAL"
		}
		return fmt.Sprintf("HTTP_%d", code)
	}
}
