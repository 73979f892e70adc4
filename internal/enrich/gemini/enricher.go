// Package gemini implements enrichment and nearby-property scans on the Gemini API with
// Google Search grounding.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/redact"
)

const DefaultModel = "gemini-2.5-flash"

// MissingKeyMessage is the soft error every enrichment returns when no API key is set.
const MissingKeyMessage = "CRITICAL CONFIGURATION ERROR: Gemini API Key not configured. AI search cannot be performed."

type Config struct {
	APIKey string
	Model  string

	// BaseURL overrides the Gemini API base URL. Useful for proxies/testing.
	BaseURL string

	Logger *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Enricher struct {
	client *genai.Client
	model  string
	log    *zap.Logger
	now    func() time.Time
}

var (
	_ enrich.Enricher     = (*Enricher)(nil)
	_ enrich.NearbyFinder = (*Enricher)(nil)
)

// New builds an Enricher. Without an API key no client is created and every call reports
// MissingKeyMessage instead of reaching the network.
func New(ctx context.Context, cfg Config) (*Enricher, error) {
	e := &Enricher{
		model: strings.TrimSpace(cfg.Model),
		log:   cfg.Logger,
		now:   cfg.Now,
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.now == nil {
		e.now = time.Now
	}

	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		e.log.Warn("gemini api key not configured; enrichment calls will report a configuration error")
		return e, nil
	}

	cc := &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		cc.HTTPOptions.BaseURL = strings.TrimSpace(cfg.BaseURL)
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	e.client = client
	return e, nil
}

// Model is the model name requests are sent to.
func (e *Enricher) Model() string { return e.model }

// Enrich asks the model for contact intelligence on l.
//
// Only transport and API failures are returned as errors; they are classified so the
// worker can retry the transient ones. Everything else, including empty or unparseable
// replies, comes back as a Result with Error set.
func (e *Enricher) Enrich(ctx context.Context, l lead.Lead, mode enrich.Mode) (enrich.Result, error) {
	if e.client == nil {
		return enrich.Result{Error: MissingKeyMessage}, nil
	}

	prompt := buildPrompt(l.Query(), mode, e.now())
	resp, err := e.client.Models.GenerateContent(
		ctx,
		e.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:    genai.Ptr[float32](0.1),
			TopP:           genai.Ptr[float32](0.90),
			CandidateCount: 1,
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
		},
	)
	if err != nil {
		return enrich.Result{}, classifyErr(err)
	}

	sources := extractGroundingSources(resp)
	text := responseText(resp)
	body := extractJSON(text)
	if body == "" {
		reason := "AI response did not contain text output or was empty."
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			reason = fmt.Sprintf("AI response was blocked. Reason: %s.", resp.PromptFeedback.BlockReason)
		}
		return enrich.Result{
			Error:            "AI System Error: " + reason,
			GroundingSources: sources,
		}, nil
	}

	var out enrich.Result
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		e.log.Warn("gemini: unparseable reply",
			zap.String("lead_id", l.ID),
			zap.String("snippet", snippet(text, 100)),
			redact.Error(err),
		)
		return enrich.Result{
			Error: fmt.Sprintf("System Error during AI search: %s.", redact.Message(err)),
		}, nil
	}
	out.GroundingSources = sources
	if strings.TrimSpace(out.GeneratedAt) == "" {
		out.GeneratedAt = isoTimestamp(e.now())
	}
	return out, nil
}

var nearbySchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"id":               {Type: genai.TypeString, Description: "A unique identifier for the property, e.g., 'near-prop-1'."},
			"address":          {Type: genai.TypeString, Description: "The street address of the property."},
			"city":             {Type: genai.TypeString, Description: "The city where the property is located."},
			"state":            {Type: genai.TypeString, Description: "The state abbreviation, e.g., 'CA'."},
			"description":      {Type: genai.TypeString, Description: "A brief, neutral description of the property."},
			"reasonForBenefit": {Type: genai.TypeString, Description: "A concise explanation of why this property is a potentially beneficial opportunity."},
		},
		Required: []string{"id", "address", "city", "state", "description", "reasonForBenefit"},
	},
}

// FindNearby asks for 3 to 5 opportunities near the coordinate. Failures are logged and
// produce an empty slice.
func (e *Enricher) FindNearby(ctx context.Context, latitude, longitude float64) []enrich.NearbyProperty {
	if e.client == nil {
		e.log.Error("gemini: nearby scan skipped, api key not configured")
		return []enrich.NearbyProperty{}
	}

	resp, err := e.client.Models.GenerateContent(
		ctx,
		e.model,
		genai.Text(nearbyPrompt(latitude, longitude)),
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr[float32](0.2),
			TopP:             genai.Ptr[float32](0.95),
			CandidateCount:   1,
			ResponseMIMEType: "application/json",
			ResponseSchema:   nearbySchema,
		},
	)
	if err != nil {
		e.log.Error("gemini: nearby scan failed", redact.Error(err))
		return []enrich.NearbyProperty{}
	}

	body := extractJSON(responseText(resp))
	if body == "" {
		e.log.Warn("gemini: nearby scan returned an empty response")
		return []enrich.NearbyProperty{}
	}
	var props []enrich.NearbyProperty
	if err := json.Unmarshal([]byte(body), &props); err != nil {
		e.log.Error("gemini: nearby scan reply is not a property array", zap.Error(err))
		return []enrich.NearbyProperty{}
	}
	if props == nil {
		props = []enrich.NearbyProperty{}
	}
	return props
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	return resp.Text()
}

var fence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// extractJSON returns the body of the first fenced block, or the trimmed text when there
// is no fence.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	if m := fence.FindStringSubmatch(text); m != nil && strings.TrimSpace(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	return text
}

func extractGroundingSources(resp *genai.GenerateContentResponse) []enrich.GroundingSource {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return []enrich.GroundingSource{}
	}
	md := resp.Candidates[0].GroundingMetadata
	out := []enrich.GroundingSource{}
	if md == nil {
		return out
	}
	for _, chunk := range md.GroundingChunks {
		if chunk == nil {
			continue
		}
		var uri, title string
		if chunk.Web != nil {
			uri, title = chunk.Web.URI, chunk.Web.Title
		}
		if chunk.RetrievedContext != nil {
			if uri == "" {
				uri = chunk.RetrievedContext.URI
			}
			if title == "" {
				title = chunk.RetrievedContext.Title
			}
		}
		if strings.TrimSpace(uri) == "" {
			continue
		}
		if strings.TrimSpace(title) == "" {
			title = "Unknown Source"
		}
		out = append(out, enrich.GroundingSource{URI: uri, Title: title})
	}
	return out
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	wrapped := eris.Wrap(err, "gemini: generate content")
	// Wrap transient failures so the worker will retry with backoff.
	if code, ok := apiCode(err); ok {
		if code == 429 || code/100 == 5 {
			return &enrich.TransientError{Err: wrapped}
		}
		return wrapped
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &enrich.TransientError{Err: wrapped}
	}
	return wrapped
}

func apiCode(err error) (int, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, true
	}
	return 0, false
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
