package pipeline

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
)

// Phase is where a batch run is in its lifecycle.
type Phase int

const (
	Idle Phase = iota
	Running
	Completed
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// LoadingPhrases rotate while a batch runs.
var LoadingPhrases = []string{
	"Brewing property insights...",
	"Consulting the AI council...",
	"Digging through digital archives...",
	"Uncovering contact details...",
	"Connecting the dots...",
	"Cross-referencing data points...",
	"Zuno's AI is on the case!",
	"Finalizing discoveries...",
}

// State is an immutable view of a batch run. Every transition returns a new value and
// leaves the receiver untouched; transitions that do not apply to the current phase are
// no-ops.
type State struct {
	ID    string      `json:"id,omitempty"`
	Phase Phase       `json:"phase"`
	Mode  enrich.Mode `json:"-"`
	Deep  bool        `json:"deepResearch"`

	Total int `json:"total"`
	// Index is the 0-based position of the item in flight.
	Index int   `json:"index"`
	Rows  []Row `json:"rows"`

	Progress   int    `json:"progress"`
	StatusText string `json:"statusText"`
	Phrase     string `json:"loadingPhrase"`

	// EstimatedSeconds is the advisory total; RemainingSeconds counts it down once per tick.
	EstimatedSeconds int `json:"estimatedSeconds"`
	ElapsedSeconds   int `json:"elapsedSeconds"`
	RemainingSeconds int `json:"remainingSeconds"`

	Summary *Summary `json:"summary,omitempty"`

	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
}

// Start begins run id over total items. It applies from any phase except Running.
func (s State) Start(id string, total int, mode enrich.Mode, phrase string, now time.Time) State {
	if s.Phase == Running {
		return s
	}
	est := total * int(mode.PerItemEstimate()/time.Second)
	return State{
		ID:               id,
		Phase:            Running,
		Mode:             mode,
		Deep:             mode == enrich.Deep,
		Total:            total,
		Rows:             []Row{},
		Phrase:           phrase,
		EstimatedSeconds: est,
		RemainingSeconds: est,
		StartedAt:        now,
	}
}

// Begin marks item i, whose lead is l, as in flight.
func (s State) Begin(i int, l lead.Lead) State {
	if s.Phase != Running {
		return s
	}
	s.Index = i
	s.StatusText = fmt.Sprintf("Processing %d of %d: %s", i+1, s.Total, l.Address)
	return s
}

// Record appends a completed row and recomputes progress.
func (s State) Record(row Row) State {
	if s.Phase != Running || len(s.Rows) >= s.Total {
		return s
	}
	s.Rows = append(slices.Clip(s.Rows), row)
	s.Progress = progress(len(s.Rows), s.Total)
	return s
}

// Tick advances the countdown by one second.
func (s State) Tick() State {
	if s.Phase != Running {
		return s
	}
	s.ElapsedSeconds++
	s.RemainingSeconds = max(0, s.EstimatedSeconds-s.ElapsedSeconds)
	return s
}

// Rotate swaps the loading phrase.
func (s State) Rotate(phrase string) State {
	if s.Phase != Running {
		return s
	}
	s.Phrase = phrase
	return s
}

// Finish completes the run and computes its summary.
func (s State) Finish(now time.Time) State {
	if s.Phase != Running {
		return s
	}
	sum := Summarize(s.Rows)
	s.Phase = Completed
	s.Summary = &sum
	s.Progress = 100
	s.RemainingSeconds = 0
	s.StatusText = ""
	s.Phrase = ""
	s.FinishedAt = now
	return s
}

// Abort stops the run between items. Completed rows are kept; no summary is produced.
func (s State) Abort(now time.Time) State {
	if s.Phase != Running {
		return s
	}
	s.Phase = Aborted
	s.RemainingSeconds = 0
	s.StatusText = ""
	s.Phrase = ""
	s.FinishedAt = now
	return s
}

func progress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// nextPhrase picks a phrase different from prev. intn must return a value in [0, n).
func nextPhrase(prev string, intn func(n int) int) string {
	candidates := make([]string, 0, len(LoadingPhrases))
	for _, p := range LoadingPhrases {
		if p != prev {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return prev
	}
	return candidates[intn(len(candidates))]
}
