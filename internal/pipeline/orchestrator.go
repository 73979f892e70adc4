package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shpitdev/zuno-lead-enrichment/internal/enrich"
	"github.com/shpitdev/zuno-lead-enrichment/internal/lead"
	"github.com/shpitdev/zuno-lead-enrichment/internal/monitoring"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/core"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/redact"
	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/worker"
)

var (
	ErrBatchRunning = errors.New("pipeline: a batch is already running")
	ErrNoLeads      = errors.New("pipeline: no leads to process")
)

type Options struct {
	// Worker carries the per-call retry, timeout and pacing knobs. The zero value makes
	// one unbounded attempt per lead.
	Worker worker.Options

	// TickInterval drives the countdown. Defaults to one second.
	TickInterval time.Duration
	// PhraseInterval drives loading-phrase rotation. Defaults to 3.5 seconds.
	PhraseInterval time.Duration

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
	Now     func() time.Time
	// Intn picks loading phrases. Defaults to math/rand/v2.IntN.
	Intn func(n int) int
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.PhraseInterval <= 0 {
		o.PhraseInterval = 3500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Intn == nil {
		o.Intn = rand.IntN
	}
	return o
}

// Orchestrator owns the single batch run of a process. At most one run is active at a
// time and its AI calls never overlap.
type Orchestrator struct {
	enricher enrich.Enricher
	opts     Options

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOrchestrator(e enrich.Enricher, opts Options) *Orchestrator {
	return &Orchestrator{enricher: e, opts: opts.withDefaults()}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Running reports whether a batch is in progress.
func (o *Orchestrator) Running() bool {
	return o.Snapshot().Phase == Running
}

// Abort cancels the active run. The item in flight is dropped and the run ends Aborted.
// It reports whether a run was active.
func (o *Orchestrator) Abort() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Phase != Running || o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Run processes leads and blocks until the batch completes or is aborted.
func (o *Orchestrator) Run(ctx context.Context, leads []lead.Lead, mode enrich.Mode) (State, error) {
	done, err := o.Start(ctx, leads, mode)
	if err != nil {
		return State{}, err
	}
	return <-done, nil
}

// Start launches a batch in the background. The returned channel yields the final state
// once and is then closed.
func (o *Orchestrator) Start(ctx context.Context, leads []lead.Lead, mode enrich.Mode) (<-chan State, error) {
	if len(leads) == 0 {
		return nil, ErrNoLeads
	}

	o.mu.Lock()
	if o.state.Phase == Running {
		o.mu.Unlock()
		return nil, ErrBatchRunning
	}
	runCtx, cancel := context.WithCancel(ctx)
	id := uuid.NewString()
	o.state = o.state.Start(id, len(leads), mode, LoadingPhrases[o.opts.Intn(len(LoadingPhrases))], o.opts.Now())
	o.cancel = cancel
	o.done = make(chan struct{})
	done := o.done
	o.mu.Unlock()

	out := make(chan State, 1)
	go func() {
		defer close(out)
		defer close(done)
		defer cancel()
		out <- o.run(runCtx, id, leads, mode)
	}()
	return out, nil
}

// Wait blocks until the active run, if any, has finished.
func (o *Orchestrator) Wait() {
	o.mu.Lock()
	done := o.done
	o.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (o *Orchestrator) update(f func(State) State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state = f(o.state)
}

func (o *Orchestrator) run(ctx context.Context, id string, leads []lead.Lead, mode enrich.Mode) State {
	log := o.opts.Logger.With(zap.String("batch_id", id), zap.String("mode", mode.String()))
	log.Info("batch started", zap.Int("leads", len(leads)))

	countdown := startPeriodic(o.opts.TickInterval, func() {
		o.update(State.Tick)
	})
	defer countdown.Stop()
	phrases := startPeriodic(o.opts.PhraseInterval, func() {
		o.update(func(s State) State { return s.Rotate(nextPhrase(s.Phrase, o.opts.Intn)) })
	})
	defer phrases.Stop()

	processor := core.ProcessFunc[lead.Lead, enrich.Result](func(ctx context.Context, l lead.Lead) (enrich.Result, error) {
		return o.enricher.Enrich(ctx, l, mode)
	})

	var itemStart time.Time
	_, err := worker.ProcessSequential(ctx, leads, processor, worker.Hooks[lead.Lead, enrich.Result]{
		OnStart: func(i int, l lead.Lead) {
			itemStart = o.opts.Now()
			o.update(func(s State) State { return s.Begin(i, l) })
		},
		OnResult: func(res worker.Result[lead.Lead, enrich.Result]) error {
			row := rowFor(res.Input, res.Output, res.Err)
			o.opts.Metrics.ObserveLead(string(row.AIStatus), o.opts.Now().Sub(itemStart))
			log.Debug("lead processed",
				zap.String("lead_id", row.ID),
				zap.String("status", string(row.AIStatus)),
			)
			o.update(func(s State) State { return s.Record(row) })
			return nil
		},
	}, o.opts.Worker)

	// Tickers stop before the terminal transition so no tick lands after it.
	countdown.Stop()
	phrases.Stop()

	now := o.opts.Now()
	var final State
	if err != nil {
		o.update(func(s State) State { return s.Abort(now) })
		final = o.Snapshot()
		o.opts.Metrics.IncBatch("aborted")
		log.Warn("batch aborted", zap.Int("completed", len(final.Rows)), zap.Error(err))
		return final
	}

	o.update(func(s State) State { return s.Finish(now) })
	final = o.Snapshot()
	o.opts.Metrics.IncBatch("completed")
	log.Info("batch completed",
		zap.Int("total", final.Summary.TotalRecords),
		zap.Int("with_contacts", final.Summary.RecordsWithContacts),
		zap.Int("errors", final.Summary.ErrorsEncountered),
	)
	return final
}

// rowFor turns one call outcome into a row. A hard failure becomes a synthetic error
// result so the batch keeps going.
func rowFor(l lead.Lead, r enrich.Result, err error) Row {
	if err != nil {
		r = enrich.Result{Error: "System error: " + redact.Message(err)}
	}
	return NewRow(l, r)
}

// periodic calls fn every interval until Stop. Stop is idempotent and returns only once
// fn can no longer run.
type periodic struct {
	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func startPeriodic(interval time.Duration, fn func()) *periodic {
	p := &periodic{stop: make(chan struct{})}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				fn()
			case <-p.stop:
				return
			}
		}
	}()
	return p
}

func (p *periodic) Stop() {
	p.once.Do(func() { close(p.stop) })
	p.wg.Wait()
}
