package worker

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"time"

	"github.com/shpitdev/zuno-lead-enrichment/pkg/pipeline/core"
	"golang.org/x/time/rate"
)

type Options struct {
	MaxRetries int

	// RequestTimeout bounds each processor call. Zero leaves calls unbounded.
	RequestTimeout time.Duration

	// RateLimitRPS paces calls to the processor. Set to <=0 to disable.
	RateLimitRPS float64

	// BackoffInitial is the initial sleep before retrying a transient failure.
	BackoffInitial time.Duration
	// BackoffMax caps exponential backoff.
	BackoffMax time.Duration
	// BackoffJitterFrac applies +/- jitter to backoff sleeps (0.2 = +/-20%).
	BackoffJitterFrac float64
}

// Result holds the output for one input item.
type Result[In any, Out any] struct {
	Index  int
	Input  In
	Output Out
	Err    error
}

// Hooks observe a sequential run. Both are optional.
type Hooks[In any, Out any] struct {
	// OnStart runs right before item idx is handed to the processor.
	OnStart func(idx int, in In)
	// OnResult runs after each item completes, in input order. A non-nil error stops the run.
	OnResult func(Result[In, Out]) error
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RequestTimeout < 0 {
		o.RequestTimeout = 0
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 200 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 2 * time.Second
	}
	if o.BackoffJitterFrac < 0 {
		o.BackoffJitterFrac = 0
	}
	return o
}

// ProcessSequential runs the processor over items one at a time, preserving input order.
// There is never more than one outstanding processor call.
//
// Per-item errors are recorded in the item's Result and do not stop the run. When ctx is
// cancelled the results completed so far are returned together with ctx.Err(); the item
// that was in flight is not included.
func ProcessSequential[In any, Out any](
	ctx context.Context,
	items []In,
	processor core.Processor[In, Out],
	hooks Hooks[In, Out],
	opts Options,
) ([]Result[In, Out], error) {
	opts = opts.withDefaults()

	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}

	out := make([]Result[In, Out], 0, len(items))
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if hooks.OnStart != nil {
			hooks.OnStart(i, item)
		}

		res := processOne(ctx, i, item, processor, limiter, opts)
		if res.Err != nil && ctx.Err() != nil && errors.Is(res.Err, ctx.Err()) {
			return out, ctx.Err()
		}
		out = append(out, res)

		if hooks.OnResult != nil {
			if err := hooks.OnResult(res); err != nil {
				return out, err
			}
		}
	}
	return out, nil
}

func processOne[In any, Out any](
	ctx context.Context,
	idx int,
	item In,
	processor core.Processor[In, Out],
	limiter *rate.Limiter,
	opts Options,
) Result[In, Out] {
	res, err := processWithRetry(ctx, item, processor, limiter, opts)
	return Result[In, Out]{
		Index:  idx,
		Input:  item,
		Output: res,
		Err:    err,
	}
}

func processWithRetry[In any, Out any](
	ctx context.Context,
	item In,
	processor core.Processor[In, Out],
	limiter *rate.Limiter,
	opts Options,
) (Out, error) {
	var lastOut Out
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return lastOut, err
		}

		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return lastOut, err
			}
		}

		reqCtx := context.WithValue(ctx, attemptKey{}, attempt+1)
		var cancel context.CancelFunc
		if opts.RequestTimeout > 0 {
			reqCtx, cancel = context.WithTimeout(reqCtx, opts.RequestTimeout)
		}
		result, err := processor.Process(reqCtx, item)
		lastOut = result
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return result, nil
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return lastOut, ctx.Err()
		}
		maxRetries := maxExtraRetries(opts.MaxRetries, err)
		if !isTransient(err) || attempt >= maxRetries {
			return lastOut, err
		}

		sleep := backoffSleep(opts.BackoffInitial, opts.BackoffMax, opts.BackoffJitterFrac, attempt)
		t := time.NewTimer(sleep)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return lastOut, ctx.Err()
		}
	}
}

type attemptKey struct{}

// Attempt returns the 1-based attempt number of the processor call running under ctx.
// Calls made outside ProcessSequential are attempt 1.
func Attempt(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey{}).(int); ok {
		return n
	}
	return 1
}

type retryCap interface {
	MaxExtraRetries() int
}

func maxExtraRetries(defaultRetries int, err error) int {
	if defaultRetries < 0 {
		defaultRetries = 0
	}
	var capErr retryCap
	if errors.As(err, &capErr) {
		limited := capErr.MaxExtraRetries()
		if limited < 0 {
			limited = 0
		}
		if limited < defaultRetries {
			return limited
		}
	}
	return defaultRetries
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return isTransient(err)
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *core.TransientError
	if errors.As(err, &te) {
		return true
	}
	var lte *core.LimitedTransientError
	if errors.As(err, &lte) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

func backoffSleep(initial, max time.Duration, jitterFrac float64, attempt int) time.Duration {
	sleep := initial
	for i := 0; i < attempt && sleep < max; i++ {
		sleep *= 2
		if sleep > max {
			sleep = max
			break
		}
	}
	if jitterFrac <= 0 {
		return sleep
	}
	// Apply +/- jitterFrac.
	j := 1 + (rand.Float64()*2-1)*jitterFrac
	return time.Duration(float64(sleep) * j)
}
