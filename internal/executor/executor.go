// Package executor wraps provider calls with retry, backoff and timeout.
// It converts every failure into a usable answer: the caller always gets a
// successful result, even if the text is an apology.
package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/internal/provider"
	"github.com/PageSage/pagesage/pkg/types"
)

const (
	// DefaultMaxRetries is the attempt budget per provider call
	DefaultMaxRetries = 3
	// DefaultTimeout bounds one attempt
	DefaultTimeout = 15 * time.Second
	// maxBackoff caps the exponential backoff delay
	maxBackoff = 8 * time.Second
)

// Apologies by failure kind, shown when every attempt failed
var apologies = map[types.ErrorKind]string{
	types.ErrAuth:             "I couldn't authenticate with the answer service. Please check the configured API keys.",
	types.ErrRateLimit:        "The answer service is receiving too many requests right now. Please try again in a moment.",
	types.ErrTimeout:          "The answer took too long to arrive. Please try again.",
	types.ErrNetwork:          "I couldn't reach the answer service. Please check your connection and try again.",
	types.ErrBadResponseShape: "I received an answer I couldn't understand. Please try again.",
	types.ErrUnknown:          "Something went wrong while answering. Please try again.",
}

// Apology returns the user-facing text for an exhausted failure kind
func Apology(kind types.ErrorKind) string {
	if msg, ok := apologies[kind]; ok {
		return msg
	}
	return apologies[types.ErrUnknown]
}

// FailureHook is notified of every failed attempt, for diagnostics.
// pageURL is the URL of the page context the request carried, or "".
type FailureHook func(providerName string, attempt int, pageURL string, err *types.ProviderError)

// Executor runs provider calls under a retry and timeout policy
type Executor struct {
	maxRetries int
	timeout    time.Duration
	sleep      func(time.Duration) // injectable for tests
	onFailure  FailureHook
	log        *logger.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithMaxRetries sets the attempt budget
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithTimeout sets the per-attempt deadline
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithSleep replaces the backoff sleeper, used by tests
func WithSleep(sleep func(time.Duration)) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithFailureHook registers a hook called on every failed attempt
func WithFailureHook(hook FailureHook) Option {
	return func(e *Executor) { e.onFailure = hook }
}

// New creates an Executor
func New(log *logger.Logger, opts ...Option) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	e := &Executor{
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		sleep:      time.Sleep,
		log:        log.WithComponent("executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// backoffDelay is 1s, 2s, 4s, ... capped at maxBackoff
func backoffDelay(attempt int) time.Duration {
	d := time.Second << uint(attempt)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}

// Execute runs the provider call with retries. It never reports failure to
// the caller: when every attempt fails the result carries an apology text
// and the last error stays available in Err for diagnostics.
func (e *Executor) Execute(ctx context.Context, p provider.Provider, req provider.Request) types.ProviderResult {
	var last types.ProviderResult
	authRetried := false
	unknownRetried := false
	pageURL := ""
	if req.Page != nil {
		pageURL = req.Page.URL
	}

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		if ctx.Err() != nil {
			break
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		res := p.Call(attemptCtx, req)
		cancel()

		if res.Err == nil && strings.TrimSpace(res.Text) == "" {
			// An empty body with no error is still not an answer
			res.Err = &types.ProviderError{Kind: types.ErrBadResponseShape, Message: "empty response body"}
		}

		if res.OK() {
			if attempt > 0 {
				e.log.Info("%s succeeded on attempt %d", p.Name(), attempt+1)
			}
			return res
		}
		last = res

		e.log.Warn("%s attempt %d failed: %v", p.Name(), attempt+1, res.Err)
		if e.onFailure != nil {
			e.onFailure(p.Name(), attempt+1, pageURL, res.Err)
		}

		if res.Err.Kind == types.ErrAuth {
			// An auth failure is not retried with the same credential, but a
			// provider with an alternative credential style gets one shot.
			if !authRetried {
				if sw, ok := p.(provider.AuthSwitcher); ok && sw.AltAuth() {
					authRetried = true
					continue
				}
			}
			break
		}
		if !res.Err.Kind.Retryable() {
			break
		}
		if res.Err.Kind == types.ErrUnknown {
			// An unclassified failure gets a single retry, not the full budget
			if unknownRetried {
				break
			}
			unknownRetried = true
		}

		if attempt < e.maxRetries-1 {
			e.sleep(backoffDelay(attempt))
		}
	}

	kind := types.ErrUnknown
	if last.Err != nil {
		kind = last.Err.Kind
	} else if ctx.Err() != nil {
		kind = types.ErrTimeout
		last.Err = &types.ProviderError{Kind: kind, Message: fmt.Sprintf("canceled: %v", ctx.Err())}
	}

	e.log.Error("%s exhausted retries (%s)", p.Name(), kind)
	return types.ProviderResult{
		Text:  Apology(kind),
		Model: p.Name(),
		Err:   last.Err,
	}
}
