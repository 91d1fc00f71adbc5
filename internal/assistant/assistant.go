// Package assistant wires the whole query pipeline together: quota check,
// rate limit, routing, execution with retries, hybrid merging, formatting
// and bookkeeping. One submission in, exactly one answer out.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PageSage/pagesage/internal/diag"
	"github.com/PageSage/pagesage/internal/executor"
	"github.com/PageSage/pagesage/internal/format"
	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/internal/metrics"
	"github.com/PageSage/pagesage/internal/provider"
	"github.com/PageSage/pagesage/internal/ratelimit"
	"github.com/PageSage/pagesage/internal/router"
	"github.com/PageSage/pagesage/internal/session"
	"github.com/PageSage/pagesage/internal/usage"
	"github.com/PageSage/pagesage/pkg/types"
)

var (
	// ErrEmptyQuery is returned for blank submissions
	ErrEmptyQuery = errors.New("query is empty")
	// ErrQuotaExceeded is returned when the installation quota is spent
	ErrQuotaExceeded = errors.New("usage quota exceeded")
	// ErrRateLimited is returned when the session submits too fast
	ErrRateLimited = errors.New("too many queries, slow down")
)

// historyWindow is how many past exchanges are sent to the providers
const historyWindow = 10

// Assistant is the query pipeline facade
type Assistant struct {
	router     *router.Engine
	exec       *executor.Executor
	analytical provider.Provider
	realtime   provider.Provider
	meter      *usage.Meter
	sessions   *session.Store
	limiter    *ratelimit.Limiter
	collector  *metrics.Collector
	recorder   *diag.Recorder
	tracker    *usage.Tracker
	log        *logger.Logger
}

// Options carries the pipeline collaborators
type Options struct {
	Router     *router.Engine
	Executor   *executor.Executor
	Analytical provider.Provider
	Realtime   provider.Provider
	Meter      *usage.Meter
	Sessions   *session.Store
	Limiter    *ratelimit.Limiter
	Collector  *metrics.Collector
	Recorder   *diag.Recorder
	Tracker    *usage.Tracker
	Log        *logger.Logger
}

// New creates an Assistant. Both providers are required; every other
// collaborator defaults to a working in-memory implementation.
func New(opts Options) *Assistant {
	a := &Assistant{
		router:     opts.Router,
		exec:       opts.Executor,
		analytical: opts.Analytical,
		realtime:   opts.Realtime,
		meter:      opts.Meter,
		sessions:   opts.Sessions,
		limiter:    opts.Limiter,
		collector:  opts.Collector,
		recorder:   opts.Recorder,
		tracker:    opts.Tracker,
		log:        opts.Log,
	}
	if a.router == nil {
		a.router = router.New()
	}
	if a.log == nil {
		a.log = logger.Nop()
	}
	if a.exec == nil {
		a.exec = executor.New(a.log)
	}
	if a.meter == nil {
		a.meter = usage.NewMeter(0, nil, a.log)
	}
	if a.sessions == nil {
		a.sessions = session.NewStore(0, a.log)
	}
	if a.limiter == nil {
		a.limiter = ratelimit.New(0)
	}
	if a.collector == nil {
		a.collector = metrics.NewCollector()
	}
	if a.recorder == nil {
		a.recorder = diag.NewRecorder(nil)
	}
	if a.tracker == nil {
		a.tracker = usage.NewTracker()
	}
	return a
}

// Usage returns the current quota state
func (a *Assistant) Usage() types.UsageRecord {
	return a.meter.Check()
}

// Quota returns the configured free-tier query limit
func (a *Assistant) Quota() int {
	return a.meter.Quota()
}

// TokenStats returns cumulative token accounting for this process
func (a *Assistant) TokenStats() *usage.Stats {
	return a.tracker.Get()
}

// ResetUsage clears the quota counter
func (a *Assistant) ResetUsage() types.UsageRecord {
	return a.meter.Reset()
}

// Recorder exposes the diagnostic logs
func (a *Assistant) Recorder() *diag.Recorder {
	return a.recorder
}

// Query runs one submission end to end. override forces a target model;
// pass "" to let the routing engine decide.
func (a *Assistant) Query(ctx context.Context, sessionID, text string, page *types.PageContext, override types.Model) (*types.Answer, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyQuery
	}

	queryID := uuid.New().String()
	qlog := a.log.WithQueryID(queryID)

	if rec := a.meter.Check(); rec.Exceeded {
		a.collector.IncrementQuotaRejected()
		qlog.Info("rejected: quota exceeded (%d used)", rec.CurrentUsage)
		return nil, ErrQuotaExceeded
	}
	if !a.limiter.Allow(sessionID) {
		qlog.Info("rejected: rate limited, next slot in %s", a.limiter.RetryAfter(sessionID).Round(time.Second))
		return nil, ErrRateLimited
	}

	page = page.Sanitize()

	var decision types.RoutingDecision
	if override != "" {
		decision = types.RoutingDecision{
			TargetModel:       override,
			UseWebpageContext: page != nil,
			Reasoning:         "manual override",
		}
	} else {
		decision = a.router.DecideScored(text, page)
	}
	qlog.Info("routed to %s (%s)", decision.TargetModel, decision.Reasoning)

	sess := a.sessions.GetOrCreate(sessionID)
	req := provider.Request{
		Prompt:  text,
		History: sess.History(historyWindow),
	}
	if decision.UseWebpageContext {
		req.Page = page
	}

	var result types.ProviderResult
	switch decision.TargetModel {
	case types.ModelRealtime:
		result = a.exec.Execute(ctx, a.realtime, req)
	case types.ModelHybrid:
		result = a.mergeHybrid(ctx, req)
	default:
		result = a.exec.Execute(ctx, a.analytical, req)
	}

	a.recorder.RecordDecision(diag.DecisionRecord{
		QueryID:   queryID,
		Query:     text,
		Model:     decision.TargetModel,
		Reasoning: decision.Reasoning,
		UsedPage:  decision.UseWebpageContext,
	})
	a.collector.IncrementQueries(string(decision.TargetModel))
	a.collector.AddTokens(result.Usage.InputTokens, result.Usage.OutputTokens)
	a.tracker.Record(string(decision.TargetModel), result.Usage)

	// The quota counts delivered answers, not failed attempts, and a hybrid
	// query still counts once.
	var usageRec types.UsageRecord
	if result.OK() {
		usageRec = a.meter.Increment()
	} else {
		usageRec = a.meter.Check()
		if result.Err != nil {
			a.collector.IncrementProviderError(string(result.Err.Kind))
		}
	}

	answerModel := string(decision.TargetModel)
	if decision.TargetModel == types.ModelHybrid && result.Model == FallbackAnalytical {
		answerModel = result.Model
	}

	blocks := format.Format(result.Text)
	answer := &types.Answer{
		Text:  format.Render(blocks),
		Model: answerModel,
		Metadata: map[string]any{
			"queryId":   queryID,
			"reasoning": decision.Reasoning,
			"blocks":    blocks,
			"usage":     usageRec,
			"degraded":  !result.OK(),
		},
	}
	if decision.Scores != nil {
		answer.Metadata["scores"] = *decision.Scores
	}

	a.sessions.Append(sessionID, types.ConversationEntry{
		Timestamp: time.Now(),
		Prompt:    text,
		Response:  answer.Text,
		Model:     answer.Model,
	})
	a.collector.SetActiveSessions(a.sessions.Count())

	return answer, nil
}

// FallbackAnalytical labels hybrid answers that degraded to the analytical
// leg because the real-time leg failed.
const FallbackAnalytical = "analytical (fallback)"

const mergeInstruction = "Combine the following two findings into one coherent answer. " +
	"Prefer the real-time findings for current facts and the analytical findings " +
	"for background and reasoning. Do not mention that there were two sources.\n\n" +
	"Real-time findings:\n%s\n\nAnalytical findings:\n%s"

// mergeHybrid fans the request out to both models concurrently, then asks
// the analytical model to merge the two answers. A failed leg degrades to
// the surviving one instead of failing the query.
func (a *Assistant) mergeHybrid(ctx context.Context, req provider.Request) types.ProviderResult {
	var realtimeRes, analyticalRes types.ProviderResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		realtimeRes = a.exec.Execute(ctx, a.realtime, req)
	}()
	go func() {
		defer wg.Done()
		analyticalRes = a.exec.Execute(ctx, a.analytical, req)
	}()
	wg.Wait()

	switch {
	case !analyticalRes.OK():
		// The merge step runs on the analytical channel; without it the whole
		// hybrid operation fails even when the real-time leg answered.
		a.log.Warn("hybrid: analytical leg failed, surfacing its failure")
		return analyticalRes
	case !realtimeRes.OK():
		a.log.Warn("hybrid: real-time leg failed, using analytical answer only")
		analyticalRes.Model = FallbackAnalytical
		return analyticalRes
	}

	mergeReq := provider.Request{
		Prompt: fmt.Sprintf(mergeInstruction, realtimeRes.Text, analyticalRes.Text),
		Page:   req.Page,
	}
	merged := a.exec.Execute(ctx, a.analytical, mergeReq)

	combinedUsage := types.TokenUsage{
		InputTokens:  realtimeRes.Usage.InputTokens + analyticalRes.Usage.InputTokens + merged.Usage.InputTokens,
		OutputTokens: realtimeRes.Usage.OutputTokens + analyticalRes.Usage.OutputTokens + merged.Usage.OutputTokens,
	}

	if !merged.OK() {
		// Merge failed; deliver both answers stacked rather than nothing
		a.log.Warn("hybrid: merge call failed, concatenating answers")
		return types.ProviderResult{
			Text:  realtimeRes.Text + "\n\n" + analyticalRes.Text,
			Model: string(types.ModelHybrid),
			Usage: combinedUsage,
		}
	}

	return types.ProviderResult{
		Text:  merged.Text,
		Model: string(types.ModelHybrid),
		Usage: combinedUsage,
	}
}
