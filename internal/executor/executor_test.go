package executor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PageSage/pagesage/internal/provider"
	"github.com/PageSage/pagesage/pkg/types"
)

// scriptedProvider returns canned results in order, repeating the last one
type scriptedProvider struct {
	name    string
	results []types.ProviderResult
	calls   int
	altAuth func() bool
}

func (p *scriptedProvider) Name() string { return p.name }

func (p *scriptedProvider) Call(ctx context.Context, req provider.Request) types.ProviderResult {
	i := p.calls
	p.calls++
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	return p.results[i]
}

func (p *scriptedProvider) AltAuth() bool {
	if p.altAuth == nil {
		return false
	}
	return p.altAuth()
}

func okResult(text string) types.ProviderResult {
	return types.ProviderResult{Text: text, Model: "test"}
}

func errResult(kind types.ErrorKind) types.ProviderResult {
	return types.ProviderResult{Err: &types.ProviderError{Kind: kind, Message: "boom"}}
}

func noSleep() Option {
	return WithSleep(func(time.Duration) {})
}

func TestExecuteFirstAttemptSuccess(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{okResult("hello")}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if !res.OK() || res.Text != "hello" {
		t.Fatalf("res = %+v", res)
	}
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1", p.calls)
	}
}

func TestExecuteRetriesTransientFailure(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{
		errResult(types.ErrNetwork),
		errResult(types.ErrTimeout),
		okResult("finally"),
	}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if !res.OK() || res.Text != "finally" {
		t.Fatalf("res = %+v", res)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3", p.calls)
	}
}

func TestExecuteExhaustedReturnsApology(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{errResult(types.ErrRateLimit)}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if res.Text != Apology(types.ErrRateLimit) {
		t.Errorf("text = %q", res.Text)
	}
	if res.Err == nil || res.Err.Kind != types.ErrRateLimit {
		t.Errorf("err = %v", res.Err)
	}
	if p.calls != DefaultMaxRetries {
		t.Errorf("calls = %d, want %d", p.calls, DefaultMaxRetries)
	}
}

func TestExecuteAuthNotRetried(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{errResult(types.ErrAuth)}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if p.calls != 1 {
		t.Errorf("calls = %d, want 1 (auth must not be retried)", p.calls)
	}
	if res.Text != Apology(types.ErrAuth) {
		t.Errorf("text = %q", res.Text)
	}
}

func TestExecuteAuthSwitchGetsOneMoreShot(t *testing.T) {
	switched := 0
	p := &scriptedProvider{
		name: "test",
		results: []types.ProviderResult{
			errResult(types.ErrAuth),
			okResult("recovered"),
		},
		altAuth: func() bool {
			switched++
			return switched == 1
		},
	}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if !res.OK() || res.Text != "recovered" {
		t.Fatalf("res = %+v", res)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestExecuteAuthSwitchOnlyOnce(t *testing.T) {
	switched := 0
	p := &scriptedProvider{
		name:    "test",
		results: []types.ProviderResult{errResult(types.ErrAuth)},
		altAuth: func() bool {
			switched++
			return true
		},
	}
	e := New(nil, noSleep())

	e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if switched != 1 {
		t.Errorf("AltAuth called %d times, want 1", switched)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestBackoffDelays(t *testing.T) {
	var delays []time.Duration
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{errResult(types.ErrNetwork)}}
	e := New(nil, WithMaxRetries(5), WithSleep(func(d time.Duration) {
		delays = append(delays, d)
	}))

	e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(delays) != len(want) {
		t.Fatalf("delays = %v", delays)
	}
	for i, w := range want {
		if delays[i] != w {
			t.Errorf("delay %d = %v, want %v", i, delays[i], w)
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	for attempt, want := range map[int]time.Duration{
		0: time.Second,
		1: 2 * time.Second,
		2: 4 * time.Second,
		3: 8 * time.Second,
		4: 8 * time.Second,
		9: 8 * time.Second,
	} {
		if got := backoffDelay(attempt); got != want {
			t.Errorf("backoffDelay(%d) = %v, want %v", attempt, got, want)
		}
	}
}

func TestExecuteFailureHook(t *testing.T) {
	var seen []types.ErrorKind
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{
		errResult(types.ErrNetwork),
		okResult("ok"),
	}}
	var urls []string
	e := New(nil, noSleep(), WithFailureHook(func(name string, attempt int, pageURL string, err *types.ProviderError) {
		if name != "test" {
			t.Errorf("provider name = %q", name)
		}
		seen = append(seen, err.Kind)
		urls = append(urls, pageURL)
	}))

	req := provider.Request{
		Prompt: "hi",
		Page:   &types.PageContext{URL: "https://example.com/article"},
	}
	e.Execute(context.Background(), p, req)
	if len(seen) != 1 || seen[0] != types.ErrNetwork {
		t.Errorf("hook saw %v", seen)
	}
	if len(urls) != 1 || urls[0] != "https://example.com/article" {
		t.Errorf("hook saw urls %v", urls)
	}
}

func TestExecuteEmptyBodyRetriedAsBadShape(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{
		{Text: ""},
		{Text: "   \n"},
		okResult("real answer"),
	}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if !res.OK() || res.Text != "real answer" {
		t.Fatalf("res = %+v", res)
	}
	if p.calls != 3 {
		t.Errorf("calls = %d, want 3 (empty bodies must consume retries)", p.calls)
	}
}

func TestExecuteEmptyBodyExhaustedIsBadShapeApology(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{{Text: ""}}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if res.Text != Apology(types.ErrBadResponseShape) {
		t.Errorf("text = %q", res.Text)
	}
	if res.Err == nil || res.Err.Kind != types.ErrBadResponseShape {
		t.Errorf("err = %v", res.Err)
	}
}

func TestExecuteUnknownRetriedOnce(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{errResult(types.ErrUnknown)}}
	e := New(nil, noSleep(), WithMaxRetries(5))

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2 (unknown gets a single retry)", p.calls)
	}
	if res.Text != Apology(types.ErrUnknown) {
		t.Errorf("text = %q", res.Text)
	}
}

func TestExecuteUnknownRecoversOnRetry(t *testing.T) {
	p := &scriptedProvider{name: "test", results: []types.ProviderResult{
		errResult(types.ErrUnknown),
		okResult("recovered"),
	}}
	e := New(nil, noSleep())

	res := e.Execute(context.Background(), p, provider.Request{Prompt: "hi"})
	if !res.OK() || res.Text != "recovered" {
		t.Fatalf("res = %+v", res)
	}
	if p.calls != 2 {
		t.Errorf("calls = %d, want 2", p.calls)
	}
}

func TestExecuteCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := &scriptedProvider{name: "test", results: []types.ProviderResult{okResult("never")}}
	e := New(nil, noSleep())

	res := e.Execute(ctx, p, provider.Request{Prompt: "hi"})
	if p.calls != 0 {
		t.Errorf("calls = %d, want 0", p.calls)
	}
	if res.Text != Apology(types.ErrTimeout) {
		t.Errorf("text = %q", res.Text)
	}
}

func TestApologyUnknownKind(t *testing.T) {
	if got := Apology(types.ErrorKind("weird")); !strings.Contains(got, "Something went wrong") {
		t.Errorf("got %q", got)
	}
}
