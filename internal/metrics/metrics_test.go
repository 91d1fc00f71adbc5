package metrics

import (
	"strings"
	"sync"
	"testing"
)

func TestCollectorCounters(t *testing.T) {
	c := NewCollector()

	c.IncrementQueries("analytical")
	c.IncrementQueries("analytical")
	c.IncrementQueries("hybrid")
	c.IncrementProviderError("rate_limit")
	c.AddTokens(100, 40)
	c.AddTokens(10, 5)
	c.IncrementQuotaRejected()
	c.SetActiveSessions(3)

	queries := c.GetQueriesTotal()
	if queries["analytical"] != 2 || queries["hybrid"] != 1 {
		t.Errorf("queries = %v", queries)
	}
	if c.GetProviderErrors()["rate_limit"] != 1 {
		t.Errorf("errors = %v", c.GetProviderErrors())
	}
	input, output := c.GetTokensTotal()
	if input != 110 || output != 45 {
		t.Errorf("tokens = %d, %d", input, output)
	}
	if c.GetQuotaRejected() != 1 {
		t.Errorf("quota rejected = %d", c.GetQuotaRejected())
	}
	if c.GetActiveSessions() != 3 {
		t.Errorf("active sessions = %d", c.GetActiveSessions())
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.IncrementQueries("realtime")
				c.AddTokens(1, 1)
			}
		}()
	}
	wg.Wait()

	if got := c.GetQueriesTotal()["realtime"]; got != 1000 {
		t.Errorf("queries = %d, want 1000", got)
	}
}

func TestWritePrometheus(t *testing.T) {
	c := NewCollector()
	c.IncrementQueries("analytical")
	c.IncrementProviderError("timeout")
	c.AddTokens(50, 20)

	var sb strings.Builder
	c.WritePrometheus(&sb)
	out := sb.String()

	for _, want := range []string{
		`pagesage_queries_total{model="analytical"} 1`,
		`pagesage_provider_errors_total{kind="timeout"} 1`,
		`pagesage_tokens_total{direction="input"} 50`,
		`pagesage_tokens_total{direction="output"} 20`,
		"# TYPE pagesage_active_sessions gauge",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}
