// Package metrics holds in-process counters for queries, tokens and
// provider failures, exportable in Prometheus text format.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
)

// Collector holds all metrics
type Collector struct {
	queriesTotal   map[string]*atomic.Int64 // by target model
	providerErrors map[string]*atomic.Int64 // by error kind
	tokensInput    atomic.Int64
	tokensOutput   atomic.Int64
	activeSessions atomic.Int64
	quotaRejected  atomic.Int64
	mu             sync.RWMutex
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		queriesTotal:   make(map[string]*atomic.Int64),
		providerErrors: make(map[string]*atomic.Int64),
	}
}

func (c *Collector) counter(m map[string]*atomic.Int64, key string) *atomic.Int64 {
	c.mu.Lock()
	counter, ok := m[key]
	if !ok {
		counter = &atomic.Int64{}
		m[key] = counter
	}
	c.mu.Unlock()
	return counter
}

// IncrementQueries increments the query counter for a target model
func (c *Collector) IncrementQueries(model string) {
	c.counter(c.queriesTotal, model).Add(1)
}

// IncrementProviderError increments the failure counter for an error kind
func (c *Collector) IncrementProviderError(kind string) {
	c.counter(c.providerErrors, kind).Add(1)
}

// IncrementQuotaRejected counts queries refused by the usage quota
func (c *Collector) IncrementQuotaRejected() {
	c.quotaRejected.Add(1)
}

// AddTokens adds token usage
func (c *Collector) AddTokens(input, output int) {
	c.tokensInput.Add(int64(input))
	c.tokensOutput.Add(int64(output))
}

// SetActiveSessions sets the number of active sessions
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Store(int64(count))
}

// GetQueriesTotal returns queries total by model
func (c *Collector) GetQueriesTotal() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]int64)
	for model, counter := range c.queriesTotal {
		result[model] = counter.Load()
	}
	return result
}

// GetProviderErrors returns failure counts by kind
func (c *Collector) GetProviderErrors() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]int64)
	for kind, counter := range c.providerErrors {
		result[kind] = counter.Load()
	}
	return result
}

// GetTokensTotal returns token counts
func (c *Collector) GetTokensTotal() (input, output int64) {
	return c.tokensInput.Load(), c.tokensOutput.Load()
}

// GetQuotaRejected returns the quota rejection count
func (c *Collector) GetQuotaRejected() int64 {
	return c.quotaRejected.Load()
}

// GetActiveSessions returns the number of active sessions
func (c *Collector) GetActiveSessions() int64 {
	return c.activeSessions.Load()
}

// WritePrometheus writes metrics in Prometheus text format
func (c *Collector) WritePrometheus(w io.Writer) {
	fmt.Fprintln(w, "# HELP pagesage_queries_total Total queries processed")
	fmt.Fprintln(w, "# TYPE pagesage_queries_total counter")
	queries := c.GetQueriesTotal()
	for _, model := range sortedKeys(queries) {
		fmt.Fprintf(w, "pagesage_queries_total{model=%q} %d\n", model, queries[model])
	}

	fmt.Fprintln(w, "# HELP pagesage_provider_errors_total Provider call failures")
	fmt.Fprintln(w, "# TYPE pagesage_provider_errors_total counter")
	errs := c.GetProviderErrors()
	for _, kind := range sortedKeys(errs) {
		fmt.Fprintf(w, "pagesage_provider_errors_total{kind=%q} %d\n", kind, errs[kind])
	}

	input, output := c.GetTokensTotal()
	fmt.Fprintln(w, "# HELP pagesage_tokens_total Token usage")
	fmt.Fprintln(w, "# TYPE pagesage_tokens_total counter")
	fmt.Fprintf(w, "pagesage_tokens_total{direction=\"input\"} %d\n", input)
	fmt.Fprintf(w, "pagesage_tokens_total{direction=\"output\"} %d\n", output)

	fmt.Fprintln(w, "# HELP pagesage_quota_rejected_total Queries refused by the usage quota")
	fmt.Fprintln(w, "# TYPE pagesage_quota_rejected_total counter")
	fmt.Fprintf(w, "pagesage_quota_rejected_total %d\n", c.GetQuotaRejected())

	fmt.Fprintln(w, "# HELP pagesage_active_sessions Current in-memory sessions")
	fmt.Fprintln(w, "# TYPE pagesage_active_sessions gauge")
	fmt.Fprintf(w, "pagesage_active_sessions %d\n", c.GetActiveSessions())
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
