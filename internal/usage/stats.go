package usage

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PageSage/pagesage/pkg/types"
)

// Stats holds token consumption totals for the installation
type Stats struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	RequestCount int
	ModelsUsed   map[string]int
	FirstRequest time.Time
	LastRequest  time.Time
}

// String returns a human-readable summary of token usage
func (s *Stats) String() string {
	if s.RequestCount == 0 {
		return "No usage recorded yet."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Total tokens: %d (input %d, output %d)\n", s.TotalTokens, s.InputTokens, s.OutputTokens))
	sb.WriteString(fmt.Sprintf("Requests: %d\n", s.RequestCount))
	if len(s.ModelsUsed) > 0 {
		sb.WriteString("Models:\n")
		for model, count := range s.ModelsUsed {
			sb.WriteString(fmt.Sprintf("  %s: %d requests\n", model, count))
		}
	}
	return sb.String()
}

// Tracker accumulates token usage per provider call
type Tracker struct {
	mu    sync.RWMutex
	stats Stats
}

// NewTracker creates a new token usage tracker
func NewTracker() *Tracker {
	return &Tracker{stats: Stats{ModelsUsed: make(map[string]int)}}
}

// Record adds one provider call's token usage
func (t *Tracker) Record(model string, u types.TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stats.FirstRequest.IsZero() {
		t.stats.FirstRequest = time.Now()
	}
	t.stats.InputTokens += u.InputTokens
	t.stats.OutputTokens += u.OutputTokens
	t.stats.TotalTokens += u.InputTokens + u.OutputTokens
	t.stats.RequestCount++
	t.stats.LastRequest = time.Now()
	if model != "" {
		t.stats.ModelsUsed[model]++
	}
}

// Get returns a copy of the accumulated stats
func (t *Tracker) Get() *Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := t.stats
	out.ModelsUsed = make(map[string]int, len(t.stats.ModelsUsed))
	for k, v := range t.stats.ModelsUsed {
		out.ModelsUsed[k] = v
	}
	return &out
}
