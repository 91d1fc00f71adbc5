// Package diag keeps bounded in-memory diagnostic logs: provider failures
// and routing decisions. Both are rings; the oldest entries fall off.
package diag

import (
	"sync"
	"time"

	"github.com/PageSage/pagesage/pkg/types"
)

const (
	// MaxErrors bounds the kept provider failure records
	MaxErrors = 100
	// MaxDecisions bounds the kept routing decision records
	MaxDecisions = 1000
)

// ErrorRecord is one provider failure. URL is the page context the failing
// request carried, empty when the query had none.
type ErrorRecord struct {
	Timestamp time.Time       `json:"timestamp"`
	Provider  string          `json:"provider"`
	Attempt   int             `json:"attempt"`
	Kind      types.ErrorKind `json:"kind"`
	Message   string          `json:"message"`
	URL       string          `json:"url,omitempty"`
}

// DecisionRecord is one routing decision outcome
type DecisionRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	QueryID   string      `json:"queryId"`
	Query     string      `json:"query"`
	Model     types.Model `json:"model"`
	Reasoning string      `json:"reasoning"`
	UsedPage  bool        `json:"usedPage"`
}

// Sink receives records for durable storage. Sink failures never block
// diagnostics; the in-memory ring is the source of truth for the UI.
type Sink interface {
	AppendError(ErrorRecord) error
	AppendDecision(DecisionRecord) error
}

// Recorder holds both diagnostic rings
type Recorder struct {
	mu        sync.Mutex
	errors    []ErrorRecord
	decisions []DecisionRecord
	sink      Sink
}

// NewRecorder creates a Recorder. sink may be nil for in-memory-only use.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink}
}

// RecordError appends a provider failure, evicting the oldest past MaxErrors
func (r *Recorder) RecordError(rec ErrorRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.mu.Lock()
	r.errors = append(r.errors, rec)
	if len(r.errors) > MaxErrors {
		r.errors = r.errors[len(r.errors)-MaxErrors:]
	}
	r.mu.Unlock()

	if r.sink != nil {
		_ = r.sink.AppendError(rec)
	}
}

// RecordDecision appends a routing decision, evicting the oldest past MaxDecisions
func (r *Recorder) RecordDecision(rec DecisionRecord) {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	r.mu.Lock()
	r.decisions = append(r.decisions, rec)
	if len(r.decisions) > MaxDecisions {
		r.decisions = r.decisions[len(r.decisions)-MaxDecisions:]
	}
	r.mu.Unlock()

	if r.sink != nil {
		_ = r.sink.AppendDecision(rec)
	}
}

// Errors returns a copy of the kept failure records, oldest first
func (r *Recorder) Errors() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.errors))
	copy(out, r.errors)
	return out
}

// Decisions returns a copy of the kept decision records, oldest first
func (r *Recorder) Decisions() []DecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DecisionRecord, len(r.decisions))
	copy(out, r.decisions)
	return out
}
