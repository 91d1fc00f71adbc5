// Package usage meters queries against the per-installation quota.
// Increments are serialized through a single goroutine so concurrent
// submissions can never double-count or lose an update.
package usage

import (
	"sync"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/pkg/types"
)

// DefaultQuota is the per-installation query allowance
const DefaultQuota = 25

// Persister stores the counter durably. May be nil for in-memory metering.
type Persister interface {
	UsageCount() (int, error)
	SetUsageCount(int) error
}

// Listener is notified after every counter change
type Listener func(types.UsageRecord)

type op struct {
	apply func(current int) int
	reply chan types.UsageRecord
}

// Meter tracks query consumption against the quota
type Meter struct {
	quota int
	log   *logger.Logger
	store Persister

	ops  chan op
	done chan struct{}

	mu        sync.Mutex
	current   int
	listeners []Listener
}

// NewMeter creates a Meter, loading the persisted counter when a store is
// given. quota <= 0 falls back to DefaultQuota.
func NewMeter(quota int, store Persister, log *logger.Logger) *Meter {
	if quota <= 0 {
		quota = DefaultQuota
	}
	if log == nil {
		log = logger.Nop()
	}

	m := &Meter{
		quota: quota,
		store: store,
		log:   log.WithComponent("usage"),
		ops:   make(chan op, 64),
		done:  make(chan struct{}),
	}

	if store != nil {
		if count, err := store.UsageCount(); err == nil {
			m.current = count
		} else {
			m.log.Warn("failed to load usage count: %v", err)
		}
	}

	go m.run()
	return m
}

// run applies counter operations strictly in arrival order
func (m *Meter) run() {
	for o := range m.ops {
		m.mu.Lock()
		m.current = o.apply(m.current)
		rec := m.snapshotLocked()
		listeners := make([]Listener, len(m.listeners))
		copy(listeners, m.listeners)
		m.mu.Unlock()

		if m.store != nil {
			if err := m.store.SetUsageCount(rec.CurrentUsage); err != nil {
				m.log.Warn("failed to persist usage count: %v", err)
			}
		}
		for _, l := range listeners {
			m.notify(l, rec)
		}
		if o.reply != nil {
			o.reply <- rec
		}
	}
	close(m.done)
}

// notify delivers one update; a panicking listener must not take down the
// meter goroutine.
func (m *Meter) notify(l Listener, rec types.UsageRecord) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Warn("usage listener panicked: %v", r)
		}
	}()
	l(rec)
}

// Close stops the meter after all queued operations have been applied
func (m *Meter) Close() {
	close(m.ops)
	<-m.done
}

func (m *Meter) snapshotLocked() types.UsageRecord {
	remaining := m.quota - m.current
	if remaining < 0 {
		remaining = 0
	}
	return types.UsageRecord{
		CurrentUsage: m.current,
		Remaining:    remaining,
		Exceeded:     m.current >= m.quota,
	}
}

// Check returns the current counter state without changing it
func (m *Meter) Check() types.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Quota returns the configured allowance
func (m *Meter) Quota() int {
	return m.quota
}

// Increment adds one consumed query and returns the resulting state.
// It blocks until the operation has been applied and persisted.
func (m *Meter) Increment() types.UsageRecord {
	reply := make(chan types.UsageRecord, 1)
	m.ops <- op{
		apply: func(current int) int { return current + 1 },
		reply: reply,
	}
	return <-reply
}

// Reset clears the counter back to zero
func (m *Meter) Reset() types.UsageRecord {
	reply := make(chan types.UsageRecord, 1)
	m.ops <- op{
		apply: func(int) int { return 0 },
		reply: reply,
	}
	m.log.Info("usage counter reset")
	return <-reply
}

// Subscribe registers a listener for counter changes. Listeners run on the
// meter goroutine and must not block.
func (m *Meter) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}
