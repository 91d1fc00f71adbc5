package usage

import (
	"sync"
	"testing"

	"github.com/PageSage/pagesage/pkg/types"
)

type memPersister struct {
	mu    sync.Mutex
	count int
	saves int
}

func (p *memPersister) UsageCount() (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count, nil
}

func (p *memPersister) SetUsageCount(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count = n
	p.saves++
	return nil
}

func TestMeterDefaults(t *testing.T) {
	m := NewMeter(0, nil, nil)
	defer m.Close()

	if m.Quota() != DefaultQuota {
		t.Errorf("quota = %d, want %d", m.Quota(), DefaultQuota)
	}
	rec := m.Check()
	if rec.CurrentUsage != 0 || rec.Remaining != DefaultQuota || rec.Exceeded {
		t.Errorf("fresh record = %+v", rec)
	}
}

func TestMeterIncrement(t *testing.T) {
	m := NewMeter(3, nil, nil)
	defer m.Close()

	rec := m.Increment()
	if rec.CurrentUsage != 1 || rec.Remaining != 2 || rec.Exceeded {
		t.Errorf("after 1: %+v", rec)
	}

	m.Increment()
	rec = m.Increment()
	if rec.CurrentUsage != 3 || rec.Remaining != 0 || !rec.Exceeded {
		t.Errorf("after 3: %+v", rec)
	}

	// Past the quota: counter keeps counting, remaining stays at zero
	rec = m.Increment()
	if rec.CurrentUsage != 4 || rec.Remaining != 0 || !rec.Exceeded {
		t.Errorf("after 4: %+v", rec)
	}
}

func TestMeterConcurrentIncrements(t *testing.T) {
	const n = 100
	m := NewMeter(1000, nil, nil)
	defer m.Close()

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Increment()
		}()
	}
	wg.Wait()

	rec := m.Check()
	if rec.CurrentUsage != n {
		t.Errorf("count = %d, want %d (lost or doubled updates)", rec.CurrentUsage, n)
	}
}

func TestMeterReset(t *testing.T) {
	m := NewMeter(5, nil, nil)
	defer m.Close()

	for i := 0; i < 5; i++ {
		m.Increment()
	}
	if !m.Check().Exceeded {
		t.Fatal("expected exceeded before reset")
	}

	rec := m.Reset()
	if rec.CurrentUsage != 0 || rec.Remaining != 5 || rec.Exceeded {
		t.Errorf("after reset: %+v", rec)
	}
}

func TestMeterLoadsPersistedCount(t *testing.T) {
	p := &memPersister{count: 7}
	m := NewMeter(25, p, nil)
	defer m.Close()

	rec := m.Check()
	if rec.CurrentUsage != 7 {
		t.Errorf("loaded count = %d, want 7", rec.CurrentUsage)
	}
}

func TestMeterPersistsEveryChange(t *testing.T) {
	p := &memPersister{}
	m := NewMeter(25, p, nil)

	m.Increment()
	m.Increment()
	m.Reset()
	m.Close()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.saves != 3 {
		t.Errorf("saves = %d, want 3", p.saves)
	}
	if p.count != 0 {
		t.Errorf("persisted count = %d, want 0", p.count)
	}
}

func TestMeterSubscribe(t *testing.T) {
	m := NewMeter(25, nil, nil)

	var mu sync.Mutex
	var seen []types.UsageRecord
	m.Subscribe(func(rec types.UsageRecord) {
		mu.Lock()
		seen = append(seen, rec)
		mu.Unlock()
	})

	m.Increment()
	m.Increment()
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("listener saw %d updates, want 2", len(seen))
	}
	if seen[0].CurrentUsage != 1 || seen[1].CurrentUsage != 2 {
		t.Errorf("updates = %+v", seen)
	}
}

func TestMeterSurvivesPanickingListener(t *testing.T) {
	m := NewMeter(25, nil, nil)

	m.Subscribe(func(types.UsageRecord) {
		panic("bad listener")
	})

	var mu sync.Mutex
	var seen int
	m.Subscribe(func(types.UsageRecord) {
		mu.Lock()
		seen++
		mu.Unlock()
	})

	if rec := m.Increment(); rec.CurrentUsage != 1 {
		t.Fatalf("current = %d, want 1", rec.CurrentUsage)
	}
	if rec := m.Increment(); rec.CurrentUsage != 2 {
		t.Fatalf("current = %d, want 2", rec.CurrentUsage)
	}
	m.Close()

	mu.Lock()
	defer mu.Unlock()
	if seen != 2 {
		t.Errorf("surviving listener saw %d updates, want 2", seen)
	}
}

func TestTrackerRecord(t *testing.T) {
	tr := NewTracker()

	tr.Record("analytical", types.TokenUsage{InputTokens: 100, OutputTokens: 50})
	tr.Record("realtime", types.TokenUsage{InputTokens: 20, OutputTokens: 30})
	tr.Record("analytical", types.TokenUsage{InputTokens: 10, OutputTokens: 10})

	stats := tr.Get()
	if stats.TotalTokens != 220 {
		t.Errorf("total = %d, want 220", stats.TotalTokens)
	}
	if stats.RequestCount != 3 {
		t.Errorf("requests = %d, want 3", stats.RequestCount)
	}
	if stats.ModelsUsed["analytical"] != 2 || stats.ModelsUsed["realtime"] != 1 {
		t.Errorf("models = %v", stats.ModelsUsed)
	}
}

func TestTrackerGetReturnsCopy(t *testing.T) {
	tr := NewTracker()
	tr.Record("analytical", types.TokenUsage{InputTokens: 1, OutputTokens: 1})

	stats := tr.Get()
	stats.ModelsUsed["analytical"] = 99

	if tr.Get().ModelsUsed["analytical"] != 1 {
		t.Error("Get leaked internal map")
	}
}
