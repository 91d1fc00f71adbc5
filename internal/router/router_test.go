package router

import (
	"testing"

	"github.com/PageSage/pagesage/pkg/types"
)

func TestDecideDeterministic(t *testing.T) {
	e := New()
	ctx := &types.PageContext{
		URL:         "https://example.com",
		Title:       "Acme Corp",
		VisibleText: "Acme Corp builds rockets and satellites for commercial launches.",
	}

	queries := []string{
		"When is the marathon this year?",
		"Explain why the sky is blue",
		"What is the weather in Boston today?",
		"Tell me about this page",
		"hello",
	}

	for _, q := range queries {
		first := e.Decide(q, ctx)
		for i := 0; i < 5; i++ {
			if got := e.Decide(q, ctx); got != first {
				t.Errorf("Decide(%q) not deterministic: %+v vs %+v", q, got, first)
			}
		}
	}
}

func TestDecideRulePriority(t *testing.T) {
	e := New()

	tests := []struct {
		query       string
		ctx         *types.PageContext
		wantModel   types.Model
		wantContext bool
	}{
		// Rule 1: event/schedule phrasing beats everything
		{"When is the marathon this year?", nil, types.ModelRealtime, false},
		{"What's the schedule for the festival?", nil, types.ModelRealtime, false},
		// Rule 2: location + event keyword
		{"Any good concerts in Berlin?", nil, types.ModelRealtime, false},
		// Rule 3: location + broader real-time set
		{"Recommend restaurants near Copenhagen", nil, types.ModelRealtime, false},
		// Rule 4: bare real-time keyword
		{"Bitcoin price", nil, types.ModelRealtime, false},
		{"latest news on the election", nil, types.ModelRealtime, false},
		// Rule 4 exception: explanatory stem suppresses weak real-time signal
		{"What is a stock index fund?", nil, types.ModelAnalytical, false},
		{"How does weather forecasting work?", nil, types.ModelAnalytical, false},
		// Rule 6: page reference
		{"Summarize this page", &types.PageContext{VisibleText: "text"}, types.ModelAnalytical, true},
		{"Explain this article to me", &types.PageContext{VisibleText: "text"}, types.ModelAnalytical, true},
		// Rule 7: greetings
		{"hello", nil, types.ModelAnalytical, false},
		{"Thanks!", nil, types.ModelAnalytical, false},
		// Rule 8: default
		{"Explain why the sky is blue", nil, types.ModelAnalytical, false},
		{"Write a haiku about rivers", nil, types.ModelAnalytical, false},
	}

	for _, tt := range tests {
		d := e.Decide(tt.query, tt.ctx)
		if d.TargetModel != tt.wantModel {
			t.Errorf("Decide(%q).TargetModel = %s, want %s (reasoning: %s)",
				tt.query, d.TargetModel, tt.wantModel, d.Reasoning)
		}
		if d.UseWebpageContext != tt.wantContext {
			t.Errorf("Decide(%q).UseWebpageContext = %v, want %v",
				tt.query, d.UseWebpageContext, tt.wantContext)
		}
	}
}

func TestDecidePageReferenceWithoutContext(t *testing.T) {
	e := New()
	// "this page" with no context still routes analytical, but can't use context
	d := e.Decide("Summarize this page", nil)
	if d.TargetModel != types.ModelAnalytical {
		t.Errorf("expected analytical, got %s", d.TargetModel)
	}
	if d.UseWebpageContext {
		t.Error("cannot use webpage context when none is supplied")
	}
}

func TestCompanyInfoContextRelevance(t *testing.T) {
	e := New()

	relevant := &types.PageContext{
		VisibleText: "Acme Corporation was founded in 1985. The founder built Acme into a leading rocket company.",
	}
	irrelevant := &types.PageContext{
		VisibleText: "Chocolate cake recipe: combine flour, sugar, cocoa powder and bake for thirty minutes.",
	}

	// Relevant page: rule 5 falls through, no page reference either, so default
	d := e.Decide("Who is the founder of Acme Corporation?", relevant)
	if d.TargetModel != types.ModelAnalytical {
		t.Errorf("relevant context should fall through to analytical, got %s (%s)", d.TargetModel, d.Reasoning)
	}

	// Irrelevant page: route to realtime for a live lookup
	d = e.Decide("Who is the founder of Acme Corporation?", irrelevant)
	if d.TargetModel != types.ModelRealtime {
		t.Errorf("irrelevant context should route realtime, got %s (%s)", d.TargetModel, d.Reasoning)
	}
}

func TestDecideScoredHybrid(t *testing.T) {
	e := New()

	d := e.DecideScored("Analyze the current weather trends and explain the underlying atmospheric theory near Boston", nil)
	if d.TargetModel != types.ModelHybrid {
		t.Fatalf("expected hybrid, got %s (reasoning: %s)", d.TargetModel, d.Reasoning)
	}
	if d.Scores == nil {
		t.Fatal("scored decision must carry scores")
	}
	if d.Scores.Realtime <= HybridThreshold || d.Scores.Analytical <= HybridThreshold {
		t.Errorf("both scores must exceed %.1f, got %+v", HybridThreshold, d.Scores)
	}
}

func TestDecideScoredSingleModel(t *testing.T) {
	e := New()

	// Strong real-time signal only
	d := e.DecideScored("current weather forecast today", nil)
	if d.TargetModel != types.ModelRealtime {
		t.Errorf("expected realtime, got %s (%s)", d.TargetModel, d.Reasoning)
	}

	// Strong analytical signal only
	d = e.DecideScored("explain and analyze the underlying theory", nil)
	if d.TargetModel != types.ModelAnalytical {
		t.Errorf("expected analytical, got %s (%s)", d.TargetModel, d.Reasoning)
	}
}

func TestDecideScoredFallsBackToCascade(t *testing.T) {
	e := New()

	// No keyword hits at all: scores are zero, cascade default applies
	d := e.DecideScored("Write a haiku about rivers", nil)
	if d.TargetModel != types.ModelAnalytical {
		t.Errorf("expected analytical fallback, got %s", d.TargetModel)
	}
	if d.Scores == nil || d.Scores.Realtime != 0 || d.Scores.Analytical != 0 {
		t.Errorf("expected zero scores attached, got %+v", d.Scores)
	}

	// One weak real-time hit: below both thresholds, cascade rule 4 fires
	d = e.DecideScored("bitcoin price", nil)
	if d.TargetModel != types.ModelRealtime {
		t.Errorf("expected cascade to route realtime, got %s (%s)", d.TargetModel, d.Reasoning)
	}
}

func TestContextRelevance(t *testing.T) {
	ctx := &types.PageContext{
		VisibleText: "Acme Corporation builds rockets. The Acme launch facility opened in Texas.",
	}

	if got := ContextRelevance("acme corporation rockets", ctx); got < 0.9 {
		t.Errorf("full overlap should score near 1.0, got %.2f", got)
	}
	if got := ContextRelevance("chocolate cake recipe", ctx); got != 0 {
		t.Errorf("no overlap should score 0, got %.2f", got)
	}
	if got := ContextRelevance("anything", nil); got != 0 {
		t.Errorf("nil context should score 0, got %.2f", got)
	}
}

func TestKeywordScoreCaps(t *testing.T) {
	// Five distinct hits would be 1.25 uncapped
	score := keywordScore("weather news price stock score today", realtimeKeywords)
	if score != 1.0 {
		t.Errorf("score should cap at 1.0, got %.2f", score)
	}
}

func TestContainsWordBoundaries(t *testing.T) {
	if containsWord("nowhere to go", "now") {
		t.Error("'now' must not match inside 'nowhere'")
	}
	if !containsWord("do it now", "now") {
		t.Error("'now' should match as a standalone word")
	}
	if !containsWord("things to do in town", "things to do") {
		t.Error("multi-word keywords should match")
	}
}
