// Package router implements the routing decision engine: a pure, deterministic
// classifier that maps a query (plus optional page context) to the analytical
// backend, the real-time search backend, or both.
//
// Two entry points exist. Decide runs an ordered rule cascade where the first
// matching rule wins. DecideScored is a softer, score-weighted combiner that
// can request a hybrid answer when a query carries strong signal for both
// backends; when scores are inconclusive it falls back to the cascade. Both
// share one keyword table and one threshold set.
package router

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PageSage/pagesage/pkg/types"
)

const (
	// HybridThreshold is the minimum score both keyword sets must exceed
	// for a hybrid decision
	HybridThreshold = 0.3
	// SingleModelThreshold is the minimum winning score for a score-based
	// single-model decision
	SingleModelThreshold = 0.5
	// ContextRelevanceThreshold is the minimum query/page word overlap for
	// the page to count as relevant to a company-info query
	ContextRelevanceThreshold = 0.3
	// contextRelevanceWindow is how much page text the relevance score reads
	contextRelevanceWindow = 1000
)

// Engine is the routing decision engine. Stateless and safe for concurrent use.
type Engine struct {
	rules []rule
}

// rule is one entry in the ordered cascade. match returns the decision and
// true when the rule fires.
type rule struct {
	name  string
	match func(q string, lower string, ctx *types.PageContext) (types.RoutingDecision, bool)
}

var (
	eventScheduleRe = regexp.MustCompile(`\bwhen\s+(is|are|does|do|was|will)\b.*\b(this|next)\s+(year|month|week|weekend)\b|\bschedule\s+(for|of)\b|\bwhat\s+(date|day|time)\s+(is|does|do)\b`)
	locationRe      = regexp.MustCompile(`\b(in|at|near|around)\s+[A-Z][a-zA-Z]+`)
	locationLowerRe = regexp.MustCompile(`\b(in|at|near|around)\s+(the\s+)?[a-z]+\b`)
	companyInfoRe   = regexp.MustCompile(`\b(founder|founders|founded|ceo|chief\s+executive|who\s+owns|who\s+started|founding\s+date|headquartered)\b`)
	thisPageRe      = regexp.MustCompile(`\bthis\s+(page|site|website|company|article|document)\b`)
	explainThisRe   = regexp.MustCompile(`\b(explain|describe|summarize|tell\s+me\s+about)\b.*\bthis\b`)
)

// realtimeKeywords signal current-events / live-data intent
var realtimeKeywords = []string{
	"weather", "news", "price", "stock", "score",
	"today", "tonight", "now", "current", "currently", "latest", "recent",
	"open", "hours", "availability", "available", "nearby", "near",
	"happening", "traffic", "forecast", "trending", "upcoming",
}

// eventKeywords signal event/schedule lookups when combined with a location
var eventKeywords = []string{
	"event", "concert", "festival", "show", "game", "match",
	"marathon", "exhibition", "conference", "meetup", "race",
}

// broadRealtimeKeywords extend the set for location-anchored queries
var broadRealtimeKeywords = []string{
	"recommend", "recommendation", "recommendations", "cost", "cheap",
	"restaurant", "restaurants", "hotel", "hotels", "visit", "things to do",
}

// analyticalKeywords signal reasoning/explanation intent (used by the scorer)
var analyticalKeywords = []string{
	"explain", "why", "analyze", "analysis", "understand", "theory",
	"underlying", "concept", "meaning", "define", "definition", "compare",
	"difference", "summarize", "describe", "principle", "reasoning",
}

// explanatoryStems at the start of a query override weak real-time signal
var explanatoryStems = []string{
	"what is", "what are", "how does", "how do", "explain", "why ",
}

// greetings are routed straight to the analytical model with no context
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "help": true,
	"thanks": true, "thank you": true, "what can you do": true,
	"who are you": true,
}

// New creates a routing engine with the standard rule cascade
func New() *Engine {
	e := &Engine{}
	e.rules = []rule{
		{name: "event schedule lookup", match: e.matchEventSchedule},
		{name: "location + event", match: e.matchLocationEvent},
		{name: "location + real-time keyword", match: e.matchLocationRealtime},
		{name: "real-time keyword", match: e.matchRealtimeKeyword},
		{name: "company info with irrelevant context", match: e.matchCompanyInfo},
		{name: "page reference", match: e.matchPageReference},
		{name: "greeting", match: e.matchGreeting},
	}
	return e
}

// Decide runs the ordered rule cascade; the first matching rule wins.
// Deterministic for identical inputs, no I/O.
func (e *Engine) Decide(query string, ctx *types.PageContext) types.RoutingDecision {
	lower := strings.ToLower(strings.TrimSpace(query))

	for _, r := range e.rules {
		if d, ok := r.match(query, lower, ctx); ok {
			return d
		}
	}

	return types.RoutingDecision{
		TargetModel: types.ModelAnalytical,
		Reasoning:   "general knowledge query",
	}
}

// DecideScored is the score-weighted combiner. When both keyword scores
// exceed HybridThreshold the decision is hybrid; when one score exceeds
// SingleModelThreshold that model wins; otherwise it falls back to the
// contextual rule cascade.
func (e *Engine) DecideScored(query string, ctx *types.PageContext) types.RoutingDecision {
	lower := strings.ToLower(strings.TrimSpace(query))

	rt := keywordScore(lower, realtimeKeywords)
	an := keywordScore(lower, analyticalKeywords)
	scores := &types.RouteScores{Realtime: rt, Analytical: an}

	if rt > HybridThreshold && an > HybridThreshold {
		return types.RoutingDecision{
			TargetModel: types.ModelHybrid,
			Reasoning:   fmt.Sprintf("strong signal for both backends (realtime %.2f, analytical %.2f)", rt, an),
			Scores:      scores,
		}
	}

	if rt > SingleModelThreshold && rt > an {
		return types.RoutingDecision{
			TargetModel: types.ModelRealtime,
			Reasoning:   fmt.Sprintf("real-time score %.2f dominates", rt),
			Scores:      scores,
		}
	}
	if an > SingleModelThreshold && an > rt {
		d := types.RoutingDecision{
			TargetModel: types.ModelAnalytical,
			Reasoning:   fmt.Sprintf("analytical score %.2f dominates", an),
			Scores:      scores,
		}
		// An explanation query about "this page" still wants the context
		if thisPageRe.MatchString(lower) || explainThisRe.MatchString(lower) {
			d.UseWebpageContext = ctx != nil
		}
		return d
	}

	// Inconclusive scores: the hard cascade is the canonical tiebreak
	d := e.Decide(query, ctx)
	d.Scores = scores
	return d
}

// keywordScore counts distinct keyword hits, each worth 0.25, capped at 1.0.
// Two hits clear the hybrid threshold, three clear the single-model one.
func keywordScore(lower string, keywords []string) float64 {
	hits := 0
	for _, kw := range keywords {
		if containsWord(lower, kw) {
			hits++
		}
	}
	score := float64(hits) * 0.25
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// containsWord reports whether kw appears in s on word boundaries.
// A trailing "s" on the matched word is tolerated so singular keywords
// also hit their plain plural forms.
func containsWord(s, kw string) bool {
	if containsExactWord(s, kw) {
		return true
	}
	return containsExactWord(s, kw+"s")
}

func containsExactWord(s, kw string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], kw)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(kw)
		beforeOK := start == 0 || !isWordChar(s[start-1])
		afterOK := end == len(s) || !isWordChar(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordChar(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// ---- cascade rules ----

func (e *Engine) matchEventSchedule(_ string, lower string, _ *types.PageContext) (types.RoutingDecision, bool) {
	if !eventScheduleRe.MatchString(lower) {
		return types.RoutingDecision{}, false
	}
	return types.RoutingDecision{
		TargetModel: types.ModelRealtime,
		Reasoning:   "event or schedule lookup needs current data",
	}, true
}

func (e *Engine) matchLocationEvent(query string, lower string, _ *types.PageContext) (types.RoutingDecision, bool) {
	if !hasLocationPhrase(query, lower) {
		return types.RoutingDecision{}, false
	}
	if !anyKeyword(lower, eventKeywords) {
		return types.RoutingDecision{}, false
	}
	return types.RoutingDecision{
		TargetModel: types.ModelRealtime,
		Reasoning:   "event query anchored to a location",
	}, true
}

func (e *Engine) matchLocationRealtime(query string, lower string, _ *types.PageContext) (types.RoutingDecision, bool) {
	if !hasLocationPhrase(query, lower) {
		return types.RoutingDecision{}, false
	}
	if !anyKeyword(lower, realtimeKeywords) && !anyKeyword(lower, broadRealtimeKeywords) {
		return types.RoutingDecision{}, false
	}
	return types.RoutingDecision{
		TargetModel: types.ModelRealtime,
		Reasoning:   "location-anchored query with real-time signal",
	}, true
}

func (e *Engine) matchRealtimeKeyword(_ string, lower string, _ *types.PageContext) (types.RoutingDecision, bool) {
	if !anyKeyword(lower, realtimeKeywords) {
		return types.RoutingDecision{}, false
	}
	for _, stem := range explanatoryStems {
		if strings.HasPrefix(lower, stem) {
			// Explanatory phrasing wins over weak real-time signal
			return types.RoutingDecision{}, false
		}
	}
	return types.RoutingDecision{
		TargetModel: types.ModelRealtime,
		Reasoning:   "query contains real-time keywords",
	}, true
}

func (e *Engine) matchCompanyInfo(_ string, lower string, ctx *types.PageContext) (types.RoutingDecision, bool) {
	if !companyInfoRe.MatchString(lower) {
		return types.RoutingDecision{}, false
	}
	if ContextRelevance(lower, ctx) >= ContextRelevanceThreshold {
		// Page is about this company; let later rules use the context
		return types.RoutingDecision{}, false
	}
	return types.RoutingDecision{
		TargetModel: types.ModelRealtime,
		Reasoning:   "company info query, page context not relevant enough",
	}, true
}

func (e *Engine) matchPageReference(_ string, lower string, ctx *types.PageContext) (types.RoutingDecision, bool) {
	if !thisPageRe.MatchString(lower) && !explainThisRe.MatchString(lower) {
		return types.RoutingDecision{}, false
	}
	return types.RoutingDecision{
		TargetModel:       types.ModelAnalytical,
		UseWebpageContext: ctx != nil,
		Reasoning:         "query references the current page",
	}, true
}

func (e *Engine) matchGreeting(_ string, lower string, _ *types.PageContext) (types.RoutingDecision, bool) {
	trimmed := strings.TrimRight(lower, "!.? ")
	if !greetings[trimmed] {
		return types.RoutingDecision{}, false
	}
	return types.RoutingDecision{
		TargetModel: types.ModelAnalytical,
		Reasoning:   "greeting or help request",
	}, true
}

// hasLocationPhrase detects "in|at|near|around <place>" patterns. Capitalized
// place names are the strong signal; a lowercase fallback catches phrases like
// "near me" or "around here" typed without capitals.
func hasLocationPhrase(query, lower string) bool {
	if locationRe.MatchString(query) {
		return true
	}
	return locationLowerRe.MatchString(lower)
}

func anyKeyword(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

// ContextRelevance measures shared significant-word overlap between the query
// and the first 1000 characters of the page's visible text, normalized by the
// query's significant word count. Returns 0 when there is no context.
func ContextRelevance(query string, ctx *types.PageContext) float64 {
	if ctx == nil || ctx.VisibleText == "" {
		return 0
	}

	window := ctx.VisibleText
	if len(window) > contextRelevanceWindow {
		window = window[:contextRelevanceWindow]
	}
	pageWords := make(map[string]bool)
	for _, w := range splitWords(strings.ToLower(window)) {
		if significant(w) {
			pageWords[w] = true
		}
	}

	var total, shared int
	for _, w := range splitWords(strings.ToLower(query)) {
		if !significant(w) {
			continue
		}
		total++
		if pageWords[w] {
			shared++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(shared) / float64(total)
}

// stopwords excluded from the relevance overlap
var stopwords = map[string]bool{
	"this": true, "that": true, "what": true, "when": true, "where": true,
	"which": true, "with": true, "about": true, "from": true, "have": true,
	"does": true, "will": true, "their": true, "there": true, "them": true,
}

func significant(w string) bool {
	return len(w) >= 4 && !stopwords[w]
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
}
