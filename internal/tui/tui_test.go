package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/PageSage/pagesage/pkg/types"
)

func TestFormatChatMessage(t *testing.T) {
	m := Model{}

	tests := []struct {
		name string
		msg  chatMessage
		want string
	}{
		{
			name: "user message",
			msg:  chatMessage{Text: "hello world", FromUser: true, Timestamp: time.Now()},
			want: "You:",
		},
		{
			name: "assistant message",
			msg:  chatMessage{Text: "The sky scatters blue light.", Model: "analytical", Timestamp: time.Now()},
			want: "Sage:",
		},
		{
			name: "system message",
			msg:  chatMessage{Text: "Started new conversation", System: true},
			want: "Started new conversation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := m.formatChatMessage(tt.msg)
			if !strings.Contains(result, tt.want) {
				t.Errorf("expected %q in output, got: %s", tt.want, result)
			}
			if !strings.Contains(result, tt.msg.Text) {
				t.Errorf("expected message text %q, got: %s", tt.msg.Text, result)
			}
		})
	}
}

func TestAssistantMessageShowsModelTag(t *testing.T) {
	out := formatAssistantMessage("answer text", "hybrid", 80)
	if !strings.Contains(out, "[hybrid]") {
		t.Errorf("expected model tag in output, got: %s", out)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input   string
		wantCmd Command
		wantArg string
	}{
		{input: "/new", wantCmd: CmdNew, wantArg: ""},
		{input: "/new  ", wantCmd: CmdNew, wantArg: ""},
		{input: "/model", wantCmd: CmdModel, wantArg: ""},
		{input: "/model realtime", wantCmd: CmdModel, wantArg: "realtime"},
		{input: "/help", wantCmd: CmdHelp, wantArg: ""},
		{input: "/usage", wantCmd: CmdUsage, wantArg: ""},
		{input: "hello world", wantCmd: CmdNone, wantArg: ""},
		{input: "", wantCmd: CmdNone, wantArg: ""},
		{input: "/unknown", wantCmd: CmdUnknown, wantArg: ""},
		{input: "/quit", wantCmd: CmdQuit, wantArg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, arg := parseCommand(tt.input)
			if cmd != tt.wantCmd {
				t.Errorf("parseCommand(%q) cmd = %v, want %v", tt.input, cmd, tt.wantCmd)
			}
			if arg != tt.wantArg {
				t.Errorf("parseCommand(%q) arg = %q, want %q", tt.input, arg, tt.wantArg)
			}
		})
	}
}

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/new", true},
		{"/help", true},
		{"/model hybrid", true},
		{"hello", false},
		{"", false},
		{" /new", false}, // leading space means not a command
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := isCommand(tt.input)
			if got != tt.want {
				t.Errorf("isCommand(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseRoutingMode(t *testing.T) {
	tests := []struct {
		arg      string
		wantMode types.Model
		wantOK   bool
	}{
		{"auto", "", true},
		{"analytical", types.ModelAnalytical, true},
		{"realtime", types.ModelRealtime, true},
		{"hybrid", types.ModelHybrid, true},
		{"HYBRID", types.ModelHybrid, true},
		{" realtime ", types.ModelRealtime, true},
		{"claude", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			mode, ok := parseRoutingMode(tt.arg)
			if ok != tt.wantOK || mode != tt.wantMode {
				t.Errorf("parseRoutingMode(%q) = (%q, %v), want (%q, %v)", tt.arg, mode, ok, tt.wantMode, tt.wantOK)
			}
		})
	}
}

func TestHelpText(t *testing.T) {
	help := helpText()
	commands := []string{"/new", "/model", "/usage", "/help", "/quit"}
	for _, cmd := range commands {
		if !strings.Contains(help, cmd) {
			t.Errorf("help text should contain %q", cmd)
		}
	}
}

func TestQuotaBar(t *testing.T) {
	tests := []struct {
		name  string
		used  int
		quota int
		want  string
	}{
		{name: "fresh", used: 0, quota: 25, want: "Queries 0/25"},
		{name: "partial", used: 10, quota: 25, want: "Queries 10/25"},
		{name: "exhausted", used: 25, quota: 25, want: "Queries 25/25"},
		{name: "past quota", used: 30, quota: 25, want: "Queries 30/25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := formatQuotaBar(tt.used, tt.quota, 60)
			if !strings.Contains(bar, tt.want) {
				t.Errorf("formatQuotaBar(%d, %d) should contain %q, got: %s", tt.used, tt.quota, tt.want, bar)
			}
		})
	}

	if bar := formatQuotaBar(3, 0, 60); bar != "" {
		t.Errorf("zero quota should render nothing, got: %s", bar)
	}
}

func TestWrapText(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		width  int
		expect int // expected number of lines
	}{
		{
			name:   "short text no wrap",
			text:   "hello",
			width:  80,
			expect: 1,
		},
		{
			name:   "long text wraps",
			text:   "this is a very long line that should wrap at some point because it exceeds width",
			width:  20,
			expect: 5, // approximate, depends on word boundaries
		},
		{
			name:   "already has newlines",
			text:   "line1\nline2",
			width:  80,
			expect: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := wrapText(tt.text, tt.width)
			lines := strings.Split(result, "\n")
			if tt.expect > 1 && len(lines) < 2 {
				t.Errorf("wrapText(%q, %d) should produce multiple lines, got %d lines", tt.text, tt.width, len(lines))
			}
		})
	}
}

func TestContainsMarkdown(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"plain sentence", false},
		{"has **bold** text", true},
		{"- bullet item", true},
		{"1. ordered item", true},
		{"`inline code`", true},
	}

	for _, tt := range tests {
		if got := containsMarkdown(tt.text); got != tt.want {
			t.Errorf("containsMarkdown(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

func TestSuggestForCommands(t *testing.T) {
	if got := suggestFor("/"); len(got) != len(commandSuggestions) {
		t.Errorf("bare slash should list every command, got %d", len(got))
	}

	got := suggestFor("/mo")
	if len(got) != 1 || got[0].Value != "/model" {
		t.Errorf("suggestFor(/mo) = %+v", got)
	}

	if got := suggestFor("hello there"); got != nil {
		t.Errorf("plain text should not suggest, got %+v", got)
	}
	if got := suggestFor("/usage now"); got != nil {
		t.Errorf("commands without arguments should stop suggesting, got %+v", got)
	}
}

func TestSuggestForModelArgument(t *testing.T) {
	got := suggestFor("/model ")
	if len(got) != len(modeSuggestions) {
		t.Fatalf("expected all routing modes, got %d", len(got))
	}

	got = suggestFor("/model hy")
	if len(got) != 1 || got[0].Value != "/model hybrid" {
		t.Errorf("suggestFor(/model hy) = %+v", got)
	}

	// Completed argument plus trailing space closes the popup
	if got := suggestFor("/model hybrid "); got != nil {
		t.Errorf("expected no suggestions, got %+v", got)
	}
}

func TestAutocompleteSelection(t *testing.T) {
	ac := NewAutocomplete()
	ac.Update("/model re")
	if !ac.IsActive() {
		t.Fatal("expected active popup")
	}
	if ac.Selected() != "/model realtime" {
		t.Errorf("Selected() = %q", ac.Selected())
	}

	ac.Update("/")
	ac.Next()
	ac.Next()
	if ac.Selected() != "/usage" {
		t.Errorf("after two Next, Selected() = %q", ac.Selected())
	}
	ac.Prev()
	if ac.Selected() != "/model" {
		t.Errorf("after Prev, Selected() = %q", ac.Selected())
	}

	ac.Reset()
	if ac.IsActive() || ac.Selected() != "" {
		t.Error("Reset should clear the popup")
	}
}

func TestRenderMarkdownReusesRenderer(t *testing.T) {
	out := renderMarkdown("# Title", 80)
	if !strings.Contains(out, "Title") {
		t.Fatalf("rendered output lost content: %q", out)
	}
	first := sharedRenderer.inner
	if first == nil || sharedRenderer.width != 80 {
		t.Fatal("expected cached renderer for width 80")
	}

	renderMarkdown("**again**", 80)
	if sharedRenderer.inner != first {
		t.Error("same width should reuse the cached renderer")
	}

	renderMarkdown("**resized**", 100)
	if sharedRenderer.inner == first {
		t.Error("width change should rebuild the renderer")
	}
}
