package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// suggestion is one completion candidate. Value is the full input text the
// completion produces, Label is what the popup shows for it.
type suggestion struct {
	Value       string
	Label       string
	Description string
}

var commandSuggestions = []suggestion{
	{Value: "/new", Label: "/new", Description: "Start fresh conversation"},
	{Value: "/model", Label: "/model", Description: "Force routing to a model"},
	{Value: "/usage", Label: "/usage", Description: "Show quota and token stats"},
	{Value: "/help", Label: "/help", Description: "Show help"},
	{Value: "/quit", Label: "/quit", Description: "Exit PageSage"},
}

// modeSuggestions are the arguments /model accepts
var modeSuggestions = []suggestion{
	{Value: "/model auto", Label: "auto", Description: "Let the router decide"},
	{Value: "/model analytical", Label: "analytical", Description: "Reasoning and page analysis"},
	{Value: "/model realtime", Label: "realtime", Description: "Live web answers"},
	{Value: "/model hybrid", Label: "hybrid", Description: "Merge both channels"},
}

// suggestFor computes the candidates for the current input: slash commands
// while a command name is being typed, routing modes once "/model " is in.
// Anything else, including unknown commands with arguments, gets none.
func suggestFor(input string) []suggestion {
	if !strings.HasPrefix(input, "/") {
		return nil
	}
	name, arg, hasArg := strings.Cut(input, " ")
	if !hasArg {
		return filterByPrefix(commandSuggestions, strings.ToLower(name), func(s suggestion) string {
			return s.Value
		})
	}
	if name == "/model" && !strings.Contains(arg, " ") {
		return filterByPrefix(modeSuggestions, strings.ToLower(arg), func(s suggestion) string {
			return s.Label
		})
	}
	return nil
}

func filterByPrefix(candidates []suggestion, prefix string, key func(suggestion) string) []suggestion {
	if prefix == "" || prefix == "/" {
		return candidates
	}
	var matches []suggestion
	for _, s := range candidates {
		if strings.HasPrefix(strings.ToLower(key(s)), prefix) {
			matches = append(matches, s)
		}
	}
	return matches
}

// Autocomplete manages completion popup state for the input line
type Autocomplete struct {
	suggestions []suggestion
	selected    int
}

// NewAutocomplete creates a new autocomplete instance
func NewAutocomplete() *Autocomplete {
	return &Autocomplete{}
}

// Update recomputes suggestions for the current input
func (a *Autocomplete) Update(input string) {
	a.suggestions = suggestFor(input)
	if a.selected >= len(a.suggestions) {
		a.selected = 0
	}
}

// IsActive returns true if the popup should be shown
func (a *Autocomplete) IsActive() bool {
	return len(a.suggestions) > 0
}

// Next selects the next suggestion
func (a *Autocomplete) Next() {
	if len(a.suggestions) == 0 {
		return
	}
	a.selected = (a.selected + 1) % len(a.suggestions)
}

// Prev selects the previous suggestion
func (a *Autocomplete) Prev() {
	if len(a.suggestions) == 0 {
		return
	}
	a.selected--
	if a.selected < 0 {
		a.selected = len(a.suggestions) - 1
	}
}

// Selected returns the input text the current selection completes to
func (a *Autocomplete) Selected() string {
	if len(a.suggestions) == 0 {
		return ""
	}
	return a.suggestions[a.selected].Value
}

// Reset clears autocomplete state
func (a *Autocomplete) Reset() {
	a.suggestions = nil
	a.selected = 0
}

// View renders the autocomplete popup
func (a *Autocomplete) View(width int) string {
	if !a.IsActive() {
		return ""
	}

	popupStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(secondaryColor).
		Padding(0, 1)

	selectedStyle := lipgloss.NewStyle().
		Background(secondaryColor).
		Foreground(lipgloss.Color("#FFFFFF"))

	normalStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#E5E7EB"))

	descStyle := lipgloss.NewStyle().
		Foreground(dimColor)

	var lines []string
	for i, s := range a.suggestions {
		if i == a.selected {
			line := s.Label
			for len(line) < 12 {
				line += " "
			}
			lines = append(lines, selectedStyle.Render(line+" "+s.Description))
			continue
		}
		pad := strings.Repeat(" ", max(12-len(s.Label), 0))
		lines = append(lines, normalStyle.Render(s.Label)+pad+descStyle.Render("  "+s.Description))
	}

	return popupStyle.Render(strings.Join(lines, "\n"))
}
