// Package format converts raw provider text into structured display blocks.
// The same contract applies regardless of which model produced the text.
// Everything here is pure and deterministic.
package format

import (
	"regexp"
	"strconv"
	"strings"
)

// BlockType classifies a display block
type BlockType string

const (
	BlockParagraph   BlockType = "paragraph"
	BlockOrderedList BlockType = "ordered_list"
	BlockBulletList  BlockType = "bullet_list"
	BlockInfoRow     BlockType = "info_row"
)

// Block is one unit of formatted output
type Block struct {
	Type  BlockType
	Text  string     // paragraph text (spans resolved)
	Label string     // info row label
	Value string     // info row value
	Items []ListItem // list blocks
	Spans []Span     // emphasis runs inside a paragraph
}

// ListItem is one entry of an ordered or unordered list
type ListItem struct {
	Label   string      // first line of the item
	Details []DetailRow // "Label: value" lines under the item
	Subs    []string    // nested bullet lines
}

// DetailRow is a labeled value line inside a list item
type DetailRow struct {
	Label string
	Value string
}

// Span marks an emphasised run inside a paragraph's text
type Span struct {
	Start, End int // byte offsets into Block.Text
}

var (
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
	orderedItemRe = regexp.MustCompile(`(?m)^\d+\.`)
	boldRe        = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	infoRowRe     = regexp.MustCompile(`^([A-Za-z][\w /()-]{0,60}):\s+(.+)$`)
)

// Format splits raw text into structured blocks. Raw HTML tags are stripped
// first; providers occasionally leak markup and it must never reach the UI.
func Format(raw string) []Block {
	text := htmlTagRe.ReplaceAllString(raw, "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var blocks []Block
	for _, section := range splitSections(text) {
		blocks = append(blocks, classifySection(section))
	}
	return blocks
}

// splitSections splits on blank-line boundaries
func splitSections(text string) []string {
	var sections []string
	for _, s := range regexp.MustCompile(`\n\s*\n`).Split(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" {
			sections = append(sections, s)
		}
	}
	return sections
}

func classifySection(section string) Block {
	lines := strings.Split(section, "\n")
	first := strings.TrimSpace(lines[0])

	switch {
	case orderedItemRe.MatchString(first):
		return Block{Type: BlockOrderedList, Items: parseOrderedItems(section)}
	case strings.HasPrefix(first, "-") || strings.HasPrefix(first, "•"):
		return Block{Type: BlockBulletList, Items: parseBulletItems(lines)}
	case len(lines) == 1:
		if m := infoRowRe.FindStringSubmatch(first); m != nil {
			return Block{Type: BlockInfoRow, Label: m[1], Value: stripBold(m[2])}
		}
	}
	return paragraphBlock(section)
}

// parseOrderedItems splits a numbered section into items on `^\d+.` boundaries
func parseOrderedItems(section string) []ListItem {
	var items []ListItem
	var current []string

	flush := func() {
		if len(current) > 0 {
			items = append(items, parseItem(current))
			current = nil
		}
	}

	for _, line := range strings.Split(section, "\n") {
		if orderedItemRe.MatchString(strings.TrimSpace(line)) {
			flush()
			// Drop the "N." marker from the label line
			trimmed := strings.TrimSpace(line)
			if idx := strings.Index(trimmed, "."); idx >= 0 {
				trimmed = strings.TrimSpace(trimmed[idx+1:])
			}
			current = []string{trimmed}
			continue
		}
		current = append(current, line)
	}
	flush()
	return items
}

func parseBulletItems(lines []string) []ListItem {
	var items []ListItem
	var current []string

	flush := func() {
		if len(current) > 0 {
			items = append(items, parseItem(current))
			current = nil
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "•") {
			// A deeper-indented bullet is a sub-line of the current item
			if len(current) > 0 && indentOf(line) > 0 {
				current = append(current, line)
				continue
			}
			flush()
			current = []string{strings.TrimSpace(strings.TrimLeft(trimmed, "-• "))}
			continue
		}
		current = append(current, line)
	}
	flush()
	return items
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " \t"))
}

// parseItem builds one list item: first line is the label, "Label: value"
// continuation lines become detail rows, bullet lines become sub-items.
func parseItem(lines []string) ListItem {
	item := ListItem{Label: stripBold(strings.TrimSpace(lines[0]))}
	for _, line := range lines[1:] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "•") {
			item.Subs = append(item.Subs, stripBold(strings.TrimSpace(strings.TrimLeft(trimmed, "-• "))))
			continue
		}
		if m := infoRowRe.FindStringSubmatch(trimmed); m != nil {
			item.Details = append(item.Details, DetailRow{Label: stripBold(m[1]), Value: stripBold(m[2])})
			continue
		}
		// Plain continuation text folds into the label
		item.Label += " " + stripBold(trimmed)
	}
	return item
}

// paragraphBlock resolves **bold** markers into emphasis spans
func paragraphBlock(section string) Block {
	text := strings.Join(strings.Fields(strings.ReplaceAll(section, "\n", " ")), " ")

	var spans []Span
	var b strings.Builder
	last := 0
	for _, m := range boldRe.FindAllStringSubmatchIndex(text, -1) {
		b.WriteString(text[last:m[0]])
		start := b.Len()
		b.WriteString(text[m[2]:m[3]])
		spans = append(spans, Span{Start: start, End: b.Len()})
		last = m[1]
	}
	b.WriteString(text[last:])

	return Block{Type: BlockParagraph, Text: b.String(), Spans: spans}
}

func stripBold(s string) string {
	return boldRe.ReplaceAllString(s, "$1")
}

// Render flattens blocks back to plain display text. Rendering then
// re-formatting plain prose yields a single paragraph block with no
// structural loss.
func Render(blocks []Block) string {
	var parts []string
	for _, blk := range blocks {
		switch blk.Type {
		case BlockParagraph:
			parts = append(parts, blk.Text)
		case BlockInfoRow:
			parts = append(parts, blk.Label+": "+blk.Value)
		case BlockOrderedList:
			parts = append(parts, renderList(blk.Items, true))
		case BlockBulletList:
			parts = append(parts, renderList(blk.Items, false))
		}
	}
	return strings.Join(parts, "\n\n")
}

func renderList(items []ListItem, ordered bool) string {
	var lines []string
	for i, item := range items {
		if ordered {
			lines = append(lines, strconv.Itoa(i+1)+". "+item.Label)
		} else {
			lines = append(lines, "- "+item.Label)
		}
		for _, d := range item.Details {
			lines = append(lines, "   "+d.Label+": "+d.Value)
		}
		for _, s := range item.Subs {
			lines = append(lines, "   - "+s)
		}
	}
	return strings.Join(lines, "\n")
}
