package search

import (
	"bytes"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Highlight renders line as escaped HTML with every case-insensitive,
// non-overlapping occurrence of term wrapped in <mark>. The term is matched
// literally, under the same lower-casing Search uses, so a line Search
// returns always gets at least one mark.
func Highlight(line, term string) string {
	var buf bytes.Buffer
	for _, n := range highlightNodes(line, term) {
		// Render only fails on writer errors; bytes.Buffer never returns one.
		_ = html.Render(&buf, n)
	}
	return buf.String()
}

func highlightNodes(line, term string) []*html.Node {
	if strings.TrimSpace(term) == "" || line == "" {
		return []*html.Node{textNode(line)}
	}

	// Match exactly as Search does: whole-line lower-casing, then a byte
	// search. bounds maps each original rune boundary to its offset in hay.
	lower := cases.Lower(language.Und)
	hay := lower.String(line)
	needle := lower.String(term)
	runes := []rune(line)
	bounds := make([]int, len(runes)+1)
	for i, r := range runes {
		bounds[i+1] = bounds[i] + len(lower.String(string(r)))
	}
	if bounds[len(runes)] != len(hay) {
		// Context-dependent lowering changed a length; fall back to the
		// per-rune form so offsets stay aligned.
		var b strings.Builder
		for _, r := range runes {
			b.WriteString(lower.String(string(r)))
		}
		hay = b.String()
	}

	var nodes []*html.Node
	start, pos := 0, 0
	for pos < len(hay) {
		k := strings.Index(hay[pos:], needle)
		if k < 0 {
			break
		}
		from := runeAt(bounds, pos+k, false)
		to := runeAt(bounds, pos+k+len(needle), true)
		if from < start {
			from = start
		}
		if from > start {
			nodes = append(nodes, textNode(string(runes[start:from])))
		}
		mark := &html.Node{Type: html.ElementNode, DataAtom: atom.Mark, Data: "mark"}
		mark.AppendChild(textNode(string(runes[from:to])))
		nodes = append(nodes, mark)
		start = to
		pos = max(pos+k+len(needle), bounds[to])
	}
	if start < len(runes) {
		nodes = append(nodes, textNode(string(runes[start:])))
	}
	return nodes
}

// runeAt returns the rune index whose lowered offset is off. An offset inside
// a rune's lowered form rounds down, or up when ceil is set.
func runeAt(bounds []int, off int, ceil bool) int {
	i := sort.SearchInts(bounds, off)
	if i < len(bounds) && bounds[i] == off || ceil {
		return i
	}
	return i - 1
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
