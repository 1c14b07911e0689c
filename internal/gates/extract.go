package gates

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Requirement is one unit of spec text a task can claim coverage of.
type Requirement struct {
	// ID is the explicit marker (REQ-1, FR-2.3) when the item carries one,
	// otherwise a synthetic req-<n> in document order.
	ID string `json:"id"`

	// Text is the item's plain text.
	Text string `json:"text"`
}

// markerPattern recognizes explicit requirement markers in spec text.
var markerPattern = regexp.MustCompile(`\b(?:REQ|FR|NFR)-[A-Za-z0-9][A-Za-z0-9.-]*\b`)

// ExtractRequirements pulls requirement identifiers out of markdown spec
// text. Recognized forms: explicit markers anywhere in the document, and
// numbered or bulleted list items (which take their marker as ID when they
// carry one, or a positional synthetic ID otherwise).
func ExtractRequirements(specText []byte) []Requirement {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(specText))

	var reqs []Requirement
	seen := make(map[string]bool)
	synthetic := 0

	add := func(id, itemText string) {
		if seen[id] {
			return
		}
		seen[id] = true
		reqs = append(reqs, Requirement{ID: id, Text: itemText})
	}

	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		item, ok := n.(*ast.ListItem)
		if !ok {
			return ast.WalkContinue, nil
		}
		itemText := strings.TrimSpace(nodeText(item, specText))
		if itemText == "" {
			return ast.WalkContinue, nil
		}
		if markers := markerPattern.FindAllString(itemText, -1); len(markers) > 0 {
			for _, m := range markers {
				add(m, itemText)
			}
		} else {
			synthetic++
			add(fmt.Sprintf("req-%d", synthetic), itemText)
		}
		// Nested lists restate their parent item's text; one level is enough.
		return ast.WalkSkipChildren, nil
	})

	// Markers used in prose outside any list still count as requirements.
	for _, m := range markerPattern.FindAllString(string(specText), -1) {
		add(m, m)
	}

	return reqs
}

// nodeText collects the plain text under n, including nested paragraphs.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if t, ok := child.(*ast.Text); ok {
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		}
		return ast.WalkContinue, nil
	})
	return sb.String()
}
