package ui

import (
	"fmt"
	"io"
	"strings"
)

// Passage is one retrieved chunk prepared for display.
type Passage struct {
	Rank     int
	ID       int
	Kind     string
	Date     string
	Topic    string
	Text     string
	Lexical  float64
	Semantic float64
	Matched  []string
}

// ResultSummary is the header line of a search.
type ResultSummary struct {
	Query      string
	Mode       string
	Fallback   string
	Candidates int
	Elapsed    string
}

// ResultRenderer prints retrieved passages.
type ResultRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultRenderer creates a result renderer.
func NewResultRenderer(out io.Writer, noColor bool) *ResultRenderer {
	return &ResultRenderer{out: out, styles: GetStyles(noColor)}
}

// Render prints the summary followed by each passage.
func (r *ResultRenderer) Render(sum ResultSummary, passages []Passage) {
	if len(passages) == 0 {
		_, _ = fmt.Fprintf(r.out, "No passages found for %q\n", sum.Query)
		return
	}

	head := fmt.Sprintf("%d passages for %q  (%s", len(passages), sum.Query, sum.Mode)
	if sum.Fallback != "" {
		head += ", " + sum.Fallback
	}
	head += fmt.Sprintf(", %d candidates, %s)", sum.Candidates, sum.Elapsed)
	_, _ = fmt.Fprintln(r.out, r.styles.Header.Render(head))

	for _, p := range passages {
		_, _ = fmt.Fprintln(r.out)
		meta := r.styles.Meta.Render(fmt.Sprintf("[%s · %s · %s]", p.Kind, p.Date, p.Topic))
		scores := fmt.Sprintf("bm25 %.3f", p.Lexical)
		if p.Semantic != 0 {
			scores += fmt.Sprintf("  cos %.3f", p.Semantic)
		}
		_, _ = fmt.Fprintf(r.out, "%d. %s  %s  %s\n", p.Rank, meta,
			r.styles.Dim.Render(fmt.Sprintf("#%d", p.ID)), r.styles.Score.Render(scores))
		_, _ = fmt.Fprintln(r.out, indent(p.Text, "   "))
		if len(p.Matched) > 0 {
			terms := make([]string, len(p.Matched))
			for i, t := range p.Matched {
				terms[i] = r.styles.Term.Render(t)
			}
			_, _ = fmt.Fprintf(r.out, "   %s %s\n", r.styles.Label.Render("matched:"), strings.Join(terms, ", "))
		}
	}
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
