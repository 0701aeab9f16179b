// Package report renders a run summary as Markdown and HTML.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"phenoprofile/domain/core"
	"phenoprofile/domain/profile"
)

// GroupOutcome is the single-tier result of one group
type GroupOutcome struct {
	Group    core.GroupID
	Subjects int
	Affected int
}

// Percent of the group's subjects classified affected
func (g GroupOutcome) Percent() float64 {
	if g.Subjects == 0 {
		return 0
	}
	return float64(g.Affected) / float64(g.Subjects) * 100
}

// Summary is everything the report shows about a run
type Summary struct {
	Title      string
	RunID      core.RunID
	Dataset    string
	Selection  profile.Selection
	Operating  profile.OperatingPoint
	Groups     []GroupOutcome
	Tiers      []profile.TierSummary // empty for single-tier runs
	MediumCut  float64
	HighCut    float64
	Candidates int
}

// Outcomes counts affected subjects per group, in group order
func Outcomes(rows []profile.SubjectResult) []GroupOutcome {
	index := make(map[core.GroupID]int)
	var out []GroupOutcome
	for _, r := range rows {
		i, ok := index[r.Group]
		if !ok {
			i = len(out)
			index[r.Group] = i
			out = append(out, GroupOutcome{Group: r.Group})
		}
		out[i].Subjects++
		if r.Affected {
			out[i].Affected++
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Group < out[b].Group })
	return out
}

// Markdown renders the summary
func Markdown(s Summary) []byte {
	var b strings.Builder
	title := s.Title
	if title == "" {
		title = "Deviation profile"
	}
	fmt.Fprintf(&b, "# %s: %s\n\n", title, s.Dataset)
	if s.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`\n\n", s.RunID)
	}

	b.WriteString("## Selection\n\n")
	fmt.Fprintf(&b, "- Control: %s\n", s.Selection.Control.Label())
	groups := make([]string, len(s.Selection.Groups))
	for i, g := range s.Selection.Groups {
		groups[i] = g.Label()
	}
	fmt.Fprintf(&b, "- Groups: %s\n", strings.Join(groups, ", "))
	fmt.Fprintf(&b, "- Parameters (%d): %s\n\n", len(s.Selection.Parameters), strings.Join(s.Selection.Parameters, ", "))

	b.WriteString("## Operating point\n\n")
	if !s.Operating.Found {
		b.WriteString("No threshold separated the groups while keeping the control group under the ceiling.\n\n")
	} else {
		b.WriteString("| Threshold | Parameters | Max difference | Weighted |\n|---|---|---|---|\n")
		fmt.Fprintf(&b, "| %.2f | %d | %.1f | %.1f |\n\n", s.Operating.Threshold, s.Operating.K, s.Operating.MaxDiff, s.Operating.Weighted)
		if s.Candidates > 0 {
			fmt.Fprintf(&b, "%d candidate operating points passed the control ceiling.\n\n", s.Candidates)
		}
	}

	if len(s.Groups) > 0 {
		b.WriteString("## Affected subjects\n\n| Group | Subjects | Affected | % |\n|---|---|---|---|\n")
		for _, g := range s.Groups {
			fmt.Fprintf(&b, "| %s | %d | %d | %.1f |\n", g.Group.Label(), g.Subjects, g.Affected, g.Percent())
		}
		b.WriteString("\n")
	}

	if len(s.Tiers) > 0 {
		b.WriteString("## Two-tier classification\n\n")
		fmt.Fprintf(&b, "Corrected score cuts: medium > %.0f, high > %.0f\n\n", s.MediumCut, s.HighCut)
		b.WriteString("| Group | Subjects | High % | Medium % | Not affected % |\n|---|---|---|---|---|\n")
		for _, t := range s.Tiers {
			fmt.Fprintf(&b, "| %s | %d | %.1f | %.1f | %.1f |\n", t.Group.Label(), t.Subjects, t.High, t.Medium, t.NotAffected)
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// HTML renders the summary's Markdown to a standalone HTML page
func HTML(s Summary) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: s.Dataset,
	})
	return markdown.ToHTML(Markdown(s), p, renderer)
}

// Write renders the summary as "html" or "md"
func Write(w io.Writer, s Summary, format string) error {
	var body []byte
	switch strings.ToLower(format) {
	case "md", "markdown":
		body = Markdown(s)
	case "", "html":
		body = HTML(s)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
	_, err := w.Write(body)
	return err
}
