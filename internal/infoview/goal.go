// Package infoview tracks and renders Lean proof state: the goals the
// server reports at the cursor, their change over time, and the
// terminal panel that displays them.
package infoview

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/leantools/leanview/internal/lsp"
)

// Goal is one proof goal: optional case label, hypotheses, and the
// conclusion shown after the turnstile.
type Goal struct {
	CaseName   string
	Hypotheses []string
	Conclusion string
}

// GoalView is the resolved proof state for one cursor position.
type GoalView struct {
	Goals    []Goal
	Rendered string // server's markdown rendering, fences stripped
	TermGoal *lsp.PlainTermGoal
}

// IsEmpty reports whether the view carries no goal information at all.
func (v *GoalView) IsEmpty() bool {
	return v == nil || (len(v.Goals) == 0 && v.Rendered == "" && v.TermGoal == nil)
}

// ParseGoalText parses a plain goal string from $/lean/plainGoal into
// its parts. The server formats goals as an optional `case foo` line,
// hypothesis lines, then a `⊢` conclusion which may wrap onto
// continuation lines.
func ParseGoalText(text string) Goal {
	var g Goal
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	i := 0
	if i < len(lines) && strings.HasPrefix(lines[i], "case ") {
		g.CaseName = strings.TrimPrefix(lines[i], "case ")
		i++
	}

	for ; i < len(lines); i++ {
		if strings.HasPrefix(lines[i], "⊢") {
			break
		}
		if lines[i] != "" {
			g.Hypotheses = append(g.Hypotheses, lines[i])
		}
	}

	if i < len(lines) {
		conclusion := []string{strings.TrimSpace(strings.TrimPrefix(lines[i], "⊢"))}
		for i++; i < len(lines); i++ {
			conclusion = append(conclusion, strings.TrimSpace(lines[i]))
		}
		g.Conclusion = strings.Join(conclusion, " ")
	}
	return g
}

// ProbePlainGoal decodes a $/lean/plainGoal result. The payload shape
// has varied across server versions: modern servers send
// {rendered, goals: [..]}, older ones sent a bare rendered string.
// gjson probing keeps the decoder indifferent to which arrived.
func ProbePlainGoal(raw json.RawMessage) *GoalView {
	if len(raw) == 0 {
		return nil
	}

	r := gjson.ParseBytes(raw)
	switch r.Type {
	case gjson.String:
		return &GoalView{Rendered: stripFences(r.String())}
	case gjson.JSON:
	default:
		return nil
	}

	view := &GoalView{Rendered: stripFences(r.Get("rendered").String())}
	for _, g := range r.Get("goals").Array() {
		view.Goals = append(view.Goals, ParseGoalText(g.String()))
	}
	return view
}

// stripFences removes markdown code fences from the server's rendered
// goal text.
func stripFences(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
