package infoview

import (
	"fmt"
	"strings"

	"github.com/leantools/leanview/internal/lsp"
)

// Accomplished is shown when the proof at the cursor has no goals left.
const Accomplished = "Goals accomplished 🎉"

// RenderFull formats the complete proof state without change markers.
func RenderFull(view *GoalView, diags []lsp.Diagnostic) string {
	var sb strings.Builder

	writeGoalCount(&sb, view, nil)
	if view != nil {
		for i, g := range view.Goals {
			if i > 0 {
				sb.WriteString("\n")
			}
			writeGoalHeader(&sb, i, g)
			for _, h := range g.Hypotheses {
				fmt.Fprintf(&sb, "%s\n", h)
			}
			fmt.Fprintf(&sb, "⊢ %s\n", g.Conclusion)
		}
		writeRenderedFallback(&sb, view)
		writeTermGoal(&sb, view)
	}
	writeDiagnostics(&sb, diags)

	if sb.Len() == 0 {
		return "No goal information."
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderDelta formats the proof state as a change against the previous
// view. The first goal is shown in full with its hypotheses diffed;
// remaining goals show only their conclusions.
func RenderDelta(prev, cur *GoalView, diags []lsp.Diagnostic) string {
	var sb strings.Builder

	writeGoalCount(&sb, cur, prev)
	if cur != nil && len(cur.Goals) > 0 {
		g := cur.Goals[0]
		writeGoalHeader(&sb, 0, g)

		var prevGoal *Goal
		if prev != nil && len(prev.Goals) > 0 {
			prevGoal = &prev.Goals[0]
		}
		writeHypothesesDiff(&sb, prevGoal, &g)
		fmt.Fprintf(&sb, "⊢ %s\n", g.Conclusion)

		for i := 1; i < len(cur.Goals); i++ {
			ng := cur.Goals[i]
			sb.WriteString("\n")
			writeGoalHeader(&sb, i, ng)
			fmt.Fprintf(&sb, "⊢ %s\n", ng.Conclusion)
		}
	}
	if cur != nil {
		writeRenderedFallback(&sb, cur)
		writeTermGoal(&sb, cur)
	}
	writeDiagnostics(&sb, diags)

	if sb.Len() == 0 {
		return "No goal information."
	}
	return strings.TrimRight(sb.String(), "\n")
}

// writeGoalCount writes the goal-count header, with a delta against
// the previous view when one exists. An empty goal list renders the
// accomplished banner instead.
func writeGoalCount(sb *strings.Builder, cur, prev *GoalView) {
	if cur == nil {
		return
	}
	if len(cur.Goals) == 0 {
		if cur.Rendered == "" {
			fmt.Fprintf(sb, "%s\n", Accomplished)
		}
		return
	}

	n := len(cur.Goals)
	if prev == nil || len(prev.Goals) == 0 {
		fmt.Fprintf(sb, "%s\n", goalCount(n))
		return
	}

	switch delta := n - len(prev.Goals); {
	case delta > 0:
		fmt.Fprintf(sb, "%s (+%d)\n", goalCount(n), delta)
	case delta < 0:
		fmt.Fprintf(sb, "%s (%d)\n", goalCount(n), delta)
	default:
		fmt.Fprintf(sb, "%s\n", goalCount(n))
	}
}

func goalCount(n int) string {
	if n == 1 {
		return "1 goal"
	}
	return fmt.Sprintf("%d goals", n)
}

func writeGoalHeader(sb *strings.Builder, index int, g Goal) {
	if g.CaseName != "" {
		fmt.Fprintf(sb, "case %s\n", g.CaseName)
	} else if index > 0 {
		fmt.Fprintf(sb, "goal %d\n", index+1)
	}
}

// writeHypothesesDiff writes the hypotheses of cur, marking lines
// added since prev with + and lines removed with -.
func writeHypothesesDiff(sb *strings.Builder, prev, cur *Goal) {
	if prev == nil {
		for _, h := range cur.Hypotheses {
			fmt.Fprintf(sb, "%s\n", h)
		}
		return
	}

	prevSet := make(map[string]bool, len(prev.Hypotheses))
	for _, h := range prev.Hypotheses {
		prevSet[h] = true
	}
	curSet := make(map[string]bool, len(cur.Hypotheses))
	for _, h := range cur.Hypotheses {
		curSet[h] = true
	}

	for _, h := range prev.Hypotheses {
		if !curSet[h] {
			fmt.Fprintf(sb, "- %s\n", h)
		}
	}
	for _, h := range cur.Hypotheses {
		if prevSet[h] {
			fmt.Fprintf(sb, "%s\n", h)
		} else {
			fmt.Fprintf(sb, "+ %s\n", h)
		}
	}
}

// writeRenderedFallback prints the server's rendered text when no
// structured goals were decoded (legacy payloads).
func writeRenderedFallback(sb *strings.Builder, view *GoalView) {
	if len(view.Goals) > 0 || view.Rendered == "" {
		return
	}
	fmt.Fprintf(sb, "%s\n", view.Rendered)
}

func writeTermGoal(sb *strings.Builder, view *GoalView) {
	if view.TermGoal == nil {
		return
	}
	goal := strings.TrimSpace(strings.TrimPrefix(view.TermGoal.Goal, "⊢"))
	fmt.Fprintf(sb, "\nExpected type: %s\n", goal)
}

// writeDiagnostics appends the diagnostics section with 1-based lines.
func writeDiagnostics(sb *strings.Builder, diags []lsp.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString("Messages:\n")
	for _, d := range diags {
		fmt.Fprintf(sb, "[%s] %d:%d: %s\n",
			severityName(d.Severity),
			d.Range.Start.Line+1, d.Range.Start.Character,
			d.Message)
	}
}

func severityName(severity int) string {
	switch severity {
	case lsp.SeverityError:
		return "error"
	case lsp.SeverityWarning:
		return "warning"
	case lsp.SeverityHint:
		return "hint"
	default:
		return "info"
	}
}
