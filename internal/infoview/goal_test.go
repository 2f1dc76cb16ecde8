package infoview

import (
	"encoding/json"
	"testing"
)

func TestParseGoalText(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		caseName string
		hyps     []string
		concl    string
	}{
		{
			name:  "simple",
			text:  "n : Nat\n⊢ n + 0 = n",
			hyps:  []string{"n : Nat"},
			concl: "n + 0 = n",
		},
		{
			name:     "case label",
			text:     "case succ\nn : Nat\nih : n + 0 = n\n⊢ n + 1 + 0 = n + 1",
			caseName: "succ",
			hyps:     []string{"n : Nat", "ih : n + 0 = n"},
			concl:    "n + 1 + 0 = n + 1",
		},
		{
			name:  "wrapped conclusion",
			text:  "h : P\n⊢ Q ∧\n  R",
			hyps:  []string{"h : P"},
			concl: "Q ∧ R",
		},
		{
			name:  "no hypotheses",
			text:  "⊢ True",
			concl: "True",
		},
		{
			name: "no turnstile",
			text: "p : Prop\nq : Prop",
			hyps: []string{"p : Prop", "q : Prop"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := ParseGoalText(tt.text)
			if g.CaseName != tt.caseName {
				t.Errorf("CaseName = %q, want %q", g.CaseName, tt.caseName)
			}
			if len(g.Hypotheses) != len(tt.hyps) {
				t.Fatalf("Hypotheses = %v, want %v", g.Hypotheses, tt.hyps)
			}
			for i, h := range tt.hyps {
				if g.Hypotheses[i] != h {
					t.Errorf("Hypotheses[%d] = %q, want %q", i, g.Hypotheses[i], h)
				}
			}
			if g.Conclusion != tt.concl {
				t.Errorf("Conclusion = %q, want %q", g.Conclusion, tt.concl)
			}
		})
	}
}

func TestProbePlainGoalModern(t *testing.T) {
	raw := json.RawMessage(`{"rendered":"` + "```lean\\nn : Nat\\n⊢ n = n\\n```" + `","goals":["n : Nat\n⊢ n = n"]}`)

	view := ProbePlainGoal(raw)
	if view == nil {
		t.Fatal("ProbePlainGoal returned nil")
	}
	if len(view.Goals) != 1 {
		t.Fatalf("Goals = %d, want 1", len(view.Goals))
	}
	if got := view.Goals[0].Conclusion; got != "n = n" {
		t.Errorf("Conclusion = %q, want %q", got, "n = n")
	}
	if view.Rendered != "n : Nat\n⊢ n = n" {
		t.Errorf("Rendered = %q, fences not stripped", view.Rendered)
	}
}

func TestProbePlainGoalLegacyString(t *testing.T) {
	raw := json.RawMessage(`"⊢ True"`)

	view := ProbePlainGoal(raw)
	if view == nil {
		t.Fatal("ProbePlainGoal returned nil")
	}
	if len(view.Goals) != 0 {
		t.Errorf("Goals = %d, want 0 for legacy payload", len(view.Goals))
	}
	if view.Rendered != "⊢ True" {
		t.Errorf("Rendered = %q, want %q", view.Rendered, "⊢ True")
	}
}

func TestProbePlainGoalAccomplished(t *testing.T) {
	raw := json.RawMessage(`{"rendered":"","goals":[]}`)

	view := ProbePlainGoal(raw)
	if view == nil {
		t.Fatal("ProbePlainGoal returned nil")
	}
	if !view.IsEmpty() {
		t.Error("view with no goals and no rendering should be empty")
	}
}

func TestProbePlainGoalEmptyAndNull(t *testing.T) {
	if view := ProbePlainGoal(nil); view != nil {
		t.Errorf("ProbePlainGoal(nil) = %v, want nil", view)
	}
	if view := ProbePlainGoal(json.RawMessage(`null`)); view != nil {
		t.Errorf("ProbePlainGoal(null) = %v, want nil", view)
	}
}

func TestStripFences(t *testing.T) {
	in := "```lean\nn : Nat\n⊢ n = n\n```"
	if got := stripFences(in); got != "n : Nat\n⊢ n = n" {
		t.Errorf("stripFences = %q", got)
	}
	if got := stripFences("  plain  "); got != "plain" {
		t.Errorf("stripFences = %q, want trimmed passthrough", got)
	}
}

func TestGoalViewIsEmpty(t *testing.T) {
	var v *GoalView
	if !v.IsEmpty() {
		t.Error("nil view should be empty")
	}
	if (&GoalView{}).IsEmpty() != true {
		t.Error("zero view should be empty")
	}
	if (&GoalView{Rendered: "⊢ True"}).IsEmpty() {
		t.Error("rendered view should not be empty")
	}
}
