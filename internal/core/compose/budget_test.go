package compose

import (
	"strings"
	"testing"
)

func TestBudget_ShortPromptGetsFullWindow(t *testing.T) {
	if got := Budget(30); got != 1000 {
		t.Fatalf("Budget(30) = %d, want 1000", got)
	}
}

func TestBudget_LongPromptGetsFloor(t *testing.T) {
	if got := Budget(500); got != 190 {
		t.Fatalf("Budget(500) = %d, want 190", got)
	}
	if got := Budget(900); got != 190 {
		t.Fatalf("Budget(900) = %d, want 190", got)
	}
}

func TestBudget_MidpointScalesLinearly(t *testing.T) {
	// ratio = 1 - (225/450)*0.9 = 0.55 -> 100 + 900*0.55
	if got := Budget(275); got != 595 {
		t.Fatalf("Budget(275) = %d, want 595", got)
	}
}

func TestBudget_HugePromptLeavesNoRoom(t *testing.T) {
	if got := Budget(3800); got != 0 {
		t.Fatalf("Budget(3800) = %d, want 0", got)
	}
}

func TestPickStrategy(t *testing.T) {
	if got := PickStrategy(100, 200); got != StrategyNone {
		t.Fatalf("under budget -> %v", got)
	}
	if got := PickStrategy(300, 200); got != StrategyRankSelect {
		t.Fatalf("under 2x budget -> %v", got)
	}
	if got := PickStrategy(500, 200); got != StrategyDistill {
		t.Fatalf("over 2x budget -> %v", got)
	}
}

func TestSimilarity_Tiers(t *testing.T) {
	both := Similarity("deadline friday", Item{Key: "project_deadline", Value: "Friday"})
	if !approx(both, 0.8) {
		t.Fatalf("both sides = %v, want 0.8", both)
	}

	sigOnly := Similarity("what's my deadline", Item{Key: "project_deadline", Value: "end of quarter"})
	if !approx(sigOnly, 0.5) {
		t.Fatalf("signal only = %v, want 0.5", sigOnly)
	}

	valOnly := Similarity("friday plans", Item{Key: "due", Value: "Friday"})
	if !approx(valOnly, 0.3) {
		t.Fatalf("value only = %v, want 0.3", valOnly)
	}

	neither := Similarity("write a poem", Item{Key: "project_deadline", Value: "Friday"})
	if !approx(neither, 0.1) {
		t.Fatalf("no overlap = %v, want 0.1", neither)
	}
}

func TestSimilarity_Caps(t *testing.T) {
	it := Item{
		Key:   "alpha beta gamma delta epsilon",
		Value: "alpha beta gamma delta epsilon",
	}
	if got := Similarity("alpha beta gamma delta epsilon", it); got != 1.0 {
		t.Fatalf("similarity = %v, want capped 1.0", got)
	}
}

func TestRankScore_Defaults(t *testing.T) {
	it := Item{Key: "project_deadline", Value: "Friday", Confidence: 0.9}
	// sim 0.1*0.4 + recency 0.8*0.2 + freq 0.5*0.1 + conf 0.9*0.3
	if got := RankScore("write a poem", it); !approx(got, 0.52) {
		t.Fatalf("rank = %v, want 0.52", got)
	}
}

func TestSituationBrief_Defaults(t *testing.T) {
	text, tokens := SituationBrief(BriefInputs{})
	want := "User is currently working in an unspecified location at the current time. Previous context indicates no specific constraints."
	if text != want {
		t.Fatalf("brief = %q", text)
	}
	if tokens != len(want)/4 {
		t.Fatalf("tokens = %d", tokens)
	}
}

func TestSituationBrief_FieldsAndConstraintCap(t *testing.T) {
	text, _ := SituationBrief(BriefInputs{
		Activity:        "debugging",
		Location:        "Lisbon",
		TimeDescription: "Friday afternoon",
		Constraints:     []string{"ship by Friday", "prefers brevity", "a third thing"},
	})
	if !strings.Contains(text, "debugging in Lisbon at Friday afternoon") {
		t.Fatalf("brief = %q", text)
	}
	if !strings.Contains(text, "ship by Friday; prefers brevity.") {
		t.Fatalf("constraints not capped at two: %q", text)
	}
	if strings.Contains(text, "a third thing") {
		t.Fatalf("third constraint leaked: %q", text)
	}
}

func TestConstraintsFrom(t *testing.T) {
	items := []Item{
		{Key: "project_deadline", Value: "ship by Friday"},
		{Key: "tone_preference", Value: "prefers brevity"},
		{Key: "communication_style", Value: "direct"},
		{Key: "favorite_color", Value: "green"},
	}
	got := ConstraintsFrom(items)
	if len(got) != 3 {
		t.Fatalf("constraints = %+v", got)
	}
	if got[0] != "ship by Friday" || got[1] != "prefers brevity" || got[2] != "direct" {
		t.Fatalf("constraints = %+v", got)
	}
}

func TestPlanContext_NonePassesEverything(t *testing.T) {
	items := []Item{
		{Key: "a", Value: "one", Tokens: 50, Confidence: 0.9},
		{Key: "b", Value: "two", Tokens: 50, Confidence: 0.9},
	}
	p := PlanContext("query", 30, items, BriefInputs{})
	if p.Strategy != StrategyNone {
		t.Fatalf("strategy = %v", p.Strategy)
	}
	if len(p.Included) != 2 || p.Tokens != 100 {
		t.Fatalf("plan = %+v", p)
	}
	if !strings.HasPrefix(p.Prompt, "Current user context:\n- ") {
		t.Fatalf("prompt = %q", p.Prompt)
	}
}

func TestPlanContext_RankSelectKeepsBestThatFit(t *testing.T) {
	// Budget(600) = 190; three 100-token items total 300, between
	// 190 and 380, so ranked selection applies and only one fits
	items := []Item{
		{Key: "noise", Value: "irrelevant", Tokens: 100, Confidence: 0.2},
		{Key: "deadline", Value: "ship friday", Tokens: 100, Confidence: 0.9},
		{Key: "filler", Value: "other", Tokens: 100, Confidence: 0.5},
	}
	p := PlanContext("when is the deadline", 600, items, BriefInputs{})
	if p.Strategy != StrategyRankSelect {
		t.Fatalf("strategy = %v", p.Strategy)
	}
	if len(p.Included) != 1 || p.Included[0] != "deadline" {
		t.Fatalf("included = %+v", p.Included)
	}
	if !strings.Contains(p.Prompt, "- deadline: ship friday") {
		t.Fatalf("prompt = %q", p.Prompt)
	}
}

func TestPlanContext_DistillCollapsesToBrief(t *testing.T) {
	var items []Item
	for i := 0; i < 5; i++ {
		items = append(items, Item{Key: "k", Value: "v", Tokens: 100, Confidence: 0.5})
	}
	items = append(items, Item{Key: "project_deadline", Value: "ship by Friday", Tokens: 10})

	p := PlanContext("hello", 600, items, BriefInputs{})
	if p.Strategy != StrategyDistill {
		t.Fatalf("strategy = %v", p.Strategy)
	}
	if len(p.Included) != 1 || p.Included[0] != "situation_brief" {
		t.Fatalf("included = %+v", p.Included)
	}
	if !strings.Contains(p.Prompt, "ship by Friday") {
		t.Fatalf("constraint not distilled into brief: %q", p.Prompt)
	}
}

func TestItemLine_PrefersInterpretation(t *testing.T) {
	it := Item{Key: "k", Value: "v", Interpretation: "User prefers brevity"}
	if it.line() != "User prefers brevity" {
		t.Fatalf("line = %q", it.line())
	}
	it.Interpretation = ""
	if it.line() != "k: v" {
		t.Fatalf("line = %q", it.line())
	}
}
