package mediation

import (
	"testing"
	"time"
)

func TestExpressionProfileValidate(t *testing.T) {
	t.Parallel()

	valid := ExpressionProfile{
		Emotions:            []EmotionScore{{Name: "anger", Score: 0.6}, {Name: "hope", Score: 0.2}},
		DominantEmotion:     "anger",
		EmotionalState:      StateNegative,
		ConflictLevel:       60,
		ResolutionPotential: 32,
		Recommendations:     []string{"a", "b"},
		Timestamp:           time.Unix(1, 0),
		Source:              SourceText,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(p *ExpressionProfile)
	}{
		{name: "empty emotions", mutate: func(p *ExpressionProfile) { p.Emotions = nil }},
		{name: "unsorted", mutate: func(p *ExpressionProfile) {
			p.Emotions = []EmotionScore{{Name: "hope", Score: 0.1}, {Name: "anger", Score: 0.6}}
			p.DominantEmotion = "hope"
		}},
		{name: "dominant mismatch", mutate: func(p *ExpressionProfile) { p.DominantEmotion = "joy" }},
		{name: "conflict out of range", mutate: func(p *ExpressionProfile) { p.ConflictLevel = 101 }},
		{name: "resolution out of range", mutate: func(p *ExpressionProfile) { p.ResolutionPotential = -1 }},
		{name: "too many recommendations", mutate: func(p *ExpressionProfile) { p.Recommendations = []string{"a", "b", "c", "d"} }},
		{name: "bad source", mutate: func(p *ExpressionProfile) { p.Source = "smell" }},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			p := valid
			p.Emotions = append([]EmotionScore(nil), valid.Emotions...)
			tc.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestRecentHistoryWindow(t *testing.T) {
	t.Parallel()

	history := make([]ExpressionProfile, 7)
	for i := range history {
		history[i].ConflictLevel = i
	}
	ctx := OrchestrationContext{SessionPhase: PhaseOpening, EmotionHistory: history}

	recent := ctx.RecentHistory(5)
	if len(recent) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(recent))
	}
	if recent[0].ConflictLevel != 2 || recent[4].ConflictLevel != 6 {
		t.Fatalf("expected last five entries, got first=%d last=%d", recent[0].ConflictLevel, recent[4].ConflictLevel)
	}
	if got := ctx.RecentHistory(0); got != nil {
		t.Fatalf("expected nil for zero window, got %d entries", len(got))
	}
	if got := (OrchestrationContext{}).RecentHistory(5); got != nil {
		t.Fatalf("expected nil for empty history")
	}
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	doc := DefaultDocumentAnalysis()
	if doc.DocumentType != "unknown" || doc.ConflictRelevance != 0 || doc.Summary != "Document analysis unavailable" {
		t.Fatalf("unexpected default document analysis: %+v", doc)
	}
	if doc.KeyPoints == nil || doc.ActionItems == nil || doc.RelevantQuotes == nil {
		t.Fatalf("expected empty, non-nil arrays in default document analysis")
	}

	conflict := DefaultConflictAnalysis("bogus")
	if conflict.Severity != SeverityMedium || conflict.ConflictType != ConflictOther {
		t.Fatalf("unexpected default conflict analysis: %+v", conflict)
	}
	if len(conflict.NextSteps) != 1 || conflict.NextSteps[0] != "Gather more information" {
		t.Fatalf("unexpected default next steps: %v", conflict.NextSteps)
	}
	if got := DefaultConflictAnalysis(ConflictFamily).ConflictType; got != ConflictFamily {
		t.Fatalf("expected caller conflict type to be kept, got %s", got)
	}

	if len(DefaultRecommendations()) != 3 {
		t.Fatalf("expected three default recommendations")
	}
}

func TestOrchestrationContextValidate(t *testing.T) {
	t.Parallel()

	if err := (OrchestrationContext{SessionPhase: PhaseNegotiation}).Validate(); err != nil {
		t.Fatalf("expected valid context: %v", err)
	}
	if err := (OrchestrationContext{SessionPhase: "lunch"}).Validate(); err == nil {
		t.Fatalf("expected invalid phase error")
	}
	if err := (OrchestrationContext{SessionPhase: PhaseOpening, ConflictType: "galactic"}).Validate(); err == nil {
		t.Fatalf("expected invalid conflict type error")
	}
}
