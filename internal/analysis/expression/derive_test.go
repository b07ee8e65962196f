package expression

import (
	"math/rand"
	"testing"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
)

func scores(pairs ...any) []mediation.EmotionScore {
	out := make([]mediation.EmotionScore, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, mediation.EmotionScore{Name: pairs[i].(string), Score: pairs[i+1].(float64)})
	}
	return out
}

func TestEmotionalState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		emotions []mediation.EmotionScore
		want     mediation.EmotionalState
	}{
		{name: "positive", emotions: scores("joy", 0.8, "anger", 0.1), want: mediation.StatePositive},
		{name: "negative", emotions: scores("anger", 0.8, "joy", 0.1), want: mediation.StateNegative},
		{name: "mixed within threshold", emotions: scores("joy", 0.5, "sadness", 0.45), want: mediation.StateMixed},
		{name: "untagged only", emotions: scores("neutral", 0.5), want: mediation.StateNeutral},
		{name: "tiny one-sided", emotions: scores("joy", 0.05, "neutral", 0.5), want: mediation.StateNeutral},
		{name: "case insensitive", emotions: scores("Anger", 0.9), want: mediation.StateNegative},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := EmotionalState(tc.emotions); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestConflictAndResolution(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		emotions       []mediation.EmotionScore
		wantConflict   int
		wantResolution int
	}{
		{name: "calm", emotions: scores("neutral", 0.5), wantConflict: 0, wantResolution: 30},
		{name: "capped conflict", emotions: scores("anger", 0.9, "contempt", 0.8, "irritation", 0.4), wantConflict: 100, wantResolution: 0},
		{name: "relief", emotions: scores("relief", 0.5, "annoyance", 0.2), wantConflict: 20, wantResolution: 74},
		{name: "capped resolution", emotions: scores("gratitude", 0.9, "hope", 0.6), wantConflict: 0, wantResolution: 100},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			conflict := ConflictLevel(tc.emotions)
			if conflict != tc.wantConflict {
				t.Fatalf("expected conflict %d, got %d", tc.wantConflict, conflict)
			}
			if got := ResolutionPotential(tc.emotions, conflict); got != tc.wantResolution {
				t.Fatalf("expected resolution %d, got %d", tc.wantResolution, got)
			}
		})
	}
}

func TestRecommendationsPriorityOrder(t *testing.T) {
	t.Parallel()

	got := Recommendations("Anger", 85, mediation.PhaseOpening)
	want := []string{adviceByEmotion["anger"], highConflictAdvice, adviceByPhase[mediation.PhaseOpening]}
	if len(got) != len(want) {
		t.Fatalf("expected %d recommendations, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %q at %d, got %q", want[i], i, got[i])
		}
	}

	mid := Recommendations("unlisted", 50, "")
	if len(mid) != 0 {
		t.Fatalf("expected no advice for unlisted emotion in the middle band, got %v", mid)
	}
	low := Recommendations("neutral", 10, mediation.PhaseClosing)
	if len(low) != 3 || low[1] != lowConflictAdvice {
		t.Fatalf("expected low-conflict advice second, got %v", low)
	}
}

func TestFlattenAveragesAcrossGroups(t *testing.T) {
	t.Parallel()

	groups := []contracts.PredictionGroup{
		{Model: contracts.ModelProsody, Predictions: []contracts.PredictionFrame{
			{Emotions: []contracts.EmotionPrediction{{Name: "Calmness", Score: 0.4}, {Name: "Anger", Score: 0.2}}},
		}},
		{Model: contracts.ModelBurst, Predictions: []contracts.PredictionFrame{
			{Emotions: []contracts.EmotionPrediction{{Name: "calmness", Score: 0.8}, {Name: "Sigh", Score: 1.7}}},
		}},
	}
	got := Flatten(groups)
	if len(got) != 3 {
		t.Fatalf("expected three merged emotions, got %+v", got)
	}
	if got[0].Name != "sigh" || got[0].Score != 1 {
		t.Fatalf("expected out-of-range score clamped to 1, got %+v", got[0])
	}
	if got[1].Name != "calmness" || got[1].Score < 0.599 || got[1].Score > 0.601 {
		t.Fatalf("expected averaged calmness 0.6, got %+v", got[1])
	}
}

func TestHeuristicEmotions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want []mediation.EmotionScore
	}{
		{name: "no keywords", text: "The meeting is on Tuesday", want: scores("neutral", 0.5)},
		{name: "empty", text: "", want: scores("neutral", 0.5)},
		{name: "single", text: "I am ANGRY!", want: scores("anger", 0.3)},
		{name: "repeat counts", text: "mad, mad, so MAD and furious", want: scores("anger", 0.9)},
		{name: "phrase", text: "I'm fed up and sad", want: scores("frustration", 0.3, "sadness", 0.3)},
		{name: "ranked", text: "happy glad but worried", want: scores("joy", 0.6, "fear", 0.3)},
		{name: "word boundary", text: "We made a plan", want: scores("neutral", 0.5)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := HeuristicEmotions(tc.text)
			if len(got) != len(tc.want) {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
			for i := range tc.want {
				if got[i].Name != tc.want[i].Name || got[i].Score < tc.want[i].Score-1e-9 || got[i].Score > tc.want[i].Score+1e-9 {
					t.Fatalf("expected %+v, got %+v", tc.want, got)
				}
			}
		})
	}
}

func TestDeriveInvariantsHoldForRandomVectors(t *testing.T) {
	t.Parallel()

	names := []string{"anger", "joy", "relief", "contempt", "sadness", "hope", "calmness", "frustration", "empathy", "neutral"}
	rng := rand.New(rand.NewSource(42))
	phases := []mediation.SessionPhase{mediation.PhaseOpening, mediation.PhaseExploration, mediation.PhaseNegotiation, mediation.PhaseResolution, mediation.PhaseClosing}

	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(len(names))
		emotions := make([]mediation.EmotionScore, 0, n)
		for _, idx := range rng.Perm(len(names))[:n] {
			emotions = append(emotions, mediation.EmotionScore{Name: names[idx], Score: rng.Float64()})
		}
		octx := &mediation.OrchestrationContext{SessionPhase: phases[rng.Intn(len(phases))]}
		profile := Derive(emotions, mediation.SourceText, ProviderConfidence, octx, fixedNow)
		if err := profile.Validate(); err != nil {
			t.Fatalf("iteration %d: invalid profile %+v: %v", i, profile, err)
		}
		if profile.ConflictLevel != ConflictLevel(profile.Emotions) {
			t.Fatalf("iteration %d: conflict level not derived from emotions", i)
		}
		if profile.ConflictLevel > 50 && profile.ResolutionPotential > 50 {
			if indicatorSum(emotions, conflictIndicators) == 0 || indicatorSum(emotions, resolutionIndicators) == 0 {
				t.Fatalf("iteration %d: both scores above 50 without both indicator kinds: %+v", i, emotions)
			}
		}
	}
}

func TestConflictAndResolutionHighTogether(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		emotions []mediation.EmotionScore
		wantBoth bool
	}{
		{name: "anger with relief", emotions: []mediation.EmotionScore{{Name: "Relief", Score: 0.7}, {Name: "Anger", Score: 0.6}}, wantBoth: true},
		{name: "anger alone", emotions: []mediation.EmotionScore{{Name: "Anger", Score: 0.95}, {Name: "Sadness", Score: 0.4}}},
		{name: "relief alone", emotions: []mediation.EmotionScore{{Name: "Relief", Score: 0.9}, {Name: "Joy", Score: 0.8}}},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			profile := Derive(tc.emotions, mediation.SourceText, ProviderConfidence, nil, fixedNow)
			both := profile.ConflictLevel > 50 && profile.ResolutionPotential > 50
			if both != tc.wantBoth {
				t.Fatalf("conflict=%d resolution=%d, wantBoth=%v", profile.ConflictLevel, profile.ResolutionPotential, tc.wantBoth)
			}
		})
	}
}
