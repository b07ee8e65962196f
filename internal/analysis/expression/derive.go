package expression

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/contracts"
)

const (
	// ProviderConfidence tags profiles measured by the expression provider.
	ProviderConfidence = 0.9
	// FallbackConfidence tags profiles produced by the keyword heuristic.
	FallbackConfidence = 0.5

	mixedThreshold = 0.1
)

var positiveEmotions = setOf(
	"admiration", "adoration", "aesthetic appreciation", "amusement", "calmness",
	"contentment", "ecstasy", "empathy", "entrancement", "excitement", "gratitude",
	"hope", "interest", "joy", "love", "pride", "relief", "romance", "satisfaction",
	"triumph", "understanding",
)

var negativeEmotions = setOf(
	"anger", "annoyance", "anxiety", "awkwardness", "boredom", "contempt",
	"disappointment", "disgust", "distress", "doubt", "embarrassment", "empathic pain",
	"envy", "fear", "frustration", "guilt", "horror", "irritation", "pain", "sadness",
	"shame", "tiredness",
)

var conflictIndicators = setOf("anger", "frustration", "contempt", "disgust", "annoyance", "irritation")

var resolutionIndicators = setOf("relief", "satisfaction", "hope", "gratitude", "understanding", "empathy")

// adviceByEmotion is keyed by lower-cased dominant emotion.
var adviceByEmotion = map[string]string{
	"anger":          "Acknowledge the anger and take a short pause before continuing",
	"annoyance":      "Name what is bothering you and ask for one concrete change",
	"frustration":    "Name the specific frustration and what would help resolve it",
	"contempt":       "Focus on behaviors rather than judging the other person's character",
	"disgust":        "Focus on behaviors rather than judging the other person's character",
	"sadness":        "Recognize the hurt and give space to share what it means",
	"fear":           "Reassure everyone that this is a safe space to express concerns",
	"anxiety":        "Reassure everyone that this is a safe space to express concerns",
	"joy":            "Build on this positive moment to explore shared goals",
	"calmness":       "Use this calm moment to listen fully before responding",
	"neutral":        "Invite each participant to share their perspective",
	"distress":       "Slow down and check in on how everyone is feeling",
	"disappointment": "Talk about the expectation that was missed and what matters about it",
}

var adviceByPhase = map[mediation.SessionPhase]string{
	mediation.PhaseOpening:     "Agree on ground rules for a respectful conversation",
	mediation.PhaseExploration: "Ask open questions to uncover underlying needs",
	mediation.PhaseNegotiation: "Generate several options before evaluating any of them",
	mediation.PhaseResolution:  "Summarize the points of agreement in concrete terms",
	mediation.PhaseClosing:     "Plan a follow-up check-in to review progress",
}

const (
	highConflictAdvice = "De-escalate: suggest a brief pause to let emotions settle"
	lowConflictAdvice  = "The mood is calm enough to start exploring possible solutions"
)

func setOf(names ...string) map[string]bool {
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out
}

// Flatten averages every frame's score per lower-cased emotion name across all
// groups and returns the result sorted by descending score. Ties sort by name.
func Flatten(groups []contracts.PredictionGroup) []mediation.EmotionScore {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, group := range groups {
		for _, frame := range group.Predictions {
			for _, e := range frame.Emotions {
				name := strings.ToLower(strings.TrimSpace(e.Name))
				if name == "" {
					continue
				}
				sums[name] += clamp01(e.Score)
				counts[name]++
			}
		}
	}
	emotions := make([]mediation.EmotionScore, 0, len(sums))
	for name, sum := range sums {
		emotions = append(emotions, mediation.EmotionScore{Name: name, Score: sum / float64(counts[name])})
	}
	sortEmotions(emotions)
	return emotions
}

func sortEmotions(emotions []mediation.EmotionScore) {
	sort.SliceStable(emotions, func(i, j int) bool {
		if emotions[i].Score != emotions[j].Score {
			return emotions[i].Score > emotions[j].Score
		}
		return emotions[i].Name < emotions[j].Name
	})
}

// Derive builds a complete profile from a ranked emotion vector. Emotions must
// be non-empty.
func Derive(emotions []mediation.EmotionScore, source mediation.Source, confidence float64, octx *mediation.OrchestrationContext, now time.Time) mediation.ExpressionProfile {
	ranked := make([]mediation.EmotionScore, len(emotions))
	copy(ranked, emotions)
	sortEmotions(ranked)

	conflict := ConflictLevel(ranked)
	profile := mediation.ExpressionProfile{
		Emotions:            ranked,
		DominantEmotion:     ranked[0].Name,
		EmotionalState:      EmotionalState(ranked),
		ConflictLevel:       conflict,
		ResolutionPotential: ResolutionPotential(ranked, conflict),
		Timestamp:           now,
		Source:              source,
		Confidence:          confidence,
	}
	var phase mediation.SessionPhase
	if octx != nil {
		phase = octx.SessionPhase
	}
	profile.Recommendations = Recommendations(profile.DominantEmotion, conflict, phase)
	return profile
}

// EmotionalState compares positive and negative score mass.
func EmotionalState(emotions []mediation.EmotionScore) mediation.EmotionalState {
	var positive, negative float64
	for _, e := range emotions {
		name := strings.ToLower(e.Name)
		switch {
		case positiveEmotions[name]:
			positive += e.Score
		case negativeEmotions[name]:
			negative += e.Score
		}
	}
	if positive == 0 && negative == 0 {
		return mediation.StateNeutral
	}
	if math.Abs(positive-negative) < mixedThreshold {
		if positive > 0 && negative > 0 {
			return mediation.StateMixed
		}
		return mediation.StateNeutral
	}
	if positive > negative {
		return mediation.StatePositive
	}
	return mediation.StateNegative
}

// ConflictLevel is the scaled sum of conflict-indicator scores, capped at 100.
func ConflictLevel(emotions []mediation.EmotionScore) int {
	return capPercent(indicatorSum(emotions, conflictIndicators) * 100)
}

// ResolutionPotential is the scaled sum of resolution-indicator scores plus
// 30% of the conflict headroom, capped at 100.
func ResolutionPotential(emotions []mediation.EmotionScore, conflictLevel int) int {
	return capPercent(indicatorSum(emotions, resolutionIndicators)*100 + 0.3*float64(100-conflictLevel))
}

// Recommendations lists dominant-emotion advice, then conflict-band advice,
// then session-phase advice, truncated to three.
func Recommendations(dominant string, conflictLevel int, phase mediation.SessionPhase) []string {
	out := make([]string, 0, mediation.MaxProfileRecommendations)
	add := func(advice string) {
		if advice == "" || len(out) >= mediation.MaxProfileRecommendations {
			return
		}
		for _, existing := range out {
			if existing == advice {
				return
			}
		}
		out = append(out, advice)
	}
	add(adviceByEmotion[strings.ToLower(dominant)])
	switch {
	case conflictLevel > 70:
		add(highConflictAdvice)
	case conflictLevel < 30:
		add(lowConflictAdvice)
	}
	add(adviceByPhase[phase])
	return out
}

func indicatorSum(emotions []mediation.EmotionScore, set map[string]bool) float64 {
	var sum float64
	for _, e := range emotions {
		if set[strings.ToLower(e.Name)] {
			sum += e.Score
		}
	}
	return sum
}

func capPercent(v float64) int {
	rounded := int(math.Round(v))
	if rounded > 100 {
		return 100
	}
	if rounded < 0 {
		return 0
	}
	return rounded
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
