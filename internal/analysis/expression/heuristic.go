package expression

import (
	"strings"
	"time"
	"unicode"

	"github.com/tiger/mediation-pipeline/api/mediation"
)

const (
	keywordWeight  = 0.3
	keywordCeiling = 0.9
	neutralDefault = 0.5
)

type keywordList struct {
	emotion  string
	keywords []string
}

// keywordLists is the fallback vocabulary, one list per emotion.
var keywordLists = []keywordList{
	{emotion: "anger", keywords: []string{"angry", "furious", "mad", "hate", "rage", "outraged", "livid", "pissed"}},
	{emotion: "frustration", keywords: []string{"frustrated", "frustrating", "annoyed", "irritated", "fed up", "sick of", "tired of", "ugh"}},
	{emotion: "sadness", keywords: []string{"sad", "hurt", "upset", "disappointed", "depressed", "lonely", "crying", "heartbroken"}},
	{emotion: "joy", keywords: []string{"happy", "glad", "great", "thankful", "grateful", "excited", "love", "wonderful", "relieved"}},
	{emotion: "fear", keywords: []string{"afraid", "scared", "worried", "anxious", "nervous", "fear", "terrified"}},
	{emotion: "neutral", keywords: []string{"okay", "ok", "fine", "alright", "understand", "maybe"}},
}

// HeuristicEmotions scores text against fixed keyword lists. Each matched
// keyword occurrence adds 0.3, capped at 0.9. Without any match it returns a
// single neutral entry at 0.5.
func HeuristicEmotions(text string) []mediation.EmotionScore {
	tokens := words(text)

	emotions := make([]mediation.EmotionScore, 0, len(keywordLists))
	for _, list := range keywordLists {
		matches := 0
		for _, kw := range list.keywords {
			matches += countPhrase(tokens, strings.Fields(kw))
		}
		if matches == 0 {
			continue
		}
		score := float64(matches) * keywordWeight
		if score > keywordCeiling {
			score = keywordCeiling
		}
		emotions = append(emotions, mediation.EmotionScore{Name: list.emotion, Score: score})
	}
	if len(emotions) == 0 {
		return []mediation.EmotionScore{{Name: "neutral", Score: neutralDefault}}
	}
	sortEmotions(emotions)
	return emotions
}

// Fallback runs the keyword heuristic through the same derivation as
// provider output, differing only in confidence.
func Fallback(text string, source mediation.Source, octx *mediation.OrchestrationContext, now time.Time) mediation.ExpressionProfile {
	return Derive(HeuristicEmotions(text), source, FallbackConfidence, octx, now)
}

// words lower-cases text and splits it on anything but letters, digits and
// apostrophes, so phrase keywords match across punctuation.
func words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func countPhrase(tokens []string, phrase []string) int {
	count := 0
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		matched := true
		for j, w := range phrase {
			if tokens[i+j] != w {
				matched = false
				break
			}
		}
		if matched {
			count++
		}
	}
	return count
}
