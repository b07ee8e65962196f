package mediation

import (
	"fmt"
	"time"
)

// Source identifies the modality an expression profile was derived from.
type Source string

const (
	SourceText  Source = "text"
	SourceAudio Source = "audio"
	SourceVideo Source = "video"
)

// Validate enforces supported source values.
func (s Source) Validate() error {
	switch s {
	case SourceText, SourceAudio, SourceVideo:
		return nil
	default:
		return fmt.Errorf("unsupported source: %q", s)
	}
}

// EmotionalState is the coarse valence derived from an emotion vector.
type EmotionalState string

const (
	StatePositive EmotionalState = "positive"
	StateNegative EmotionalState = "negative"
	StateNeutral  EmotionalState = "neutral"
	StateMixed    EmotionalState = "mixed"
)

// Validate enforces supported emotional state values.
func (s EmotionalState) Validate() error {
	switch s {
	case StatePositive, StateNegative, StateNeutral, StateMixed:
		return nil
	default:
		return fmt.Errorf("unsupported emotional_state: %q", s)
	}
}

// ConflictType classifies the relationship the conflict happens in.
type ConflictType string

const (
	ConflictInterpersonal ConflictType = "interpersonal"
	ConflictFamily        ConflictType = "family"
	ConflictWorkplace     ConflictType = "workplace"
	ConflictNeighbor      ConflictType = "neighbor"
	ConflictOther         ConflictType = "other"
)

// Validate enforces supported conflict type values.
func (c ConflictType) Validate() error {
	switch c {
	case ConflictInterpersonal, ConflictFamily, ConflictWorkplace, ConflictNeighbor, ConflictOther:
		return nil
	default:
		return fmt.Errorf("unsupported conflict_type: %q", c)
	}
}

// Severity grades how escalated a conflict is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Validate enforces supported severity values.
func (s Severity) Validate() error {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return nil
	default:
		return fmt.Errorf("unsupported severity: %q", s)
	}
}

// SessionPhase is the stage of a mediation conversation.
type SessionPhase string

const (
	PhaseOpening     SessionPhase = "opening"
	PhaseExploration SessionPhase = "exploration"
	PhaseNegotiation SessionPhase = "negotiation"
	PhaseResolution  SessionPhase = "resolution"
	PhaseClosing     SessionPhase = "closing"
)

// Validate enforces supported session phase values.
func (p SessionPhase) Validate() error {
	switch p {
	case PhaseOpening, PhaseExploration, PhaseNegotiation, PhaseResolution, PhaseClosing:
		return nil
	default:
		return fmt.Errorf("unsupported session_phase: %q", p)
	}
}

// EmotionScore is one named emotion with a score in [0,1].
type EmotionScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ExpressionProfile is the normalized emotion analysis of one utterance or document.
// ConflictLevel and ResolutionPotential are derived from Emotions and must be
// recomputed whenever Emotions changes.
type ExpressionProfile struct {
	Emotions            []EmotionScore `json:"emotions"`
	DominantEmotion     string         `json:"dominantEmotion"`
	EmotionalState      EmotionalState `json:"emotionalState"`
	ConflictLevel       int            `json:"conflictLevel"`
	ResolutionPotential int            `json:"resolutionPotential"`
	Recommendations     []string       `json:"recommendations"`
	Timestamp           time.Time      `json:"timestamp"`
	Source              Source         `json:"source"`
	Confidence          float64        `json:"confidence"`
}

// Validate enforces profile invariants.
func (p ExpressionProfile) Validate() error {
	if len(p.Emotions) == 0 {
		return fmt.Errorf("emotions must be non-empty")
	}
	for i := 1; i < len(p.Emotions); i++ {
		if p.Emotions[i].Score > p.Emotions[i-1].Score {
			return fmt.Errorf("emotions must be sorted by descending score")
		}
	}
	if p.DominantEmotion != p.Emotions[0].Name {
		return fmt.Errorf("dominant_emotion must match the top-ranked emotion")
	}
	if err := p.EmotionalState.Validate(); err != nil {
		return err
	}
	if p.ConflictLevel < 0 || p.ConflictLevel > 100 {
		return fmt.Errorf("conflict_level must be within [0,100]")
	}
	if p.ResolutionPotential < 0 || p.ResolutionPotential > 100 {
		return fmt.Errorf("resolution_potential must be within [0,100]")
	}
	if len(p.Recommendations) > MaxProfileRecommendations {
		return fmt.Errorf("recommendations must have at most %d entries", MaxProfileRecommendations)
	}
	return p.Source.Validate()
}

// MaxProfileRecommendations bounds ExpressionProfile.Recommendations.
const MaxProfileRecommendations = 3

// DocumentAnalysis is the structured extraction of one input document.
type DocumentAnalysis struct {
	DocumentType      string   `json:"documentType"`
	KeyPoints         []string `json:"keyPoints"`
	Sentiment         string   `json:"sentiment"`
	ActionItems       []string `json:"actionItems"`
	RelevantQuotes    []string `json:"relevantQuotes"`
	Summary           string   `json:"summary"`
	ConflictRelevance int      `json:"conflictRelevance"`
}

// DefaultDocumentAnalysis is returned when a document could not be analyzed.
func DefaultDocumentAnalysis() DocumentAnalysis {
	return DocumentAnalysis{
		DocumentType:      "unknown",
		KeyPoints:         []string{},
		Sentiment:         "neutral",
		ActionItems:       []string{},
		RelevantQuotes:    []string{},
		Summary:           "Document analysis unavailable",
		ConflictRelevance: 0,
	}
}

// CommunicationPatterns groups observed communication behavior.
type CommunicationPatterns struct {
	Positive    []string `json:"positive"`
	Negative    []string `json:"negative"`
	Suggestions []string `json:"suggestions"`
}

// ConflictAnalysis is the classification of a conflict for one turn.
type ConflictAnalysis struct {
	ConflictType             ConflictType          `json:"conflictType"`
	Severity                 Severity              `json:"severity"`
	Triggers                 []string              `json:"triggers"`
	UnderlyingNeeds          []string              `json:"underlyingNeeds"`
	CommunicationPatterns    CommunicationPatterns `json:"communicationPatterns"`
	ResolutionOpportunities  []string              `json:"resolutionOpportunities"`
	RecommendedInterventions []string              `json:"recommendedInterventions"`
	NextSteps                []string              `json:"nextSteps"`
}

// DefaultConflictAnalysis is returned when conflict analysis fails. Severity
// stays at medium so a failure neither escalates nor resolves the session.
func DefaultConflictAnalysis(conflictType ConflictType) ConflictAnalysis {
	if conflictType.Validate() != nil {
		conflictType = ConflictOther
	}
	return ConflictAnalysis{
		ConflictType:    conflictType,
		Severity:        SeverityMedium,
		Triggers:        []string{},
		UnderlyingNeeds: []string{},
		CommunicationPatterns: CommunicationPatterns{
			Positive:    []string{},
			Negative:    []string{},
			Suggestions: []string{},
		},
		ResolutionOpportunities:  []string{},
		RecommendedInterventions: []string{},
		NextSteps:                []string{"Gather more information"},
	}
}

// DefaultRecommendations is returned when recommendation generation fails.
func DefaultRecommendations() []string {
	return []string{
		"Take a few deep breaths before responding",
		"Try to see the situation from the other person's perspective",
		"Express your needs clearly using \"I\" statements",
	}
}

// Document is one uploaded file supplied for analysis.
type Document struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// OrchestrationContext is owned by the session controller. The pipeline only
// reads it; EmotionHistory retention is the caller's responsibility.
type OrchestrationContext struct {
	ConversationID string              `json:"conversationId"`
	ParticipantIDs []string            `json:"participantIds"`
	ConflictType   ConflictType        `json:"conflictType,omitempty"`
	SessionPhase   SessionPhase        `json:"sessionPhase"`
	EmotionHistory []ExpressionProfile `json:"emotionHistory"`
	// Documents holds analyses produced during earlier turns.
	Documents []DocumentAnalysis `json:"documents,omitempty"`
}

// Validate enforces context invariants.
func (c OrchestrationContext) Validate() error {
	if c.ConflictType != "" {
		if err := c.ConflictType.Validate(); err != nil {
			return err
		}
	}
	return c.SessionPhase.Validate()
}

// RecentHistory returns at most the last n emotion history entries.
func (c OrchestrationContext) RecentHistory(n int) []ExpressionProfile {
	if n <= 0 || len(c.EmotionHistory) == 0 {
		return nil
	}
	if len(c.EmotionHistory) <= n {
		return c.EmotionHistory
	}
	return c.EmotionHistory[len(c.EmotionHistory)-n:]
}

// OrchestrationInput is the user turn handed to Orchestrate.
type OrchestrationInput struct {
	Text          string     `json:"text,omitempty"`
	Audio         []byte     `json:"audio,omitempty"`
	AudioMimeType string     `json:"audioMimeType,omitempty"`
	Documents     []Document `json:"documents,omitempty"`
}

// VoiceResponse is synthesized speech for the top recommendation.
type VoiceResponse struct {
	Audio    []byte `json:"audio"`
	MimeType string `json:"mimeType"`
}

// OrchestrationResult is built fresh for every Orchestrate call.
type OrchestrationResult struct {
	EmotionAnalysis  ExpressionProfile  `json:"emotionAnalysis"`
	ConflictAnalysis ConflictAnalysis   `json:"conflictAnalysis"`
	DocumentAnalyses []DocumentAnalysis `json:"documentAnalyses"`
	Recommendations  []string           `json:"recommendations"`
	NextActions      []string           `json:"nextActions"`
	VoiceResponse    *VoiceResponse     `json:"voiceResponse,omitempty"`
}

// PartialResult is one incremental streaming update.
type PartialResult struct {
	EmotionAnalysis        *ExpressionProfile `json:"emotionAnalysis,omitempty"`
	PartialRecommendations []string           `json:"partialRecommendations,omitempty"`
}
