// Package nextaction maps emotion and conflict signals plus the session phase
// to discrete next-action tags. It performs no I/O.
package nextaction

import "github.com/tiger/mediation-pipeline/api/mediation"

const (
	DeEscalate            = "de-escalate"
	PauseSession          = "pause-session"
	ExploreSolutions      = "explore-solutions"
	BuildAgreement        = "build-agreement"
	EmergencyIntervention = "emergency-intervention"
	StructuredMediation   = "structured-mediation"
	EstablishGroundRules  = "establish-ground-rules"
	ClarifyGoals          = "clarify-goals"
	FacilitateSharing     = "facilitate-sharing"
	IdentifyNeeds         = "identify-needs"
	GenerateOptions       = "generate-options"
	EvaluateSolutions     = "evaluate-solutions"
	FinalizeAgreement     = "finalize-agreement"
	PlanFollowUp          = "plan-follow-up"
	SummarizeOutcomes     = "summarize-outcomes"
	ScheduleCheckIn       = "schedule-check-in"
)

// Threshold above which conflict or resolution signals drive actions.
const Threshold = 70

var bySeverity = map[mediation.Severity][]string{
	mediation.SeverityCritical: {EmergencyIntervention},
	mediation.SeverityHigh:     {StructuredMediation},
}

var byPhase = map[mediation.SessionPhase][]string{
	mediation.PhaseOpening:     {EstablishGroundRules, ClarifyGoals},
	mediation.PhaseExploration: {FacilitateSharing, IdentifyNeeds},
	mediation.PhaseNegotiation: {GenerateOptions, EvaluateSolutions},
	mediation.PhaseResolution:  {FinalizeAgreement, PlanFollowUp},
	mediation.PhaseClosing:     {SummarizeOutcomes, ScheduleCheckIn},
}

// Determine applies the emotion, severity and phase rules in that order and
// returns the de-duplicated union. A nil context contributes no phase actions.
func Determine(profile mediation.ExpressionProfile, analysis mediation.ConflictAnalysis, octx *mediation.OrchestrationContext) []string {
	actions := make([]string, 0, 5)
	seen := make(map[string]struct{}, 5)
	add := func(tags ...string) {
		for _, tag := range tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			actions = append(actions, tag)
		}
	}

	switch {
	case profile.ConflictLevel > Threshold:
		add(DeEscalate, PauseSession)
	case profile.ResolutionPotential > Threshold:
		add(ExploreSolutions, BuildAgreement)
	}
	add(bySeverity[analysis.Severity]...)
	if octx != nil {
		add(byPhase[octx.SessionPhase]...)
	}
	return actions
}
