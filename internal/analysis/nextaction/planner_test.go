package nextaction

import (
	"reflect"
	"testing"

	"github.com/tiger/mediation-pipeline/api/mediation"
)

func TestDetermine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		conflict   int
		resolution int
		severity   mediation.Severity
		phase      mediation.SessionPhase
		nilContext bool
		want       []string
	}{
		{
			name: "critical opening", conflict: 80, severity: mediation.SeverityCritical, phase: mediation.PhaseOpening,
			want: []string{DeEscalate, PauseSession, EmergencyIntervention, EstablishGroundRules, ClarifyGoals},
		},
		{
			name: "conflict wins over resolution", conflict: 90, resolution: 90, severity: mediation.SeverityLow, phase: mediation.PhaseClosing,
			want: []string{DeEscalate, PauseSession, SummarizeOutcomes, ScheduleCheckIn},
		},
		{
			name: "resolution", conflict: 10, resolution: 75, severity: mediation.SeverityMedium, phase: mediation.PhaseResolution,
			want: []string{ExploreSolutions, BuildAgreement, FinalizeAgreement, PlanFollowUp},
		},
		{
			name: "threshold is exclusive", conflict: 70, resolution: 70, severity: mediation.SeverityHigh, phase: mediation.PhaseNegotiation,
			want: []string{StructuredMediation, GenerateOptions, EvaluateSolutions},
		},
		{
			name: "exploration", severity: mediation.SeverityLow, phase: mediation.PhaseExploration,
			want: []string{FacilitateSharing, IdentifyNeeds},
		},
		{
			name: "no context", conflict: 85, severity: mediation.SeverityHigh, nilContext: true,
			want: []string{DeEscalate, PauseSession, StructuredMediation},
		},
		{
			name: "nothing applies", severity: mediation.SeverityLow,
			want: []string{},
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			profile := mediation.ExpressionProfile{ConflictLevel: tc.conflict, ResolutionPotential: tc.resolution}
			analysis := mediation.ConflictAnalysis{Severity: tc.severity}
			var octx *mediation.OrchestrationContext
			if !tc.nilContext {
				octx = &mediation.OrchestrationContext{SessionPhase: tc.phase}
			}
			got := Determine(profile, analysis, octx)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestDetermineIsDeterministicAndUnique(t *testing.T) {
	t.Parallel()

	profile := mediation.ExpressionProfile{ConflictLevel: 80}
	analysis := mediation.ConflictAnalysis{Severity: mediation.SeverityCritical}
	octx := &mediation.OrchestrationContext{SessionPhase: mediation.PhaseOpening}

	first := Determine(profile, analysis, octx)
	for i := 0; i < 10; i++ {
		if got := Determine(profile, analysis, octx); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differed: %v vs %v", i, got, first)
		}
	}
	seen := map[string]bool{}
	for _, action := range first {
		if seen[action] {
			t.Fatalf("duplicate action %q in %v", action, first)
		}
		seen[action] = true
	}
}
