package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tiger/mediation-pipeline/api/mediation"
	"github.com/tiger/mediation-pipeline/internal/analysis/nextaction"
)

func newNextActionsCommand() *cobra.Command {
	var (
		conflictLevel int
		resolution    int
		severity      string
		phase         string
	)
	cmd := &cobra.Command{
		Use:   "next-actions",
		Short: "Plan next-action tags from known scores without calling any provider",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if conflictLevel < 0 || conflictLevel > 100 || resolution < 0 || resolution > 100 {
				return fmt.Errorf("scores must be within [0,100]")
			}
			sev := mediation.Severity(severity)
			if err := sev.Validate(); err != nil {
				return err
			}
			var octx *mediation.OrchestrationContext
			if phase != "" {
				octx = &mediation.OrchestrationContext{SessionPhase: mediation.SessionPhase(phase)}
				if err := octx.SessionPhase.Validate(); err != nil {
					return err
				}
			}
			actions := nextaction.Determine(
				mediation.ExpressionProfile{ConflictLevel: conflictLevel, ResolutionPotential: resolution},
				mediation.ConflictAnalysis{Severity: sev},
				octx,
			)
			for _, action := range actions {
				fmt.Fprintln(cmd.OutOrStdout(), action)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&conflictLevel, "conflict-level", 0, "conflict level 0-100")
	cmd.Flags().IntVar(&resolution, "resolution-potential", 0, "resolution potential 0-100")
	cmd.Flags().StringVar(&severity, "severity", string(mediation.SeverityMedium), "conflict severity")
	cmd.Flags().StringVar(&phase, "phase", "", "session phase (omit to skip phase actions)")
	return cmd
}
