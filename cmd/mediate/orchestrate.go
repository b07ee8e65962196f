package main

import (
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/tiger/mediation-pipeline/api/mediation"
	"go.uber.org/zap"
)

type turnFlags struct {
	conversationID string
	participants   []string
	phase          string
	conflictType   string
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.conversationID, "conversation", "", "conversation id (generated when empty)")
	cmd.Flags().StringSliceVar(&f.participants, "participant", nil, "participant id, repeatable")
	cmd.Flags().StringVar(&f.phase, "phase", string(mediation.PhaseExploration), "session phase")
	cmd.Flags().StringVar(&f.conflictType, "conflict-type", "", "known conflict type")
}

func (f *turnFlags) context() (*mediation.OrchestrationContext, error) {
	octx := &mediation.OrchestrationContext{
		ConversationID: f.conversationID,
		ParticipantIDs: f.participants,
		ConflictType:   mediation.ConflictType(f.conflictType),
		SessionPhase:   mediation.SessionPhase(f.phase),
	}
	if octx.ConversationID == "" {
		octx.ConversationID = uuid.NewString()
	}
	if octx.ParticipantIDs == nil {
		octx.ParticipantIDs = []string{}
	}
	if err := octx.Validate(); err != nil {
		return nil, err
	}
	return octx, nil
}

func newOrchestrateCommand(a *app) *cobra.Command {
	var (
		turn      turnFlags
		text      string
		audioPath string
		audioMime string
		docPaths  []string
		voiceOut  string
		record    bool
	)
	cmd := &cobra.Command{
		Use:   "orchestrate",
		Short: "Analyze one mediation turn and print the result as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			octx, err := turn.context()
			if err != nil {
				return err
			}
			input := mediation.OrchestrationInput{Text: text}
			if audioPath != "" {
				if input.Audio, err = os.ReadFile(audioPath); err != nil {
					return fmt.Errorf("read audio: %w", err)
				}
				input.AudioMimeType = audioMime
				if input.AudioMimeType == "" {
					input.AudioMimeType = mimeFor(audioPath)
				}
			}
			for _, path := range docPaths {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("read document: %w", err)
				}
				input.Documents = append(input.Documents, mediation.Document{
					Name:     filepath.Base(path),
					MimeType: mimeFor(path),
					Data:     data,
				})
			}

			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			result := engine.Orchestrate(cmd.Context(), input, octx)

			if record {
				j, err := a.openJournal()
				if err != nil {
					return err
				}
				defer j.Close()
				entry, err := j.Record(cmd.Context(), octx.ConversationID, result)
				if err != nil {
					return err
				}
				a.logger.Debug("run recorded", zap.String("entry_id", entry.ID), zap.String("conversation_id", octx.ConversationID))
			}

			if voiceOut != "" && result.VoiceResponse != nil {
				if err := os.WriteFile(voiceOut, result.VoiceResponse.Audio, 0o600); err != nil {
					return fmt.Errorf("write voice: %w", err)
				}
				result.VoiceResponse = &mediation.VoiceResponse{MimeType: result.VoiceResponse.MimeType}
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				ConversationID string `json:"conversationId"`
				mediation.OrchestrationResult
			}{octx.ConversationID, result})
		},
	}
	turn.register(cmd)
	cmd.Flags().StringVar(&text, "text", "", "participant text")
	cmd.Flags().StringVar(&audioPath, "audio", "", "path to a recorded utterance; takes precedence over --text")
	cmd.Flags().StringVar(&audioMime, "audio-mime", "", "audio MIME type (guessed from the extension when empty)")
	cmd.Flags().StringSliceVar(&docPaths, "doc", nil, "document to analyze, repeatable")
	cmd.Flags().StringVar(&voiceOut, "voice-out", "", "write synthesized voice audio to this file")
	cmd.Flags().BoolVar(&record, "journal", false, "record a summary of the run in the journal")
	return cmd
}

func mimeFor(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
