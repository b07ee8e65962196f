package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tiger/mediation-pipeline/internal/config"
	"github.com/tiger/mediation-pipeline/internal/journal"
	"github.com/tiger/mediation-pipeline/internal/mcpserver"
	"github.com/tiger/mediation-pipeline/internal/observability/logging"
	"github.com/tiger/mediation-pipeline/internal/orchestration"
	"github.com/tiger/mediation-pipeline/internal/runtime/provider/bootstrap"
	"go.uber.org/zap"
)

// app carries state resolved once by the root command.
type app struct {
	configPath string
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "mediate",
		Short:         "Emotion-aware conflict mediation pipeline",
		Version:       mcpserver.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file (default config/<CONFIG_ENV>/config.yaml)")

	root.AddCommand(
		newOrchestrateCommand(a),
		newStreamCommand(a),
		newNextActionsCommand(),
		newServeCommand(a),
		newHistoryCommand(a),
		newConfigCommand(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:   cfg.Pipeline.LogLevel,
		Format:  cfg.Pipeline.LogFormat,
		Service: cfg.Pipeline.Name,
	})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

func (a *app) engine(ctx context.Context) (*orchestration.Engine, error) {
	providers, err := bootstrap.Build(ctx, a.cfg, nil, a.logger)
	if err != nil {
		return nil, err
	}
	return bootstrap.NewEngine(a.cfg, providers, a.logger), nil
}

func (a *app) openJournal() (*journal.Journal, error) {
	if a.cfg.Journal.Path == "" {
		return nil, fmt.Errorf("journal disabled: set journal.path or MEDIATE_JOURNAL_PATH")
	}
	return journal.Open(a.cfg.Journal.Path)
}
