package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/tiger/mediation-pipeline/internal/mcpserver"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}
			// Logs go to stderr; stdout belongs to the MCP transport.
			return server.ServeStdio(mcpserver.New(engine, a.logger.Named("mcp")))
		},
	}
}
