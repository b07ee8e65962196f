// mediate runs the mediation pipeline from the command line.
//
// Usage:
//
//	mediate orchestrate --text "..." --phase opening
//	mediate stream < transcript.txt
//	mediate next-actions --conflict-level 80 --resolution-potential 20
//	mediate serve                # MCP server (stdio transport)
//	mediate history --conversation <id>
//	mediate config               # effective configuration, secrets redacted
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
