package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"iter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newStreamCommand(a *app) *cobra.Command {
	var turn turnFlags
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Read text from stdin word by word and print partial results as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			octx, err := turn.context()
			if err != nil {
				return err
			}
			engine, err := a.engine(cmd.Context())
			if err != nil {
				return err
			}

			var scanErr error
			enc := json.NewEncoder(cmd.OutOrStdout())
			for partial := range engine.StreamOrchestration(cmd.Context(), words(cmd.Context(), cmd.InOrStdin(), &scanErr), octx) {
				if err := enc.Encode(partial); err != nil {
					return err
				}
			}
			if scanErr != nil {
				return scanErr
			}
			if err := cmd.Context().Err(); err != nil {
				a.logger.Info("stream cancelled", zap.String("conversation_id", octx.ConversationID))
			}
			return nil
		},
	}
	turn.register(cmd)
	return cmd
}

// words yields whitespace-separated words from r until r is exhausted or ctx
// is done. A read error ends the sequence and is stored in errp. When r is an
// io.Closer it is closed on cancellation so the blocked read returns.
func words(ctx context.Context, r io.Reader, errp *error) iter.Seq[string] {
	return func(yield func(string) bool) {
		if c, ok := r.(io.Closer); ok {
			stopClose := context.AfterFunc(ctx, func() { _ = c.Close() })
			defer stopClose()
		}

		out := make(chan string)
		scanDone := make(chan error, 1)
		stop := make(chan struct{})
		defer close(stop)

		go func() {
			scanner := bufio.NewScanner(r)
			scanner.Split(bufio.ScanWords)
			for scanner.Scan() {
				select {
				case out <- scanner.Text():
				case <-stop:
					return
				}
			}
			scanDone <- scanner.Err()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case err := <-scanDone:
				if ctx.Err() == nil {
					*errp = err
				}
				return
			case word := <-out:
				if !yield(word) {
					return
				}
			}
		}
	}
}
