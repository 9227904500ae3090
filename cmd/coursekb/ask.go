package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/Abraxas-365/coursekb/internal/app"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/spf13/cobra"
)

func (c *cli) askCmd() *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer one question from the indexed materials",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				var opts []kb.AskOption
				if topK > 0 {
					opts = append(opts, kb.WithK(topK))
				}
				answer, err := a.KB.Ask(ctx, question, opts...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, answerStyle.Render(answer.Answer))
				printSources(out, answer.Sources)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "number of chunks to retrieve (default retriever.top_k)")
	return cmd
}
