package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/Abraxas-365/coursekb/internal/app"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/spf13/cobra"
)

func (c *cli) chatCmd() *cobra.Command {
	var conversationID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat interactively, keeping the conversation as context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				return chat(ctx, cmd, a, conversationID)
			})
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "resume an existing conversation")
	return cmd
}

func chat(ctx context.Context, cmd *cobra.Command, a *app.App, conversationID string) error {
	out := cmd.OutOrStdout()

	if conversationID == "" {
		conv, err := a.History.CreateConversation(ctx, map[string]any{"client": "cli"})
		if err != nil {
			return err
		}
		conversationID = conv.ID
	} else if _, err := a.History.GetConversation(ctx, conversationID); err != nil {
		return err
	}
	fmt.Fprintln(out, titleStyle.Render("conversation "+conversationID+", type exit to quit"))

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, promptStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		history, err := a.History.Transcript(ctx, conversationID)
		if err != nil {
			return err
		}
		stream, err := a.KB.AskStream(ctx, question, kb.WithHistory(history))
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
			continue
		}

		fmt.Fprint(out, promptStyle.Render("kb> "))
		answer, _, err := llm.Drain(stream.Tokens, func(token string) {
			fmt.Fprint(out, token)
		})
		fmt.Fprintln(out)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ "+err.Error()))
			continue
		}
		printSources(out, stream.Sources)

		if err := a.History.AddExchange(ctx, conversationID, question, answer); err != nil {
			return err
		}
	}
}
