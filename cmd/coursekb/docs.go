package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/coursekb/batch"
	"github.com/Abraxas-365/coursekb/internal/app"
	"github.com/Abraxas-365/coursekb/ingest"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

func (c *cli) docsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Manage uploaded documents",
	}
	cmd.AddCommand(c.docsListCmd(), c.docsUploadCmd(), c.docsDeleteCmd())
	return cmd
}

func (c *cli) docsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				docs := a.Docs.List(ctx)
				if len(docs) == 0 {
					fmt.Fprintln(out, sourceStyle.Render("no documents uploaded"))
					return nil
				}

				id := lipgloss.NewStyle().Width(48)
				name := lipgloss.NewStyle().Width(32)
				size := lipgloss.NewStyle().Width(10)
				fmt.Fprintln(out, titleStyle.Render(lipgloss.JoinHorizontal(lipgloss.Top,
					id.Render("FILE ID"), name.Render("NAME"), size.Render("SIZE"), "UPLOADED")))
				for _, d := range docs {
					fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top,
						id.Render(d.FileID), name.Render(d.OriginalFilename), size.Render(d.SizeFormatted), d.UploadTime))
				}
				return nil
			})
		},
	}
}

func (c *cli) docsUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload FILE...",
		Short: "Upload and index PDF files as one batch",
		Long: `Upload and index PDF files as one batch. Running the same set of files again
retries only the files that failed or were not reached.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uploads := make([]ingest.Upload, 0, len(args))
			for _, path := range args {
				u, err := ingest.FromPath(path)
				if err != nil {
					return err
				}
				uploads = append(uploads, u)
			}

			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				out := cmd.OutOrStdout()
				proc := ingest.NewProcessor(a.Docs, a.KB, a.Batches,
					ingest.WithLogger(a.Log),
					ingest.WithProgress(func(s *batch.State) {
						fmt.Fprintf(out, "\r%3.0f%% %s", s.Progress()*100, s.Summary())
					}))

				state, err := proc.ProcessBatch(ctx, uploads)
				fmt.Fprintln(out)
				if err != nil {
					return err
				}

				for _, key := range state.FailedFiles() {
					f := state.Files[key]
					printResult(out, false, fmt.Sprintf("%s: %s", f.Filename, f.Error))
				}
				printResult(out, state.FailedCount == 0, state.Summary())
				return nil
			})
		},
	}
}

func (c *cli) docsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete FILE_ID...",
		Short: "Delete documents and their indexed chunks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				failed := 0
				for _, id := range args {
					res := a.Ingest.Delete(ctx, id)
					printResult(cmd.OutOrStdout(), res.OK, res.Message)
					if !res.OK {
						failed++
					}
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d deletions failed", failed, len(args))
				}
				return nil
			})
		},
	}
}
