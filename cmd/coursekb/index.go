package main

import (
	"context"
	"fmt"

	"github.com/Abraxas-365/coursekb/internal/app"
	"github.com/spf13/cobra"
)

func (c *cli) indexCmd() *cobra.Command {
	var (
		dir       string
		glob      string
		urls      []string
		recursive bool
		reset     bool
	)
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index course materials into the vector store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := &c.cfg.Materials
			if cmd.Flags().Changed("dir") {
				m.Dir = dir
			}
			if cmd.Flags().Changed("glob") {
				m.Glob = glob
			}
			if cmd.Flags().Changed("url") {
				m.URLs = urls
			}
			if cmd.Flags().Changed("recursive") {
				m.Recursive = recursive
			}

			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if reset {
					if err := a.KB.InitStore(ctx, true); err != nil {
						return err
					}
				}
				res, err := a.SyncMaterials(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printResult(out, true, fmt.Sprintf("✅ indexed %d chunks from %d pages", res.Chunks, res.Documents))
				for _, src := range res.Sources {
					fmt.Fprintln(out, sourceStyle.Render("  "+src))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory of PDFs (default materials.dir)")
	cmd.Flags().StringVar(&glob, "glob", "", "file pattern inside the directory (default materials.glob)")
	cmd.Flags().StringSliceVar(&urls, "url", nil, "web page to index, repeatable")
	cmd.Flags().BoolVar(&recursive, "recursive", false, "descend into subdirectories")
	cmd.Flags().BoolVar(&reset, "reset", false, "drop the existing index first")
	return cmd
}
