package main

import (
	"context"

	"github.com/Abraxas-365/coursekb/internal/app"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		addr string
		sync bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.cfg.Server.Addr
			}
			gin.SetMode(c.cfg.Server.Mode)

			return c.run(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if sync {
					res, err := a.SyncMaterials(ctx)
					if err != nil {
						return err
					}
					a.Log.Info("indexed %d chunks from %d pages", res.Chunks, res.Documents)
				}
				return a.Server().Run(ctx, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().BoolVar(&sync, "sync", false, "index the configured materials before serving")
	return cmd
}
