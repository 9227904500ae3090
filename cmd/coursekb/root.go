package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/Abraxas-365/coursekb/config"
	"github.com/Abraxas-365/coursekb/internal/app"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type cli struct {
	configPath string
	envFile    string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "coursekb",
		Short: "coursekb answers questions about course materials",
		Long: `coursekb indexes course PDFs and web pages into a vector store and answers questions
using only the retrieved passages. It also manages uploaded documents and serves an HTTP API.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to config.json (default ./config.json)")
	root.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file loaded before the config")

	root.AddCommand(
		c.serveCmd(),
		c.indexCmd(),
		c.askCmd(),
		c.chatCmd(),
		c.docsCmd(),
	)
	return root
}

func (c *cli) load() error {
	if err := godotenv.Load(c.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// run builds the application for one command and closes it afterwards
func (c *cli) run(ctx context.Context, fn func(ctx context.Context, a *app.App) error) error {
	a, err := app.Build(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
