package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yeisme/carevault/pkg/app"
	"github.com/yeisme/carevault/pkg/configs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "start the HTTP API, event consumers and scheduled jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}

		err = a.Run(ctx)
		if errors.Is(err, context.Canceled) {
			err = nil
		}

		return errors.Join(err, a.Close())
	},
}

func registerServeCommands() {
	rootCmd.AddCommand(serveCmd)
}
