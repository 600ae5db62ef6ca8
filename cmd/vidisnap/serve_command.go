package main

import (
	"github.com/spf13/cobra"

	"vidisnap/internal/daemonrun"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the classification daemon in the foreground",
		Long: "Starts the HTTP API, loads the model from the configured inference server, " +
			"and serves POST /process until interrupted. /health reports model_loaded=false " +
			"until the model is ready.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel: ctx.logLevel(),
				Version:  buildVersion(),
			})
		},
	}
}
