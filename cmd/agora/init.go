package main

import (
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/service/installer"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:           "init",
	Short:         "Configure thinkers and write the runtime .env",
	SilenceUsage:  true,
	SilenceErrors: false,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		runtimePath := config.GetRuntimePath()

		state, err := installer.RunWizard(runtimePath)
		if err != nil {
			return err
		}

		envPath := filepath.Join(runtimePath, ".env")
		if err := godotenv.Load(envPath); err != nil {
			logger.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
		}

		logger.Info().Strs("thinkers", state.Thinkers).Msgf("initialized runtime directory at: %s", runtimePath)
		logger.Info().Msg("Setup complete! You can now run 'agora serve'.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
