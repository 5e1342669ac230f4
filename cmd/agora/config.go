package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/pkg/env"
	"github.com/spf13/cobra"
)

var saveEnv bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Long: `Prints every setting as KEY=value lines with secrets masked. With --save the
unmasked values are written to the runtime .env file.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		if err := initEnv(ctx, filepath.Join(config.GetRuntimePath(), ".env")); err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		debateCfg, err := config.ParseDebateConfig()
		if err != nil {
			return err
		}

		sections := []any{
			appCfg,
			debateCfg,
			config.NewThinkersConfig(ctx),
			config.NewServerConfig(ctx),
			config.NewRedisConfig(ctx),
		}
		if appCfg.EnableTelegram {
			sections = append(sections, config.NewTelegramConfig(ctx))
		}

		var opts []env.Option
		if !saveEnv {
			opts = append(opts, env.WithMask(env.IsSecretKey))
		}

		var b strings.Builder
		for _, s := range sections {
			out, err := env.MarshalEnv(s, opts...)
			if err != nil {
				return err
			}
			b.WriteString(out)
		}

		if !saveEnv {
			fmt.Fprint(cmd.OutOrStdout(), b.String())
			return nil
		}

		if err := os.MkdirAll(appCfg.GetRuntimePath(), 0o700); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}
		if err := os.WriteFile(appCfg.GetEnvPath(), []byte(b.String()), 0o600); err != nil {
			return fmt.Errorf("failed to write env file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", appCfg.GetEnvPath())
		return nil
	},
}

func init() {
	configCmd.Flags().BoolVar(&saveEnv, "save", false, "write the configuration to the runtime .env file")
	rootCmd.AddCommand(configCmd)
}
