package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/transport/tui"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the debate in the terminal",
	Long: `Opens a live view of the stored debate. With ENABLE_REDIS set, rounds
committed by "agora serve" refresh the view immediately.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		runtimePath := config.GetRuntimePath()
		if err := os.MkdirAll(runtimePath, 0o755); err != nil {
			return fmt.Errorf("failed to create runtime directory: %w", err)
		}

		// the view owns the terminal
		logFile, err := os.OpenFile(filepath.Join(runtimePath, "watch.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()

		var flushLog func()
		ctx, flushLog = log.NewContextWithWriter(ctx, logFile, debug || config.IsDebug())
		defer flushLog()
		ctx = log.WithComponent(ctx, "watch")

		if err := initEnv(ctx, filepath.Join(runtimePath, ".env")); err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		debateCfg := config.NewDebateConfig(ctx)

		st, err := initStorage(ctx, appCfg)
		if err != nil {
			return err
		}
		defer st.db.Close()

		// A local bus never sees rounds from another process.
		var bus core.EventBus
		if appCfg.EnableRedis {
			if bus, err = initBus(ctx, appCfg); err != nil {
				return err
			}
			defer bus.Close()
		}

		return tui.Run(ctx, replayService(st, debateCfg), bus)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
