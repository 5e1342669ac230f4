package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/transport/mcp"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the stored debate as MCP tools over stdio",
	Long: `Exposes list_points, point_history and agora as MCP tools. The debate is
read from the round log, so this can run next to "agora serve".`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		// stdout carries the protocol
		var flushLog func()
		ctx, flushLog = log.NewContextWithWriter(ctx, os.Stderr, debug || config.IsDebug())
		defer flushLog()
		ctx = log.WithComponent(ctx, "mcp")

		if err := initEnv(ctx, filepath.Join(config.GetRuntimePath(), ".env")); err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		debateCfg := config.NewDebateConfig(ctx)

		st, err := initStorage(ctx, appCfg)
		if err != nil {
			return err
		}
		defer st.db.Close()

		return mcp.NewServer(replayService(st, debateCfg)).Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
