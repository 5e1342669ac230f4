package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/orchestrator"
	"github.com/sandevgo/agora/internal/transport/api"
	"github.com/sandevgo/agora/internal/transport/telegram"
	"github.com/sandevgo/agora/pkg/log"
	"github.com/sandevgo/agora/pkg/srv"
	"github.com/spf13/cobra"
)

var (
	thesis   string
	noDebate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the debate and serve it",
	Long: `Resumes the debate from the round log (or seeds it with the thesis), runs
rounds until it finishes and serves the discussion over HTTP, WebSocket and
Telegram.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting agora")

		if err := initEnv(ctx, filepath.Join(config.GetRuntimePath(), ".env")); err != nil {
			return err
		}

		appCfg := config.NewAppConfig(ctx)
		debateCfg := config.NewDebateConfig(ctx)
		if thesis != "" {
			appCfg.Thesis = thesis
		}

		st, err := initStorage(ctx, appCfg)
		if err != nil {
			return err
		}

		bus, err := initBus(ctx, appCfg)
		if err != nil {
			st.db.Close()
			return err
		}

		var (
			services []srv.Service
			svc      *agora.Service
		)

		if noDebate {
			svc = replayService(st, debateCfg)
		} else {
			orch, err := initOrchestrator(log.WithComponent(ctx, "orchestrator"), appCfg, debateCfg, st, bus)
			if err != nil {
				bus.Close()
				st.db.Close()
				return err
			}
			svc = agora.NewService(agora.Live(orch), debateCfg.MaxRounds)
			services = append(services, orchestrator.NewRunner(orch, appCfg.Thesis))
		}

		if appCfg.EnableHTTP {
			services = append(services, api.NewServer(ctx, config.NewServerConfig(ctx), svc, bus))
		}

		if appCfg.EnableTelegram {
			bot, err := telegram.NewBot(ctx, config.NewTelegramConfig(ctx), svc, bus)
			if err != nil {
				bus.Close()
				st.db.Close()
				return err
			}
			services = append(services, bot)
		}

		// Readers and the runner go first, storage last.
		services = append(services, srv.NewCleanup(bus.Close), srv.NewCleanup(st.db.Close))

		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services, srv.DefaultGrace)

		logger.Info().Msg("agora has been shut down gracefully")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&thesis, "thesis", "", "seed thesis for a fresh debate (overrides AGORA_THESIS)")
	serveCmd.Flags().BoolVar(&noDebate, "no-debate", false, "serve the stored debate without running rounds")
	rootCmd.AddCommand(serveCmd)
}
