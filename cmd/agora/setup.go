package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/config"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/discussion"
	"github.com/sandevgo/agora/internal/events"
	"github.com/sandevgo/agora/internal/memory"
	"github.com/sandevgo/agora/internal/orchestrator"
	"github.com/sandevgo/agora/internal/providers/llm"
	"github.com/sandevgo/agora/internal/storage/sqlite"
	"github.com/sandevgo/agora/pkg/log"
)

type storage struct {
	db     *sql.DB
	rounds *sqlite.RoundsRepo
	memory *sqlite.MemoryRepo
}

func initStorage(ctx context.Context, cfg *config.AppConfig) (*storage, error) {
	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}
	return &storage{
		db:     db,
		rounds: sqlite.NewRoundsRepo(db),
		memory: sqlite.NewMemoryRepo(db),
	}, nil
}

// initBus returns the Redis bus when enabled so other processes see rounds
// committed here, the in-process bus otherwise.
func initBus(ctx context.Context, cfg *config.AppConfig) (core.EventBus, error) {
	if !cfg.EnableRedis {
		return events.NewLocalBus(), nil
	}
	redisCfg := config.NewRedisConfig(ctx)
	bus, err := events.NewRedisBus(ctx, redisCfg.URL, redisCfg.Channel)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return bus, nil
}

func initMemory(cfg *config.DebateConfig, store core.MemoryStore) (*memory.Memory, error) {
	counter, err := memory.NewCounter(cfg.ContextBudgetUnit)
	if err != nil {
		return nil, err
	}
	return memory.NewMemory(
		store,
		memory.NewBuilder(cfg.MemoryWindow, cfg.ContextBudget, counter),
		memory.NewSummarizer(cfg.SummaryBudget, counter),
	), nil
}

func initOrchestrator(
	ctx context.Context,
	appCfg *config.AppConfig,
	debateCfg *config.DebateConfig,
	st *storage,
	bus core.EventBus,
) (*orchestrator.Orchestrator, error) {
	thinkers, moderator, err := llm.NewThinkers(ctx, config.NewThinkersConfig(ctx), appCfg.GetPersonasPath())
	if err != nil {
		return nil, err
	}

	mem, err := initMemory(debateCfg, st.memory)
	if err != nil {
		return nil, err
	}

	cfg := orchestrator.Config{
		MaxRounds:      debateCfg.MaxRounds,
		PointsPerRound: debateCfg.PointsPerRound,
		MaxBranches:    debateCfg.MaxBranchesPerRound,
		ThinkerTimeout: debateCfg.ThinkerTimeout,
		CommitTimeout:  debateCfg.CommitTimeout,
		RoundInterval:  debateCfg.RoundInterval,
		Policy: orchestrator.Policy{
			MinResponses:   debateCfg.ResolveMinResponses,
			Threshold:      debateCfg.ResolveThreshold,
			MaxPointRounds: debateCfg.MaxPointRounds,
		},
	}

	opts := []orchestrator.Option{
		orchestrator.WithEventBus(bus),
		orchestrator.WithChainOptions(discussion.WithMaxContent(debateCfg.MessageMaxChars)),
	}
	if moderator != nil {
		opts = append(opts, orchestrator.WithModerator(moderator))
	}

	return orchestrator.New(cfg, thinkers, st.rounds, mem, opts...), nil
}

// replayService serves commands that read a debate run by another process.
func replayService(st *storage, debateCfg *config.DebateConfig) *agora.Service {
	src := agora.NewReplaySource(st.rounds, discussion.WithMaxContent(debateCfg.MessageMaxChars))
	return agora.NewService(src, debateCfg.MaxRounds)
}

func initEnv(ctx context.Context, envFile string) error {
	logger := log.FromCtx(ctx)

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}
