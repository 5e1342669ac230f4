package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sandevgo/agora/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitEnv(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	assert.NoError(t, initEnv(ctx, filepath.Join(dir, ".env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("AGORA_TEST_SETUP_VALUE=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AGORA_TEST_SETUP_VALUE") })

	require.NoError(t, initEnv(ctx, path))
	assert.Equal(t, "loaded", os.Getenv("AGORA_TEST_SETUP_VALUE"))
}

func TestInitStorageAndReplay(t *testing.T) {
	ctx := context.Background()
	appCfg := &config.AppConfig{RuntimePath: t.TempDir()}

	st, err := initStorage(ctx, appCfg)
	require.NoError(t, err)
	defer st.db.Close()

	svc := replayService(st, &config.DebateConfig{MaxRounds: 4, MessageMaxChars: 100})
	info, err := svc.Debug(ctx)
	require.NoError(t, err)
	assert.Zero(t, info.LatestRound)
	assert.Equal(t, 4, info.MaxRounds)
}

func TestInitMemory_UnknownUnit(t *testing.T) {
	_, err := initMemory(&config.DebateConfig{ContextBudgetUnit: "words"}, nil)
	assert.ErrorContains(t, err, "unknown context budget unit")
}

func TestInitBus_Local(t *testing.T) {
	bus, err := initBus(context.Background(), &config.AppConfig{})
	require.NoError(t, err)
	assert.NoError(t, bus.Close())
}
