package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/annelo/go-voxel-engine/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile_KnownKeys(t *testing.T) {
	path := writeConfig(t, `
FULLSCREEN 1
WIN_WIDTH 1920
WIN_HEIGHT 1080
FPS_CAPPED 0
FPS 144
FOV 90
SKIN miner
WORLD_HEIGHT 8
WORLD_SIZE 256
`)

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Client.Fullscreen)
	assert.Equal(t, 1920, cfg.Client.WinWidth)
	assert.Equal(t, 1080, cfg.Client.WinHeight)
	assert.False(t, cfg.Client.FpsCapped)
	assert.Equal(t, 144, cfg.Client.Fps)
	assert.Equal(t, 90, cfg.Client.Fov)
	assert.Equal(t, "miner", cfg.Client.Skin)
	assert.Equal(t, int32(8), cfg.Server.WorldHeight)
	assert.Equal(t, int32(256), cfg.Server.WorldSize)
}

func TestLoadFile_UnknownKeysIgnored(t *testing.T) {
	path := writeConfig(t, "FOO bar\nWIN_WIDTH 800\nBAZ 17\n")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 800, cfg.Client.WinWidth)
	// остальное осталось по умолчанию
	assert.Equal(t, config.Default().Client.Fps, cfg.Client.Fps)
}

func TestLoadFile_MissingFileKeepsDefaults(t *testing.T) {
	cfg, err := config.LoadFile(filepath.Join(t.TempDir(), "nope.txt"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoadFile_BadNumberKeepsDefault(t *testing.T) {
	path := writeConfig(t, "WIN_WIDTH many\nFPS 75\n")

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default().Client.WinWidth, cfg.Client.WinWidth)
	assert.Equal(t, 75, cfg.Client.Fps)
}

func TestParseConnectionCount(t *testing.T) {
	n, err := config.ParseConnectionCount("8")
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	for _, bad := range []string{"1", "30", "x", ""} {
		_, err := config.ParseConnectionCount(bad)
		assert.Error(t, err, "значение %q должно отклоняться", bad)
	}
}

func TestParseArgs_ServerCountFallback(t *testing.T) {
	log := zap.NewNop().Sugar()

	for _, bad := range []string{"1", "30", "x"} {
		cfg := config.Default()
		config.ParseArgs(&cfg, []string{"-server", bad}, log)
		assert.Equal(t, config.ModeServer, cfg.Mode)
		assert.Equal(t, 4, cfg.Server.MaxConnections, "значение %q откатывается к 4", bad)
	}

	cfg := config.Default()
	config.ParseArgs(&cfg, []string{"-server", "8"}, log)
	assert.Equal(t, 8, cfg.Server.MaxConnections)
}

func TestParseArgs_ClientAndSkin(t *testing.T) {
	log := zap.NewNop().Sugar()

	cfg := config.Default()
	config.ParseArgs(&cfg, []string{"-client", "-skin", "knight", "-addr", "10.0.0.5:25560"}, log)
	assert.Equal(t, config.ModeClient, cfg.Mode)
	assert.Equal(t, "knight", cfg.Client.Skin)
	assert.Equal(t, "10.0.0.5:25560", cfg.Addr)

	// Без флагов остаётся локальный тестовый режим
	cfg = config.Default()
	config.ParseArgs(&cfg, nil, log)
	assert.Equal(t, config.ModeLocalTest, cfg.Mode)
}
