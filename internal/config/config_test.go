package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTP.Address)
	assert.Equal(t, ":9090", cfg.Server.GRPC.Address)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 350, cfg.Game.WinThreshold)
	assert.Equal(t, 2, cfg.Game.MinPlayers)
	assert.Equal(t, 5, cfg.Game.MaxPlayers)
	assert.Equal(t, 10, cfg.Game.HandSize)
	assert.Equal(t, 2, cfg.Game.TurnDrawCount)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Empty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Redis.Address)
	assert.Empty(t, cfg.Server.ReplayDir)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 350, cfg.Game.WinThreshold)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  http:
    address: ":7000"
  replay_dir: /var/lib/caravan/replays
game:
  win_threshold: 500
  max_players: 4
logging:
  format: json
`)
	t.Setenv("CARAVAN_GAME_WIN_THRESHOLD", "420")
	t.Setenv("CARAVAN_REDIS_ADDRESS", "localhost:6379")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Server.HTTP.Address)
	assert.Equal(t, 420, cfg.Game.WinThreshold, "environment wins over the file")
	assert.Equal(t, 4, cfg.Game.MaxPlayers)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost:6379", cfg.Redis.Address)
	assert.Equal(t, "/var/lib/caravan/replays", cfg.Server.ReplayDir)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "bad level", yaml: "logging:\n  level: loud\n"},
		{name: "bad format", yaml: "logging:\n  format: xml\n"},
		{name: "player bounds", yaml: "game:\n  min_players: 4\n  max_players: 3\n"},
		{name: "threshold", yaml: "game:\n  win_threshold: 0\n"},
		{name: "unparseable", yaml: "game: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "config.yaml", tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestGameOptionsLoadsCatalog(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	opts, err := cfg.GameOptions()
	require.NoError(t, err)
	assert.Nil(t, opts.Catalog, "the embedded catalog is used when no path is set")
	assert.Equal(t, 350, opts.WinThreshold)

	cfg.Game.CatalogPath = writeFile(t, "catalog.yaml", "actions:\n  - { name: Thief, count: 4 }\n")
	opts, err = cfg.GameOptions()
	require.NoError(t, err)
	require.NotNil(t, opts.Catalog)
	assert.Equal(t, 4, opts.Catalog.Size())

	cfg.Game.CatalogPath = writeFile(t, "broken.yaml", "actions:\n  - { name: Pickpocket, count: 1 }\n")
	_, err = cfg.GameOptions()
	assert.Error(t, err)
}
