package internal_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-ito-game/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefaultConfig 預設配置必須通過驗證
func TestDefaultConfig(t *testing.T) {
	cfg := internal.DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Game.DefaultMaxPlayers)
	assert.Equal(t, 33, cfg.Game.MaxPlayersLimit)
	assert.Less(t, cfg.WebSocket.PingInterval, cfg.WebSocket.PongWait)
	assert.False(t, cfg.NATS.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

// TestLoadConfig 測試讀取 YAML 與環境變數
func TestLoadConfig(t *testing.T) {
	writeConfig := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	tests := []struct {
		name     string
		yaml     string
		env      map[string]string
		wantErr  bool
		validate func(t *testing.T, cfg *internal.Config)
	}{
		{
			name: "empty path uses defaults",
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, internal.DefaultConfig(), cfg)
			},
		},
		{
			name: "yaml overrides defaults",
			yaml: `
server:
  port: 9090
  read_timeout: 5s
log:
  level: debug
  format: json
game:
  default_max_players: 6
nats:
  enabled: true
  url: nats://nats:4222
`,
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
				assert.Equal(t, "debug", cfg.Log.Level)
				assert.Equal(t, "json", cfg.Log.Format)
				assert.Equal(t, 6, cfg.Game.DefaultMaxPlayers)
				assert.True(t, cfg.NATS.Enabled)
				assert.Equal(t, "ito.games", cfg.NATS.SubjectPrefix)
			},
		},
		{
			name: "environment overrides yaml",
			yaml: "server:\n  port: 9090\n",
			env: map[string]string{
				"ITO_PORT":      "7070",
				"ITO_LOG_LEVEL": "warn",
				"REDIS_ADDR":    "redis:6379",
			},
			validate: func(t *testing.T, cfg *internal.Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "warn", cfg.Log.Level)
				assert.True(t, cfg.Redis.Enabled)
				assert.Equal(t, "redis:6379", cfg.Redis.Addr)
			},
		},
		{
			name:    "invalid port in environment",
			env:     map[string]string{"ITO_PORT": "abc"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [",
			wantErr: true,
		},
		{
			name:    "invalid values fail validation",
			yaml:    "log:\n  level: verbose\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"ITO_PORT", "ITO_LOG_LEVEL", "NATS_URL", "REDIS_ADDR"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := ""
			if tt.yaml != "" {
				path = writeConfig(t, tt.yaml)
			}

			cfg, err := internal.LoadConfig(path)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}

	t.Run("missing file", func(t *testing.T) {
		_, err := internal.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})
}

// TestConfig_Validate 測試配置驗證
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(cfg *internal.Config)
		wantMsg string
	}{
		{
			name:    "port out of range",
			modify:  func(cfg *internal.Config) { cfg.Server.Port = 70000 },
			wantMsg: "server.port",
		},
		{
			name:    "unknown log format",
			modify:  func(cfg *internal.Config) { cfg.Log.Format = "xml" },
			wantMsg: "log.format",
		},
		{
			name:    "limit above card supply",
			modify:  func(cfg *internal.Config) { cfg.Game.MaxPlayersLimit = 40 },
			wantMsg: "game.max_players_limit",
		},
		{
			name:    "default above limit",
			modify:  func(cfg *internal.Config) { cfg.Game.DefaultMaxPlayers = 10; cfg.Game.MaxPlayersLimit = 8 },
			wantMsg: "game.default_max_players",
		},
		{
			name:    "ping not shorter than pong wait",
			modify:  func(cfg *internal.Config) { cfg.WebSocket.PingInterval = cfg.WebSocket.PongWait },
			wantMsg: "websocket.ping_interval",
		},
		{
			name:    "enabled nats without url",
			modify:  func(cfg *internal.Config) { cfg.NATS.Enabled = true; cfg.NATS.URL = "" },
			wantMsg: "nats.url",
		},
		{
			name:    "enabled redis without addr",
			modify:  func(cfg *internal.Config) { cfg.Redis.Enabled = true; cfg.Redis.Addr = "" },
			wantMsg: "redis.addr",
		},
		{
			name:    "empty event queue",
			modify:  func(cfg *internal.Config) { cfg.Events.QueueSize = 0 },
			wantMsg: "events.queue_size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := internal.DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := internal.DefaultConfig()
		cfg.Server.Port = 0
		cfg.Log.Level = "loud"

		err := cfg.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
		assert.Contains(t, err.Error(), "log.level")
	})
}
