package internal

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/koopa0/system-design/14-ito-game/internal/game"
	"gopkg.in/yaml.v3"
)

// Config 整個應用的配置
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Game      GameConfig      `yaml:"game"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	NATS      NATSConfig      `yaml:"nats"`
	Redis     RedisConfig     `yaml:"redis"`
	Events    EventsConfig    `yaml:"events"`
}

// ServerConfig HTTP 服務器
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig 日誌
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// GameConfig 遊戲規則以外可調整的限制
type GameConfig struct {
	DefaultMaxPlayers int `yaml:"default_max_players"`
	MaxPlayersLimit   int `yaml:"max_players_limit"`
}

// WebSocketConfig 連接參數
//
// PingInterval 必須小於 PongWait，否則正常連接也會逾時。
type WebSocketConfig struct {
	SendBuffer     int           `yaml:"send_buffer"`
	MaxMessageSize int64         `yaml:"max_message_size"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongWait       time.Duration `yaml:"pong_wait"`
	WriteWait      time.Duration `yaml:"write_wait"`
}

// NATSConfig 生命週期事件發布
type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// RedisConfig 累計統計
type RedisConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// EventsConfig 事件佇列
type EventsConfig struct {
	QueueSize int `yaml:"queue_size"`
}

// DefaultConfig 返回預設配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Game: GameConfig{
			DefaultMaxPlayers: game.DefaultMaxPlayers,
			MaxPlayersLimit:   game.MaxPlayersLimit,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:     256,
			MaxMessageSize: 64 * 1024,
			PingInterval:   54 * time.Second,
			PongWait:       60 * time.Second,
			WriteWait:      10 * time.Second,
		},
		NATS: NATSConfig{
			URL:           "nats://localhost:4222",
			SubjectPrefix: "ito.games",
		},
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "ito:stats",
		},
		Events: EventsConfig{
			QueueSize: 1024,
		},
	}
}

// LoadConfig 讀取 YAML 配置（覆蓋預設值），再套用環境變數
//
// path 為空時只使用預設值與環境變數。
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("讀取配置檔失敗: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("解析配置檔失敗: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv 環境變數覆蓋（部署時常用）
func (c *Config) applyEnv() error {
	if v := os.Getenv("ITO_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ITO_PORT 無效: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("ITO_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		c.NATS.URL = v
		c.NATS.Enabled = true
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	return nil
}

// Validate 檢查配置是否合理
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port 必須在 1-65535 之間: %d", c.Server.Port))
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level 無效: %q", c.Log.Level))
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format 無效: %q", c.Log.Format))
	}

	if c.Game.MaxPlayersLimit < game.MinPlayers || c.Game.MaxPlayersLimit > game.MaxPlayersLimit {
		errs = append(errs, fmt.Errorf("game.max_players_limit 必須在 %d-%d 之間: %d",
			game.MinPlayers, game.MaxPlayersLimit, c.Game.MaxPlayersLimit))
	}
	if c.Game.DefaultMaxPlayers < game.MinPlayers || c.Game.DefaultMaxPlayers > c.Game.MaxPlayersLimit {
		errs = append(errs, fmt.Errorf("game.default_max_players 必須在 %d-%d 之間: %d",
			game.MinPlayers, c.Game.MaxPlayersLimit, c.Game.DefaultMaxPlayers))
	}

	if c.WebSocket.SendBuffer <= 0 {
		errs = append(errs, errors.New("websocket.send_buffer 必須大於 0"))
	}
	if c.WebSocket.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("websocket.max_message_size 必須大於 0"))
	}
	if c.WebSocket.PingInterval <= 0 || c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		errs = append(errs, fmt.Errorf("websocket.ping_interval (%s) 必須小於 pong_wait (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongWait))
	}
	if c.WebSocket.WriteWait <= 0 {
		errs = append(errs, errors.New("websocket.write_wait 必須大於 0"))
	}

	if c.NATS.Enabled && c.NATS.URL == "" {
		errs = append(errs, errors.New("nats.url 不能為空"))
	}
	if c.NATS.Enabled && c.NATS.SubjectPrefix == "" {
		errs = append(errs, errors.New("nats.subject_prefix 不能為空"))
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr 不能為空"))
	}
	if c.Events.QueueSize <= 0 {
		errs = append(errs, errors.New("events.queue_size 必須大於 0"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("配置無效: %w", err)
	}
	return nil
}
