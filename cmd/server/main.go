package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/system-design/14-ito-game/internal"
)

func main() {
	// 解析命令行參數（優先於配置檔與環境變數）
	var (
		configPath = flag.String("config", "", "配置檔路徑 (YAML)")
		port       = flag.Int("port", 0, "服務器端口")
		logLevel   = flag.String("log-level", "", "日誌級別 (debug, info, warn, error)")
		logFormat  = flag.String("log-format", "", "日誌格式 (text, json)")
	)
	flag.Parse()

	cfg, err := internal.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "載入配置失敗: %v\n", err)
		os.Exit(1)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	// 設置日誌
	logger := setupLogger(cfg.Log.Level, cfg.Log.Format)

	// 事件 sink（可選）
	var (
		sinks      []internal.EventSink
		handlerOps []internal.HandlerOption
	)
	if cfg.NATS.Enabled {
		sink, err := internal.NewNATSSink(cfg.NATS, logger)
		if err != nil {
			logger.Error("NATS 不可用，停用事件發布", "error", err)
		} else {
			sinks = append(sinks, sink)
			logger.Info("NATS 事件發布已啟用", "url", cfg.NATS.URL, "prefix", cfg.NATS.SubjectPrefix)
		}
	}
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		stats, err := internal.NewRedisStats(ctx, cfg.Redis, logger)
		cancel()
		if err != nil {
			logger.Error("Redis 不可用，停用累計統計", "error", err)
		} else {
			sinks = append(sinks, stats)
			handlerOps = append(handlerOps, internal.WithTotals(stats))
			logger.Info("Redis 累計統計已啟用", "addr", cfg.Redis.Addr)
		}
	}

	managerOpts := []internal.ManagerOption{
		internal.WithPlayerLimits(cfg.Game.DefaultMaxPlayers, cfg.Game.MaxPlayersLimit),
	}
	if len(sinks) > 0 {
		managerOpts = append(managerOpts, internal.WithEvents(internal.NewEventBus(cfg.Events.QueueSize, logger, sinks...)))
	}

	// 創建遊戲管理器
	manager := internal.NewManager(logger, managerOpts...)

	// 創建 HTTP 處理器
	handler := internal.NewHandler(manager, logger, handlerOps...)

	// 創建 WebSocket Hub
	wsHub := internal.NewWebSocketHub(manager, cfg.WebSocket, logger)

	// 設置路由
	mux := http.NewServeMux()

	// HTTP API 路由
	mux.Handle("/", handler.Routes())

	// WebSocket 路由（不經過中間件，升級需要原始的 ResponseWriter）
	mux.HandleFunc("GET /ws/games/{game_id}", wsHub.ServeGameWS)
	mux.HandleFunc("GET /ws/lobby", wsHub.ServeLobbyWS)

	// 創建 HTTP 服務器
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// 啟動服務器
	go func() {
		logger.Info("Ito 遊戲服務器啟動",
			"port", cfg.Server.Port,
			"log_level", cfg.Log.Level,
			"log_format", cfg.Log.Format)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中斷信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	// 優雅關閉
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	// 停止接受新連接
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	// 關閉所有 WebSocket 連接並送出剩餘事件
	manager.Stop()

	logger.Info("服務器已關閉")
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug", // debug 模式顯示源碼位置
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
