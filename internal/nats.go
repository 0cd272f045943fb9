package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSSink 把遊戲生命週期事件發布到 NATS
//
// Subject 格式：{prefix}.{game_id}.{event}，例如 ito.games.3f2a....game.created
// 訂閱者可以用 ito.games.> 接收全部事件，或 ito.games.*.game.ended 只看結束事件。
//
// 使用 core NATS（不使用 JetStream）：事件只是對外通知，不需要持久化與重放。
type NATSSink struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSSink 連接 NATS 並創建 sink
func NewNATSSink(cfg NATSConfig, logger *slog.Logger) (*NATSSink, error) {
	conn, err := nats.Connect(
		cfg.URL,
		nats.Name("ito-game-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.PingInterval(20*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("NATS 連接中斷", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("NATS 已重新連接", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("連接 NATS 失敗: %w", err)
	}

	return &NATSSink{
		conn:   conn,
		prefix: cfg.SubjectPrefix,
		logger: logger,
	}, nil
}

// Subject 返回事件的發布主題
func (s *NATSSink) Subject(event Event) string {
	return EventSubject(s.prefix, event)
}

// EventSubject 組合事件主題
func EventSubject(prefix string, event Event) string {
	return fmt.Sprintf("%s.%s.%s", prefix, event.GameID, event.Type)
}

// Publish 發布事件
func (s *NATSSink) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("序列化事件失敗: %w", err)
	}

	if err := s.conn.Publish(s.Subject(event), data); err != nil {
		return fmt.Errorf("發布事件失敗: %w", err)
	}

	s.logger.Debug("事件已發布",
		"subject", s.Subject(event),
		"game_id", event.GameID)
	return nil
}

// Close 送出緩衝中的訊息後關閉連接
func (s *NATSSink) Close() error {
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
		return fmt.Errorf("關閉 NATS 連接失敗: %w", err)
	}
	return nil
}
