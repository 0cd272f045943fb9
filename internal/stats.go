package internal

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/koopa0/system-design/14-ito-game/internal/game"
	"github.com/redis/go-redis/v9"
)

// RedisStats 把生命週期事件累計成 Redis 計數器
//
// Key 設計：
//
//	{prefix}:events:{event}     每種事件的累計次數
//	{prefix}:outcome:{outcome}  遊戲結果（won / lost）
//
// 計數器跨程序重啟保留；遊戲狀態本身不寫入 Redis。
type RedisStats struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisStats 連接 Redis 並驗證連線
func NewRedisStats(ctx context.Context, cfg RedisConfig, logger *slog.Logger) (*RedisStats, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("連接 Redis 失敗: %w", err)
	}

	return newRedisStats(client, cfg.KeyPrefix, logger), nil
}

func newRedisStats(client *redis.Client, prefix string, logger *slog.Logger) *RedisStats {
	return &RedisStats{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStats) eventKey(t EventType) string {
	return fmt.Sprintf("%s:events:%s", s.prefix, t)
}

func (s *RedisStats) outcomeKey(outcome string) string {
	return fmt.Sprintf("%s:outcome:%s", s.prefix, outcome)
}

// Publish 累加事件計數（實作 EventSink）
func (s *RedisStats) Publish(ctx context.Context, event Event) error {
	pipe := s.client.TxPipeline()
	pipe.IncrBy(ctx, s.eventKey(event.Type), 1)
	if event.Type == EventGameEnded && event.Outcome != "" {
		pipe.IncrBy(ctx, s.outcomeKey(event.Outcome), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("更新統計失敗: %w", err)
	}
	return nil
}

// Totals 讀取所有累計計數
func (s *RedisStats) Totals(ctx context.Context) (map[string]int64, error) {
	var labels, keys []string
	for _, t := range []EventType{EventGameCreated, EventGameStarted, EventRoundEnded, EventGameEnded, EventGameDeleted} {
		labels = append(labels, string(t))
		keys = append(keys, s.eventKey(t))
	}
	for _, o := range []string{game.OutcomeWon, game.OutcomeLost} {
		labels = append(labels, "outcome."+o)
		keys = append(keys, s.outcomeKey(o))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("讀取統計失敗: %w", err)
	}

	totals := make(map[string]int64, len(keys))
	for i, v := range values {
		totals[labels[i]] = parseCounter(v)
	}
	return totals, nil
}

// parseCounter MGET 對不存在的 key 返回 nil
func parseCounter(v any) int64 {
	str, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Close 關閉 Redis 連接
func (s *RedisStats) Close() error {
	return s.client.Close()
}
