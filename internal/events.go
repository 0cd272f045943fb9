package internal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// EventType 遊戲生命週期事件類型
type EventType string

const (
	EventGameCreated EventType = "game.created"
	EventGameStarted EventType = "game.started"
	EventRoundEnded  EventType = "round.ended"
	EventGameEnded   EventType = "game.ended"
	EventGameDeleted EventType = "game.deleted"
)

// Event 遊戲生命週期事件
//
// 事件只是對外的通知副本，伺服器不會讀回事件重建遊戲。
type Event struct {
	Type      EventType `json:"event"`
	GameID    string    `json:"game_id"`
	Round     int       `json:"round,omitempty"`
	Lives     int       `json:"lives"`
	Players   int       `json:"players"`
	Outcome   string    `json:"outcome,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventSink 事件的最終去處（NATS、Redis 統計...）
type EventSink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// EventEmitter Manager 發送事件用的介面
//
// Emit 會在持有遊戲鎖時被呼叫，實作不得阻塞。
type EventEmitter interface {
	Emit(event Event)
	Close()
}

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}
func (nopEmitter) Close()     {}

// EventBus 有界的非同步事件佇列
//
// 系統設計考量：
//   - Emit 不阻塞：佇列滿了直接丟棄並記錄警告
//   - 單一 goroutine 依序送往每個 sink，單一 sink 失敗不影響其他 sink
//   - Close 會先送完佇列中剩餘的事件，再關閉所有 sink
type EventBus struct {
	sinks          []EventSink
	queue          chan Event
	logger         *slog.Logger
	publishTimeout time.Duration

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

// NewEventBus 創建事件佇列並啟動發送 goroutine
func NewEventBus(queueSize int, logger *slog.Logger, sinks ...EventSink) *EventBus {
	if queueSize <= 0 {
		queueSize = 1024
	}
	b := &EventBus{
		sinks:          sinks,
		queue:          make(chan Event, queueSize),
		logger:         logger,
		publishTimeout: 5 * time.Second,
	}

	b.wg.Add(1)
	go b.run()

	return b
}

// Emit 非阻塞地送出事件
func (b *EventBus) Emit(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	select {
	case b.queue <- event:
	default:
		b.dropped.Add(1)
		b.logger.Warn("事件佇列已滿，丟棄事件",
			"event", event.Type,
			"game_id", event.GameID)
	}
}

// Dropped 因佇列已滿而丟棄的事件數
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close 停止接收事件，送完剩餘事件後關閉所有 sink
func (b *EventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()

	for _, sink := range b.sinks {
		if err := sink.Close(); err != nil {
			b.logger.Error("關閉事件 sink 失敗", "error", err)
		}
	}
}

func (b *EventBus) run() {
	defer b.wg.Done()

	for event := range b.queue {
		for _, sink := range b.sinks {
			ctx, cancel := context.WithTimeout(context.Background(), b.publishTimeout)
			if err := sink.Publish(ctx, event); err != nil {
				b.logger.Error("發送事件失敗",
					"error", err,
					"event", event.Type,
					"game_id", event.GameID)
			}
			cancel()
		}
	}
}
