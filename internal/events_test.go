package internal_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-ito-game/internal"
	"github.com/koopa0/system-design/14-ito-game/internal/game"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSink 記錄收到的事件；gate 不為 nil 時每次 Publish 都等待放行
type fakeSink struct {
	mu      sync.Mutex
	events  []internal.Event
	closed  bool
	err     error
	started chan struct{}
	gate    chan struct{}
}

func (s *fakeSink) Publish(ctx context.Context, event internal.Event) error {
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSink) received() []internal.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]internal.Event(nil), s.events...)
}

// TestEventBus_DeliversInOrder 每個 sink 依序收到全部事件，Close 前送完
func TestEventBus_DeliversInOrder(t *testing.T) {
	first := &fakeSink{}
	failing := &fakeSink{err: errors.New("sink unavailable")}
	bus := internal.NewEventBus(16, testLogger(), first, failing)

	bus.Emit(internal.Event{Type: internal.EventGameCreated, GameID: "g1"})
	bus.Emit(internal.Event{Type: internal.EventGameStarted, GameID: "g1", Round: 1})
	bus.Emit(internal.Event{Type: internal.EventGameEnded, GameID: "g1", Outcome: game.OutcomeWon})
	bus.Close()

	for _, sink := range []*fakeSink{first, failing} {
		got := sink.received()
		require.Len(t, got, 3)
		assert.Equal(t, internal.EventGameCreated, got[0].Type)
		assert.Equal(t, internal.EventGameStarted, got[1].Type)
		assert.Equal(t, internal.EventGameEnded, got[2].Type)
		assert.False(t, got[0].Timestamp.IsZero(), "timestamp filled on emit")
		assert.True(t, sink.closed)
	}
	assert.Zero(t, bus.Dropped())
}

// TestEventBus_DropsWhenFull 佇列滿時 Emit 不阻塞，事件被丟棄
func TestEventBus_DropsWhenFull(t *testing.T) {
	sink := &fakeSink{
		started: make(chan struct{}, 4),
		gate:    make(chan struct{}),
	}
	bus := internal.NewEventBus(1, testLogger(), sink)

	bus.Emit(internal.Event{Type: internal.EventGameCreated, GameID: "a"})
	<-sink.started // 第一個事件已被取出，卡在 Publish

	done := make(chan struct{})
	go func() {
		bus.Emit(internal.Event{Type: internal.EventGameCreated, GameID: "b"}) // 進入佇列
		bus.Emit(internal.Event{Type: internal.EventGameCreated, GameID: "c"}) // 佇列已滿
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}
	assert.Equal(t, int64(1), bus.Dropped())

	close(sink.gate)
	bus.Close()

	got := sink.received()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].GameID)
	assert.Equal(t, "b", got[1].GameID)
}

// TestEventBus_CloseIsIdempotent 關閉後的 Emit 被忽略
func TestEventBus_CloseIsIdempotent(t *testing.T) {
	sink := &fakeSink{}
	bus := internal.NewEventBus(0, testLogger(), sink)

	bus.Close()
	bus.Close()
	bus.Emit(internal.Event{Type: internal.EventGameDeleted, GameID: "g"})

	assert.Empty(t, sink.received())
	assert.True(t, sink.closed)
}

// TestEventSubject 測試 NATS 主題格式
func TestEventSubject(t *testing.T) {
	subject := internal.EventSubject("ito.games", internal.Event{
		Type:   internal.EventRoundEnded,
		GameID: "abc",
	})
	assert.Equal(t, "ito.games.abc.round.ended", subject)
}

// TestEvent_JSON 事件的外部格式
func TestEvent_JSON(t *testing.T) {
	data, err := json.Marshal(internal.Event{
		Type:    internal.EventGameEnded,
		GameID:  "g1",
		Round:   3,
		Lives:   1,
		Players: 2,
		Outcome: game.OutcomeWon,
	})
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "game.ended", m["event"])
	assert.Equal(t, "g1", m["game_id"])
	assert.EqualValues(t, 3, m["round"])
	assert.Equal(t, "won", m["outcome"])
}

// TestManager_EventsThroughBus Manager → EventBus → sink 的完整路徑
func TestManager_EventsThroughBus(t *testing.T) {
	sink := &fakeSink{}
	bus := internal.NewEventBus(64, testLogger(), sink)
	m, gameID, _, _ := twoPlayerGame(t, internal.WithEvents(bus))

	require.NoError(t, m.StartGame(gameID, "A"))
	require.NoError(t, m.PlayCard(gameID, "A", 10))
	require.NoError(t, m.PlayCard(gameID, "B", 20))
	require.NoError(t, m.DeleteGame(gameID, "A"))
	m.Stop()

	var types []internal.EventType
	for _, ev := range sink.received() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []internal.EventType{
		internal.EventGameCreated,
		internal.EventGameStarted,
		internal.EventRoundEnded,
		internal.EventGameDeleted,
	}, types)
	assert.True(t, sink.closed)
}

// TestNATSSink_Integration 需要 NATS：NATS_URL=nats://localhost:4222
func TestNATSSink_Integration(t *testing.T) {
	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("NATS_URL not set")
	}

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe("ito.test.>", msgs)
	require.NoError(t, err)
	defer func() { _ = s.Unsubscribe() }()
	require.NoError(t, sub.Flush())

	sink, err := internal.NewNATSSink(internal.NATSConfig{Enabled: true, URL: url, SubjectPrefix: "ito.test"}, testLogger())
	require.NoError(t, err)

	event := internal.Event{Type: internal.EventGameStarted, GameID: "g1", Round: 1, Timestamp: time.Now()}
	require.NoError(t, sink.Publish(context.Background(), event))
	require.NoError(t, sink.Close())

	select {
	case msg := <-msgs:
		assert.Equal(t, "ito.test.g1.game.started", msg.Subject)
		var got internal.Event
		require.NoError(t, json.Unmarshal(msg.Data, &got))
		assert.Equal(t, internal.EventGameStarted, got.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}

// TestRedisStats_Integration 需要 Redis：REDIS_ADDR=localhost:6379
func TestRedisStats_Integration(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	prefix := "ito:test:" + time.Now().Format("150405.000000")
	stats, err := internal.NewRedisStats(ctx, internal.RedisConfig{Enabled: true, Addr: addr, KeyPrefix: prefix}, testLogger())
	require.NoError(t, err)
	defer stats.Close()

	before, err := stats.Totals(ctx)
	require.NoError(t, err)
	assert.Zero(t, before["game.ended"])

	require.NoError(t, stats.Publish(ctx, internal.Event{Type: internal.EventGameCreated, GameID: "g"}))
	require.NoError(t, stats.Publish(ctx, internal.Event{Type: internal.EventGameEnded, GameID: "g", Outcome: game.OutcomeLost}))
	require.NoError(t, stats.Publish(ctx, internal.Event{Type: internal.EventGameEnded, GameID: "h", Outcome: game.OutcomeLost}))

	totals, err := stats.Totals(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals["game.created"])
	assert.Equal(t, int64(2), totals["game.ended"])
	assert.Equal(t, int64(2), totals["outcome.lost"])
	assert.Equal(t, int64(0), totals["outcome.won"])
}
