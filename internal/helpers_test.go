package internal_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/koopa0/system-design/14-ito-game/internal"
	"github.com/koopa0/system-design/14-ito-game/internal/game"
	"github.com/stretchr/testify/require"
)

// testLogger 測試用 logger，只輸出錯誤
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// recordingObserver 記錄收到的訊息
type recordingObserver struct {
	mu     sync.Mutex
	msgs   [][]byte
	closed bool
	reject bool // 模擬緩衝區已滿
}

func (o *recordingObserver) Send(msg []byte) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed || o.reject {
		return false
	}
	o.msgs = append(o.msgs, msg)
	return true
}

func (o *recordingObserver) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
}

func (o *recordingObserver) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// messages 解碼所有收到的訊息
func (o *recordingObserver) messages(t *testing.T) []map[string]any {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]map[string]any, 0, len(o.msgs))
	for _, raw := range o.msgs {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

// types 收到的訊息類型（依順序）
func (o *recordingObserver) types(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range o.messages(t) {
		out = append(out, m["type"].(string))
	}
	return out
}

// last 最後一則指定類型的訊息
func (o *recordingObserver) last(t *testing.T, msgType game.MessageType) map[string]any {
	t.Helper()
	msgs := o.messages(t)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i]["type"] == string(msgType) {
			return msgs[i]
		}
	}
	t.Fatalf("no %s message received", msgType)
	return nil
}

func (o *recordingObserver) reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = nil
}

// recordingEmitter 記錄生命週期事件
type recordingEmitter struct {
	mu     sync.Mutex
	events []internal.Event
	closed bool
}

func (e *recordingEmitter) Emit(event internal.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *recordingEmitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

func (e *recordingEmitter) types() []internal.EventType {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]internal.EventType, 0, len(e.events))
	for _, ev := range e.events {
		out = append(out, ev.Type)
	}
	return out
}

func (e *recordingEmitter) find(t internal.EventType) (internal.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.events {
		if ev.Type == t {
			return ev, true
		}
	}
	return internal.Event{}, false
}

// twoPlayerGame 創建 A（房主）與 B 的遊戲，並註冊兩人的連接
//
// 發牌順序固定：第 1 回合 A=10、B=20，第 2 回合 A=10,20、B=30,40，第 3 回合 A=10,20,30、B=40,50,60。
func twoPlayerGame(t *testing.T, opts ...internal.ManagerOption) (*internal.Manager, string, *recordingObserver, *recordingObserver) {
	t.Helper()
	opts = append([]internal.ManagerOption{
		internal.WithGameOptions(game.WithShuffle(game.StackedShuffle(10, 20, 30, 40, 50, 60, 70))),
	}, opts...)
	m := internal.NewManager(testLogger(), opts...)

	snap, err := m.CreateGame("A", "Alice", "測試遊戲", 4)
	require.NoError(t, err)
	_, err = m.JoinGame(snap.ID, "B", "Bob")
	require.NoError(t, err)

	obsA, obsB := &recordingObserver{}, &recordingObserver{}
	require.NoError(t, m.RegisterConnection(snap.ID, "A", obsA))
	require.NoError(t, m.RegisterConnection(snap.ID, "B", obsB))
	obsA.reset()
	obsB.reset()

	return m, snap.ID, obsA, obsB
}

// stateOf 從 GAME_STATE_UPDATE 訊息取出 payload
func stateOf(t *testing.T, msg map[string]any) map[string]any {
	t.Helper()
	payload, ok := msg["payload"].(map[string]any)
	require.True(t, ok, "message has no payload: %v", msg)
	return payload
}
