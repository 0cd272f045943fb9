package internal_test

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/koopa0/system-design/14-ito-game/internal"
	"github.com/koopa0/system-design/14-ito-game/internal/game"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStress_ConcurrentGameCreation 測試併發創建遊戲
func TestStress_ConcurrentGameCreation(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager := internal.NewManager(testLogger())
	defer manager.Stop()

	const (
		numGoroutines     = 50
		gamesPerGoroutine = 10
	)

	var (
		wg           sync.WaitGroup
		successCount int32
	)
	start := time.Now()

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for j := 0; j < gamesPerGoroutine; j++ {
				hostID := fmt.Sprintf("host_%d_%d", g, j)
				if _, err := manager.CreateGame(hostID, "房主", fmt.Sprintf("遊戲_%d_%d", g, j), 2+j%3); err == nil {
					atomic.AddInt32(&successCount, 1)
				}
			}
		}(i)
	}
	wg.Wait()

	t.Logf("併發創建遊戲: %d 個，耗時 %v", successCount, time.Since(start))

	assert.Equal(t, int32(numGoroutines*gamesPerGoroutine), successCount)
	assert.Len(t, manager.ListJoinable(), numGoroutines*gamesPerGoroutine)
}

// TestStress_ConcurrentJoinsNeverOverfill 併發加入永遠不會超過人數上限
func TestStress_ConcurrentJoinsNeverOverfill(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager := internal.NewManager(testLogger())
	defer manager.Stop()

	const capacity = 8
	snap, err := manager.CreateGame("host", "房主", "大房間", capacity)
	require.NoError(t, err)

	lobby := &recordingObserver{}
	manager.RegisterLobbyObserver("lobby", lobby)
	lobby.reset()

	const numPlayers = 100
	var (
		wg        sync.WaitGroup
		joined    int32
		fullCount int32
	)
	for i := 0; i < numPlayers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := manager.JoinGame(snap.ID, fmt.Sprintf("player_%d", i), fmt.Sprintf("玩家_%d", i))
			if err == nil {
				atomic.AddInt32(&joined, 1)
			} else {
				atomic.AddInt32(&fullCount, 1)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(capacity-1), joined)
	assert.Equal(t, int32(numPlayers-capacity+1), fullCount)

	got, err := manager.GetGame(snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, capacity)

	joinedMsgs := 0
	for _, typ := range lobby.types(t) {
		if typ == string(game.MsgPlayerJoined) {
			joinedMsgs++
		}
	}
	assert.Equal(t, capacity-1, joinedMsgs, "one lobby notification per successful join")
}

// TestStress_ConcurrentPlays 多個玩家同時出牌，狀態保持一致
func TestStress_ConcurrentPlays(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	for iter := 0; iter < 50; iter++ {
		manager := internal.NewManager(testLogger())
		snap, err := manager.CreateGame("p0", "玩家0", "併發出牌", 10)
		require.NoError(t, err)

		observers := make([]*recordingObserver, 10)
		for i := range observers {
			id := fmt.Sprintf("p%d", i)
			if i > 0 {
				_, err := manager.JoinGame(snap.ID, id, "玩家")
				require.NoError(t, err)
			}
			observers[i] = &recordingObserver{}
			require.NoError(t, manager.RegisterConnection(snap.ID, id, observers[i]))
		}
		require.NoError(t, manager.StartGame(snap.ID, "p0"))

		started, err := manager.GetGame(snap.ID)
		require.NoError(t, err)

		var wg sync.WaitGroup
		for _, p := range started.Players {
			wg.Add(1)
			go func(id string, card game.CardValue) {
				defer wg.Done()
				_ = manager.PlayCard(snap.ID, id, card)
			}(p.ID, p.Hand[0])
		}
		wg.Wait()

		final, err := manager.GetGame(snap.ID)
		require.NoError(t, err)

		// 任何交錯下回合都已結束，且最多失去一條生命
		assert.NotEqual(t, game.StatePlaying, final.RoundState)
		assert.GreaterOrEqual(t, final.TeamLivesRemaining, game.InitialTeamLives-1)
		assert.IsIncreasing(t, final.DiscardPile)

		manager.Stop()
	}
}

// TestStress_ConnectionChurn 反覆連接與斷線不會洩漏連接
func TestStress_ConnectionChurn(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping stress test in short mode")
	}

	manager := internal.NewManager(testLogger())
	defer manager.Stop()

	snap, err := manager.CreateGame("host", "房主", "常駐", 33)
	require.NoError(t, err)
	hostObs := &recordingObserver{}
	require.NoError(t, manager.RegisterConnection(snap.ID, "host", hostObs))

	const (
		numPlayers = 20
		rounds     = 10
	)
	var wg sync.WaitGroup
	for i := 0; i < numPlayers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("player_%d", i)
			for j := 0; j < rounds; j++ {
				if _, err := manager.JoinGame(snap.ID, id, "玩家"); err != nil {
					continue
				}
				obs := &recordingObserver{}
				if err := manager.RegisterConnection(snap.ID, id, obs); err == nil {
					manager.UnregisterConnection(snap.ID, id, obs)
				}
			}
		}(i)
	}
	wg.Wait()

	got, err := manager.GetGame(snap.ID)
	require.NoError(t, err)
	assert.Len(t, got.Players, 1)
	assert.Equal(t, 1, manager.Stats()["total_connections"])
	assert.False(t, hostObs.isClosed())
}

// BenchmarkManager_CreateGame 創建遊戲
func BenchmarkManager_CreateGame(b *testing.B) {
	manager := internal.NewManager(testLogger())
	defer manager.Stop()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = manager.CreateGame(fmt.Sprintf("host_%d", i), "房主", "遊戲", 4)
	}
}

// BenchmarkManager_ListJoinable 大廳列表
func BenchmarkManager_ListJoinable(b *testing.B) {
	manager := internal.NewManager(testLogger())
	defer manager.Stop()

	for i := 0; i < 200; i++ {
		_, _ = manager.CreateGame(fmt.Sprintf("host_%d", i), "房主", "遊戲", 4)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = manager.ListJoinable()
	}
}

// BenchmarkManager_BroadcastState 一個回合的出牌與廣播
func BenchmarkManager_BroadcastState(b *testing.B) {
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		manager := internal.NewManager(testLogger(),
			internal.WithGameOptions(game.WithShuffle(game.StackedShuffle(1, 2, 3, 4, 5, 6, 7, 8, 9))))
		snap, _ := manager.CreateGame("p0", "玩家", "基準", 8)
		for j := 0; j < 8; j++ {
			id := fmt.Sprintf("p%d", j)
			if j > 0 {
				_, _ = manager.JoinGame(snap.ID, id, "玩家")
			}
			_ = manager.RegisterConnection(snap.ID, id, &recordingObserver{})
		}
		_ = manager.StartGame(snap.ID, "p0")
		b.StartTimer()

		for j := 0; j < 8; j++ {
			_ = manager.PlayCard(snap.ID, fmt.Sprintf("p%d", j), j+1)
		}

		b.StopTimer()
		manager.Stop()
		b.StartTimer()
	}
}
