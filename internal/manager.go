package internal

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/koopa0/system-design/14-ito-game/internal/game"
	apperrors "github.com/koopa0/system-design/14-ito-game/pkg/errors"
)

// 系統設計問題：
//   多個遊戲同時進行，每個遊戲有多個連接，如何保證每個客戶端看到一致的狀態？
//
// 設計方案：
//   - 每個遊戲一把鎖，涵蓋 驗證 → 修改 → 序列化 → 放入發送佇列
//     同一遊戲的廣播順序與狀態修改順序一致
//   - 註冊表鎖只保護 games map，持有註冊表鎖時不取遊戲鎖
//   - 鎖順序：遊戲鎖 → 註冊表鎖 → 大廳鎖
//   - 發送不阻塞（Observer.Send），慢客戶端只會被移除，不會拖住整個遊戲

// gameEntry 註冊表中的一個遊戲
type gameEntry struct {
	mu        sync.Mutex
	state     *game.State
	observers observerSet // playerID -> Observer
	seq       uint64      // 創建順序，大廳列表依此排序
	lobbySeq  uint64      // 最後一則大廳訊息的序號，同時持有遊戲鎖與大廳鎖時寫入
	removed   bool        // 已從註冊表移除，取得鎖後必須檢查
}

// lobbyBacklog 註冊中的大廳連接，初始列表送出前的增量訊息先暫存
type lobbyBacklog struct {
	obs    Observer
	deltas []lobbyDelta
}

type lobbyDelta struct {
	gameID string
	seq    uint64
	data   []byte
}

// Manager 遊戲註冊表與廣播中心
type Manager struct {
	games map[string]*gameEntry // gameID -> entry
	mu    sync.RWMutex

	lobby    observerSet              // clientID -> Observer
	pending  map[string]*lobbyBacklog // 尚未收到初始列表的大廳連接
	lobbySeq uint64                   // 大廳訊息序號
	lobbyMu  sync.RWMutex

	logger *slog.Logger
	events EventEmitter

	defaultMaxPlayers int
	maxPlayersLimit   int
	gameOpts          []game.Option

	seq atomic.Uint64
}

// ManagerOption 設定 Manager
type ManagerOption func(*Manager)

// WithEvents 設定生命週期事件的去處
func WithEvents(events EventEmitter) ManagerOption {
	return func(m *Manager) {
		if events != nil {
			m.events = events
		}
	}
}

// WithPlayerLimits 設定預設人數上限與可設定的最大值
func WithPlayerLimits(defaultMax, limit int) ManagerOption {
	return func(m *Manager) {
		if limit > 0 && limit <= game.MaxPlayersLimit {
			m.maxPlayersLimit = limit
		}
		if defaultMax >= game.MinPlayers && defaultMax <= m.maxPlayersLimit {
			m.defaultMaxPlayers = defaultMax
		}
	}
}

// WithGameOptions 套用到每個新遊戲（測試用於固定洗牌）
func WithGameOptions(opts ...game.Option) ManagerOption {
	return func(m *Manager) {
		m.gameOpts = append(m.gameOpts, opts...)
	}
}

// NewManager 創建遊戲管理器
func NewManager(logger *slog.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		games:             make(map[string]*gameEntry),
		lobby:             make(observerSet),
		pending:           make(map[string]*lobbyBacklog),
		logger:            logger,
		events:            nopEmitter{},
		defaultMaxPlayers: game.DefaultMaxPlayers,
		maxPlayersLimit:   game.MaxPlayersLimit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lookup 從註冊表取得遊戲（不取遊戲鎖）
func (m *Manager) lookup(gameID string) (*gameEntry, error) {
	m.mu.RLock()
	e, ok := m.games[gameID]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.ErrGameNotFound
	}
	return e, nil
}

// withGame 取得遊戲鎖後執行 fn；遊戲已被移除視為不存在
func (m *Manager) withGame(gameID string, fn func(e *gameEntry) error) error {
	e, err := m.lookup(gameID)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return apperrors.ErrGameNotFound
	}
	return fn(e)
}

// ---------------------------------------------------------------------------
// 請求型操作
// ---------------------------------------------------------------------------

// CreateGame 創建遊戲，房主自動加入
func (m *Manager) CreateGame(hostID, hostName, name string, maxPlayers int) (game.Snapshot, error) {
	hostID = strings.TrimSpace(hostID)
	hostName = strings.TrimSpace(hostName)
	name = strings.TrimSpace(name)
	if hostID == "" || hostName == "" || name == "" {
		return game.Snapshot{}, apperrors.ErrInvalidInput.WithDetails("host id, host name and game name are required")
	}
	if maxPlayers == 0 {
		maxPlayers = m.defaultMaxPlayers
	}
	if maxPlayers < game.MinPlayers || maxPlayers > m.maxPlayersLimit {
		return game.Snapshot{}, apperrors.ErrInvalidInput.WithDetails(
			fmt.Sprintf("max players must be between %d and %d", game.MinPlayers, m.maxPlayersLimit))
	}

	gameID := uuid.NewString()
	st := game.NewState(gameID, name, hostID, maxPlayers, m.gameOpts...)
	if err := st.AddPlayer(game.NewPlayer(hostID, hostName)); err != nil {
		return game.Snapshot{}, err
	}
	snap := st.Snapshot()

	e := &gameEntry{
		state:     st,
		observers: make(observerSet),
		seq:       m.seq.Add(1),
	}

	// 其他人從註冊表拿到這個遊戲時，GAME_CREATED 必須已經送出
	e.mu.Lock()
	defer e.mu.Unlock()

	m.mu.Lock()
	m.games[gameID] = e
	m.mu.Unlock()

	m.logger.Info("遊戲已創建",
		"game_id", gameID,
		"name", name,
		"host_id", hostID,
		"max_players", maxPlayers)

	m.notifyLobby(e, game.GameCreated{Game: snap})
	m.events.Emit(Event{Type: EventGameCreated, GameID: gameID, Lives: snap.TeamLivesRemaining, Players: 1})

	return snap, nil
}

// ListJoinable 列出仍在 Lobby 且未滿的遊戲，依創建順序
func (m *Manager) ListJoinable() []game.Snapshot {
	list, _ := m.joinable()
	return list
}

// joinable 同時返回每個看過的遊戲當時的大廳訊息序號
func (m *Manager) joinable() ([]game.Snapshot, map[string]uint64) {
	m.mu.RLock()
	entries := make([]*gameEntry, 0, len(m.games))
	for _, e := range m.games {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	slices.SortFunc(entries, func(a, b *gameEntry) int { return cmp.Compare(a.seq, b.seq) })

	result := make([]game.Snapshot, 0, len(entries))
	seen := make(map[string]uint64, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		seen[e.state.ID] = e.lobbySeq
		if !e.removed {
			if snap := e.state.Snapshot(); snap.Joinable() {
				result = append(result, snap)
			}
		}
		e.mu.Unlock()
	}
	return result, seen
}

// GetGame 獲取遊戲快照
func (m *Manager) GetGame(gameID string) (game.Snapshot, error) {
	var snap game.Snapshot
	err := m.withGame(gameID, func(e *gameEntry) error {
		snap = e.state.Snapshot()
		return nil
	})
	return snap, err
}

// JoinGame 加入遊戲
//
// 失敗時遊戲不變也不廣播。人數檢查與加入在同一把遊戲鎖內完成。
func (m *Manager) JoinGame(gameID, playerID, playerName string) (game.Snapshot, error) {
	playerID = strings.TrimSpace(playerID)
	playerName = strings.TrimSpace(playerName)
	if playerID == "" || playerName == "" {
		return game.Snapshot{}, apperrors.ErrInvalidInput.WithDetails("player id and player name are required")
	}

	var snap game.Snapshot
	err := m.withGame(gameID, func(e *gameEntry) error {
		if e.state.RoundState != game.StateLobby {
			return apperrors.ErrNotInLobby
		}
		player := game.NewPlayer(playerID, playerName)
		if err := e.state.AddPlayer(player); err != nil {
			return err
		}

		snap = e.state.Snapshot()
		m.broadcastState(e)
		m.notifyLobby(e, game.PlayerJoined{GameID: gameID, Player: snap.Players[len(snap.Players)-1]})

		m.logger.Info("玩家加入遊戲",
			"game_id", gameID,
			"player_id", playerID,
			"player_name", playerName,
			"players", len(snap.Players))
		return nil
	})
	if err != nil {
		m.logger.Warn("加入遊戲失敗",
			"game_id", gameID,
			"player_id", playerID,
			"error", err)
	}
	return snap, err
}

// LeaveGame 玩家主動離開
func (m *Manager) LeaveGame(gameID, playerID string) error {
	return m.withGame(gameID, func(e *gameEntry) error {
		if _, ok := e.state.Player(playerID); !ok {
			return apperrors.ErrPlayerNotFound
		}
		if obs, ok := e.observers[playerID]; ok {
			delete(e.observers, playerID)
			obs.Close()
		}
		m.removePlayerLocked(e, playerID)
		return nil
	})
}

// RemoveGame 移除遊戲並關閉所有連接，重複呼叫無副作用
func (m *Manager) RemoveGame(gameID string) bool {
	err := m.withGame(gameID, func(e *gameEntry) error {
		m.removeLocked(e)
		return nil
	})
	return err == nil
}

// DeleteGame 房主刪除遊戲；已經沒有玩家的遊戲任何人都可以刪除
func (m *Manager) DeleteGame(gameID, requesterID string) error {
	return m.withGame(gameID, func(e *gameEntry) error {
		if len(e.state.Players) > 0 && !e.state.IsHost(requesterID) {
			return apperrors.ErrNotHost
		}
		m.removeLocked(e)
		return nil
	})
}

// StartGame 房主開始遊戲
func (m *Manager) StartGame(gameID, requesterID string) error {
	return m.withGame(gameID, func(e *gameEntry) error {
		st := e.state
		if !st.IsHost(requesterID) {
			m.sendError(e, requesterID, apperrors.ErrNotHost)
			return apperrors.ErrNotHost
		}

		if err := st.Start(); err != nil {
			if apperrors.IsDealingFault(err) {
				m.logger.Error("發牌失敗，遊戲結束",
					"game_id", gameID,
					"error", err)
				m.broadcastState(e)
				m.publishOutcome(e, false)
			}
			m.sendError(e, requesterID, err)
			return err
		}

		m.logger.Info("遊戲開始",
			"game_id", gameID,
			"players", len(st.Players),
			"round", st.CurrentRound)

		snap := st.Snapshot()
		m.broadcastState(e)
		m.notifyLobby(e, game.GameStateUpdate{Payload: snap})
		m.events.Emit(Event{
			Type:    EventGameStarted,
			GameID:  gameID,
			Round:   st.CurrentRound,
			Lives:   st.TeamLivesRemaining,
			Players: len(st.Players),
		})
		return nil
	})
}

// PlayCard 玩家出牌
//
// 呼叫錯誤（不是玩家、不在 Playing、手上沒有此牌）只回給出牌者。
// 違反規則是正常的遊戲結果：先廣播 CARD_PLAYED_VALIDATION，再廣播完整狀態。
func (m *Manager) PlayCard(gameID, playerID string, cardValue game.CardValue) error {
	return m.withGame(gameID, func(e *gameEntry) error {
		st := e.state
		result, err := st.PlayCard(playerID, cardValue)
		if err != nil {
			m.logger.Warn("出牌被拒絕",
				"game_id", gameID,
				"player_id", playerID,
				"card", cardValue,
				"error", err)
			m.sendError(e, playerID, err)
			return err
		}

		if !result.Success || result.LivesLost > 0 {
			m.logger.Info("出牌錯誤，扣除生命",
				"game_id", gameID,
				"player_id", playerID,
				"card", cardValue,
				"lives", st.TeamLivesRemaining)
			m.broadcast(e, game.CardPlayedValidation{
				PlayerID:      playerID,
				CardValue:     cardValue,
				IsCorrectPlay: result.Success,
				LivesLost:     result.LivesLost,
				Message:       result.Message,
			})
		} else {
			m.logger.Debug("出牌成功",
				"game_id", gameID,
				"player_id", playerID,
				"card", cardValue)
		}

		m.broadcastState(e)

		if st.RoundState == game.StateRoundEnd || st.RoundState == game.StateGameEnd {
			m.publishOutcome(e, true)
		}
		return nil
	})
}

// TriggerNextRound 房主開始下一回合
//
// RoundEnd 且還有生命與回合：發下一回合的牌。
// RoundEnd 但生命或回合已用完：強制結束遊戲（不是錯誤）。
// 其他狀態：回覆 ERROR 給房主。
func (m *Manager) TriggerNextRound(gameID, requesterID string) error {
	return m.withGame(gameID, func(e *gameEntry) error {
		st := e.state
		if !st.IsHost(requesterID) {
			m.sendError(e, requesterID, apperrors.ErrNotHost)
			return apperrors.ErrNotHost
		}

		switch {
		case st.CanStartNextRound():
			if err := st.StartNewRound(); err != nil {
				m.logger.Error("發牌失敗，遊戲結束",
					"game_id", gameID,
					"round", st.CurrentRound,
					"error", err)
				m.broadcastState(e)
				m.publishOutcome(e, false)
				return err
			}
			m.logger.Info("新回合開始",
				"game_id", gameID,
				"round", st.CurrentRound,
				"lives", st.TeamLivesRemaining)
			m.broadcastState(e)
			return nil

		case st.RoundState == game.StateRoundEnd:
			st.ForceGameEnd()
			m.logger.Info("沒有剩餘回合或生命，遊戲結束",
				"game_id", gameID,
				"round", st.CurrentRound,
				"lives", st.TeamLivesRemaining)
			m.broadcastState(e)
			m.publishOutcome(e, false)
			return nil

		default:
			m.sendError(e, requesterID, apperrors.ErrNextRoundNotAllowed)
			return apperrors.ErrNextRoundNotAllowed
		}
	})
}

// ChangeTopic 房主在 Lobby 修改主題，成功時廣播
func (m *Manager) ChangeTopic(gameID, playerID, topic string) bool {
	return m.UpdateTopic(gameID, playerID, topic) == nil
}

// UpdateTopic 同 ChangeTopic，但返回失敗原因
func (m *Manager) UpdateTopic(gameID, playerID, topic string) error {
	err := m.withGame(gameID, func(e *gameEntry) error {
		if !e.state.IsHost(playerID) {
			return apperrors.ErrNotHost
		}
		if err := e.state.ChangeTopic(topic); err != nil {
			return err
		}
		m.broadcastState(e)
		return nil
	})
	if err != nil {
		m.logger.Warn("修改主題失敗",
			"game_id", gameID,
			"player_id", playerID,
			"error", err)
		return err
	}
	m.logger.Info("主題已修改", "game_id", gameID, "topic", strings.TrimSpace(topic))
	return nil
}

// ---------------------------------------------------------------------------
// 連接型操作
// ---------------------------------------------------------------------------

// RegisterConnection 註冊玩家的遊戲連接，並立即送出目前狀態
//
// 同一玩家的舊連接會被關閉。
func (m *Manager) RegisterConnection(gameID, playerID string, obs Observer) error {
	return m.withGame(gameID, func(e *gameEntry) error {
		if _, ok := e.state.Player(playerID); !ok {
			return apperrors.ErrPlayerNotFound
		}
		e.observers.replace(playerID, obs)

		data, err := game.Encode(game.GameStateUpdate{Payload: e.state.Snapshot()})
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to encode game state")
		}
		e.observers.sendTo(playerID, data)

		m.logger.Info("遊戲連接已註冊",
			"game_id", gameID,
			"player_id", playerID,
			"connections", len(e.observers))
		return nil
	})
}

// UnregisterConnection 連接關閉時呼叫，玩家隨之離開遊戲
//
// obs 已被同一玩家的新連接取代時忽略。
func (m *Manager) UnregisterConnection(gameID, playerID string, obs Observer) {
	_ = m.withGame(gameID, func(e *gameEntry) error {
		if cur, ok := e.observers[playerID]; ok {
			if cur != obs {
				m.logger.Debug("忽略已被取代的連接",
					"game_id", gameID,
					"player_id", playerID)
				return nil
			}
			delete(e.observers, playerID)
		}

		if _, ok := e.state.Player(playerID); ok {
			m.removePlayerLocked(e, playerID)
		}
		return nil
	})
}

// RegisterLobbyObserver 註冊大廳連接，並送出可加入的遊戲列表
//
// 列表產生期間的增量訊息先暫存，列表送出後再依序補送；
// 已反映在列表中的訊息會被略過，連接不會看到倒退的狀態。
func (m *Manager) RegisterLobbyObserver(clientID string, obs Observer) {
	backlog := &lobbyBacklog{obs: obs}

	m.lobbyMu.Lock()
	if old, ok := m.lobby[clientID]; ok {
		delete(m.lobby, clientID)
		if old != obs {
			old.Close()
		}
	}
	if old, ok := m.pending[clientID]; ok && old.obs != obs {
		old.obs.Close()
	}
	m.pending[clientID] = backlog
	m.lobbyMu.Unlock()

	list, seen := m.joinable()
	data, err := game.Encode(game.LobbyGameListUpdate{Payload: list})
	if err != nil {
		m.logger.Error("序列化大廳列表失敗", "error", err)
		m.UnregisterLobbyObserver(clientID, obs)
		return
	}

	m.lobbyMu.Lock()
	defer m.lobbyMu.Unlock()

	// 期間已被取代或移除
	if m.pending[clientID] != backlog {
		return
	}
	delete(m.pending, clientID)

	if !obs.Send(data) {
		obs.Close()
		logPruned(m.logger, "lobby", []string{clientID})
		return
	}
	for _, d := range backlog.deltas {
		if s, ok := seen[d.gameID]; ok && d.seq <= s {
			continue
		}
		if !obs.Send(d.data) {
			obs.Close()
			logPruned(m.logger, "lobby", []string{clientID})
			return
		}
	}
	m.lobby[clientID] = obs

	m.logger.Info("大廳連接已註冊", "client_id", clientID, "lobby_observers", len(m.lobby))
}

// UnregisterLobbyObserver 移除大廳連接；obs 已被取代時忽略
func (m *Manager) UnregisterLobbyObserver(clientID string, obs Observer) {
	m.lobbyMu.Lock()
	defer m.lobbyMu.Unlock()

	if b, ok := m.pending[clientID]; ok && b.obs == obs {
		delete(m.pending, clientID)
	}
	if cur, ok := m.lobby[clientID]; ok && cur == obs {
		delete(m.lobby, clientID)
		m.logger.Info("大廳連接已移除", "client_id", clientID)
	}
}

// ---------------------------------------------------------------------------
// 內部：需持有遊戲鎖
// ---------------------------------------------------------------------------

// removePlayerLocked 移除玩家、廣播並通知大廳；最後一人離開時刪除遊戲
func (m *Manager) removePlayerLocked(e *gameEntry, playerID string) {
	st := e.state
	before := st.RoundState
	st.RemovePlayer(playerID)

	m.logger.Info("玩家離開遊戲",
		"game_id", st.ID,
		"player_id", playerID,
		"players", len(st.Players))

	m.broadcastState(e)
	m.notifyLobby(e, game.PlayerLeft{GameID: st.ID, PlayerID: playerID})

	if st.Abandoned {
		m.removeLocked(e)
		return
	}
	if before == game.StatePlaying && st.RoundState != game.StatePlaying {
		m.publishOutcome(e, true)
	}
}

// removeLocked 從註冊表移除遊戲並關閉所有遊戲連接
func (m *Manager) removeLocked(e *gameEntry) {
	e.removed = true

	m.mu.Lock()
	delete(m.games, e.state.ID)
	m.mu.Unlock()

	e.observers.closeAll()

	m.logger.Info("遊戲已移除", "game_id", e.state.ID)

	m.notifyLobby(e, game.GameDeleted{GameID: e.state.ID})
	m.events.Emit(Event{
		Type:    EventGameDeleted,
		GameID:  e.state.ID,
		Round:   e.state.CurrentRound,
		Lives:   e.state.TeamLivesRemaining,
		Players: len(e.state.Players),
	})
}

// publishOutcome 回合或遊戲結束後通知大廳並發送事件
//
// roundEnded 為 false 表示回合早已結束，這次只是遊戲進入 GameEnd。
func (m *Manager) publishOutcome(e *gameEntry, roundEnded bool) {
	st := e.state
	m.notifyLobby(e, game.GameStateUpdate{Payload: st.Snapshot()})

	if roundEnded {
		m.events.Emit(Event{
			Type:    EventRoundEnded,
			GameID:  st.ID,
			Round:   st.CurrentRound,
			Lives:   st.TeamLivesRemaining,
			Players: len(st.Players),
		})
	}
	if st.RoundState == game.StateGameEnd {
		m.logger.Info("遊戲結束",
			"game_id", st.ID,
			"round", st.CurrentRound,
			"lives", st.TeamLivesRemaining,
			"outcome", st.Outcome())
		m.events.Emit(Event{
			Type:    EventGameEnded,
			GameID:  st.ID,
			Round:   st.CurrentRound,
			Lives:   st.TeamLivesRemaining,
			Players: len(st.Players),
			Outcome: st.Outcome(),
		})
	}
}

// broadcast 序列化一次，送給遊戲中所有連接
func (m *Manager) broadcast(e *gameEntry, msg game.ServerMessage) {
	data, err := game.Encode(msg)
	if err != nil {
		m.logger.Error("序列化訊息失敗", "error", err, "game_id", e.state.ID)
		return
	}
	logPruned(m.logger, e.state.ID, e.observers.deliver(data))
}

func (m *Manager) broadcastState(e *gameEntry) {
	m.broadcast(e, game.GameStateUpdate{Payload: e.state.Snapshot()})
}

// sendError 只送給請求者
func (m *Manager) sendError(e *gameEntry, playerID string, err error) {
	data, encErr := game.Encode(game.ErrorMessage{Message: apperrors.UserMessage(err)})
	if encErr != nil {
		m.logger.Error("序列化錯誤訊息失敗", "error", encErr)
		return
	}
	e.observers.sendTo(playerID, data)
}

// notifyLobby 廣播給大廳中所有連接，並暫存給註冊中的連接
//
// 呼叫者必須持有 e.mu，同一遊戲的大廳訊息因此依序編號。
func (m *Manager) notifyLobby(e *gameEntry, msg game.ServerMessage) {
	data, err := game.Encode(msg)
	if err != nil {
		m.logger.Error("序列化大廳訊息失敗", "error", err)
		return
	}

	m.lobbyMu.Lock()
	m.lobbySeq++
	e.lobbySeq = m.lobbySeq
	for _, b := range m.pending {
		b.deltas = append(b.deltas, lobbyDelta{gameID: e.state.ID, seq: e.lobbySeq, data: data})
	}
	pruned := m.lobby.deliver(data)
	m.lobbyMu.Unlock()

	logPruned(m.logger, "lobby", pruned)
}

// ---------------------------------------------------------------------------
// 統計與關閉
// ---------------------------------------------------------------------------

// Stats 獲取統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	entries := make([]*gameEntry, 0, len(m.games))
	for _, e := range m.games {
		entries = append(entries, e)
	}
	m.mu.RUnlock()

	byState := make(map[game.RoundState]int)
	totalPlayers := 0
	totalConnections := 0
	totalGames := 0
	for _, e := range entries {
		e.mu.Lock()
		if !e.removed {
			totalGames++
			byState[e.state.RoundState]++
			totalPlayers += len(e.state.Players)
			totalConnections += len(e.observers)
		}
		e.mu.Unlock()
	}

	m.lobbyMu.RLock()
	lobbyObservers := len(m.lobby) + len(m.pending)
	m.lobbyMu.RUnlock()

	return map[string]any{
		"total_games":       totalGames,
		"total_players":     totalPlayers,
		"total_connections": totalConnections,
		"lobby_observers":   lobbyObservers,
		"by_state":          byState,
	}
}

// Stop 關閉所有連接與事件管線
func (m *Manager) Stop() {
	m.mu.Lock()
	games := m.games
	m.games = make(map[string]*gameEntry)
	m.mu.Unlock()

	for _, e := range games {
		e.mu.Lock()
		e.removed = true
		e.observers.closeAll()
		e.mu.Unlock()
	}

	m.lobbyMu.Lock()
	m.lobby.closeAll()
	for id, b := range m.pending {
		b.obs.Close()
		delete(m.pending, id)
	}
	m.lobbyMu.Unlock()

	m.events.Close()

	m.logger.Info("遊戲管理器已停止", "games", len(games))
}
