package internal

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/koopa0/system-design/14-ito-game/internal/game"
	apperrors "github.com/koopa0/system-design/14-ito-game/pkg/errors"
)

// 系統設計問題：
//   如何讓每個玩家即時看到伺服器上的遊戲狀態？
//
// 設計方案：
//   ✅ WebSocket - 全雙工通信，伺服器主動推送
//   ✅ Connection 實作 Observer - Manager 只管「送出」，不關心傳輸層
//   ✅ 緩衝 channel + writePump - 廣播不阻塞，慢客戶端只影響自己
//   ✅ Ping/Pong 心跳 - 檢測死連接，逾時後主動註銷（玩家離開遊戲）

// connKind 連接用途
type connKind int

const (
	connGame connKind = iota
	connLobby
)

// WebSocketHub WebSocket 入口
//
// 連接註冊表由 Manager 持有（遊戲連接在各自的遊戲中，大廳連接在大廳集合中），
// Hub 只負責升級連接、啟動讀寫 goroutine、把客戶端訊息轉給 Manager。
type WebSocketHub struct {
	manager  *Manager
	logger   *slog.Logger
	cfg      WebSocketConfig
	upgrader websocket.Upgrader
}

// Connection 單一 WebSocket 連接
type Connection struct {
	ID     string // 遊戲連接為 playerID，大廳連接為 clientID
	GameID string // 大廳連接為空
	kind   connKind

	conn *websocket.Conn
	send chan []byte
	hub  *WebSocketHub

	mu     sync.Mutex
	closed bool
}

// NewWebSocketHub 創建 WebSocket Hub
func NewWebSocketHub(manager *Manager, cfg WebSocketConfig, logger *slog.Logger) *WebSocketHub {
	return &WebSocketHub{
		manager: manager,
		logger:  logger,
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 在生產環境應該檢查來源
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// ServeGameWS 處理遊戲連接：GET /ws/games/{game_id}?player_id=
func (hub *WebSocketHub) ServeGameWS(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("game_id")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
		return
	}
	playerID := r.URL.Query().Get("player_id")
	if playerID == "" {
		http.Error(w, "missing player id", http.StatusBadRequest)
		return
	}

	// 升級前先驗證，讓客戶端拿到明確的 HTTP 狀態碼
	snap, err := hub.manager.GetGame(gameID)
	if err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	if !hasPlayer(snap, playerID) {
		http.Error(w, "player not in game", http.StatusForbidden)
		return
	}

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := hub.newConnection(ws, connGame, playerID, gameID)

	// writePump 先啟動，註冊時送出的目前狀態才有人寫出
	go c.writePump()

	if err := hub.manager.RegisterConnection(gameID, playerID, c); err != nil {
		// 玩家可能在驗證後、註冊前離開
		hub.logger.Warn("註冊遊戲連接失敗",
			"game_id", gameID,
			"player_id", playerID,
			"error", err)
		c.Close()
		return
	}

	go c.readPump()

	hub.logger.Info("WebSocket 連接建立",
		"game_id", gameID,
		"player_id", playerID)
}

// ServeLobbyWS 處理大廳連接：GET /ws/lobby?client_id=
//
// 沒有提供 client_id 時由伺服器分配。
func (hub *WebSocketHub) ServeLobbyWS(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = "lobby-" + uuid.NewString()
	}

	ws, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	c := hub.newConnection(ws, connLobby, clientID, "")
	go c.writePump()
	hub.manager.RegisterLobbyObserver(clientID, c)
	go c.readPump()

	hub.logger.Info("大廳 WebSocket 連接建立", "client_id", clientID)
}

func (hub *WebSocketHub) newConnection(ws *websocket.Conn, kind connKind, id, gameID string) *Connection {
	return &Connection{
		ID:     id,
		GameID: gameID,
		kind:   kind,
		conn:   ws,
		send:   make(chan []byte, hub.cfg.SendBuffer),
		hub:    hub,
	}
}

func hasPlayer(snap game.Snapshot, playerID string) bool {
	for _, p := range snap.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// Send 非阻塞地放入發送佇列（實作 Observer）
//
// 連接已關閉或緩衝區已滿時返回 false，由 Manager 移除此連接。
func (c *Connection) Send(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.hub.logger.Warn("連接緩衝區滿",
			"game_id", c.GameID,
			"id", c.ID)
		return false
	}
}

// Close 關閉發送佇列，writePump 送出關閉訊息後結束連接（實作 Observer）
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// unregister 讀取端結束時從 Manager 註銷
func (c *Connection) unregister() {
	switch c.kind {
	case connGame:
		c.hub.manager.UnregisterConnection(c.GameID, c.ID, c)
	case connLobby:
		c.hub.manager.UnregisterLobbyObserver(c.ID, c)
	}
}

// readPump 讀取客戶端消息
//
// 心跳（讀取端）：PongWait 內沒有收到任何消息（包括 Pong）就視為死連接。
// 預設 writePump 每 54 秒 Ping，讀取端 60 秒逾時，留 6 秒網絡余量。
// 結束時註銷連接：遊戲連接的玩家會離開遊戲。
func (c *Connection) readPump() {
	defer func() {
		c.unregister()
		c.Close()
		c.conn.Close()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(cfg.MaxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
		c.hub.logger.Error("設置讀取期限失敗", "error", err)
	}

	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(cfg.PongWait)); err != nil {
			c.hub.logger.Error("設置讀取期限失敗", "error", err)
		}
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"game_id", c.GameID,
					"id", c.ID)
			}
			return
		}

		if messageType != websocket.TextMessage {
			continue
		}
		if c.kind == connLobby {
			c.hub.logger.Debug("忽略大廳客戶端消息", "client_id", c.ID)
			continue
		}
		c.handleMessage(message)
	}
}

// writePump 寫入消息到客戶端
//
// 心跳（發送端）：每 PingInterval 發送 Ping，客戶端自動回覆 Pong。
// send 被關閉時送出 CloseNormalClosure 後結束。
func (c *Connection) writePump() {
	cfg := c.hub.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if !ok {
				// 嘗試發送關閉消息，忽略錯誤（連接可能已關閉）
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteWait)); err != nil {
				c.hub.logger.Error("設置寫入期限失敗", "error", err)
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 把遊戲客戶端消息轉給 Manager
//
// Manager 的錯誤已經以 ERROR 訊息回給玩家，這裡只記錄。
func (c *Connection) handleMessage(raw []byte) {
	msg, err := game.ParseClientMessage(raw)
	if err != nil {
		c.hub.logger.Warn("解析客戶端消息失敗",
			"error", err,
			"game_id", c.GameID,
			"player_id", c.ID)
		c.reply(game.ErrorMessage{Message: err.Error()})
		return
	}

	m := c.hub.manager
	switch msg := msg.(type) {
	case game.PlayCardMessage:
		err = m.PlayCard(c.GameID, c.ID, msg.CardValue)

	case game.ChangeTopicMessage:
		m.ChangeTopic(c.GameID, c.ID, msg.Topic)
		// 不論成功與否都回覆目前狀態給發送者
		if snap, getErr := m.GetGame(c.GameID); getErr == nil {
			c.reply(game.GameStateUpdate{Payload: snap})
		}

	case game.StartGameMessage:
		err = m.StartGame(c.GameID, c.ID)

	case game.NextRoundMessage:
		err = m.TriggerNextRound(c.GameID, c.ID)

	case game.GuessTopicMessage:
		c.reply(game.ErrorMessage{Message: "GUESS_TOPIC is not supported yet"})
	}

	if err != nil {
		c.hub.logger.Debug("客戶端操作失敗",
			"type", msg.Type(),
			"game_id", c.GameID,
			"player_id", c.ID,
			"code", apperrors.CodeOf(err))
	}
}

// reply 只回覆給此連接
func (c *Connection) reply(msg game.ServerMessage) {
	data, err := game.Encode(msg)
	if err != nil {
		c.hub.logger.Error("序列化消息失敗", "error", err)
		return
	}
	c.Send(data)
}
