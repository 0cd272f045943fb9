package game

import (
	"encoding/json"
	"fmt"
)

// MessageType WebSocket 訊息類型
type MessageType string

// Client → Server
const (
	MsgPlayCard    MessageType = "PLAY_CARD"
	MsgChangeTopic MessageType = "CHANGE_TOPIC"
	MsgStartGame   MessageType = "START_GAME"
	MsgNextRound   MessageType = "NEXT_ROUND"
	MsgGuessTopic  MessageType = "GUESS_TOPIC" // 保留，尚未支援
)

// Server → Client
const (
	MsgGameStateUpdate      MessageType = "GAME_STATE_UPDATE"
	MsgPlayerJoined         MessageType = "PLAYER_JOINED"
	MsgPlayerLeft           MessageType = "PLAYER_LEFT"
	MsgGameCreated          MessageType = "GAME_CREATED"
	MsgGameDeleted          MessageType = "GAME_DELETED"
	MsgCardPlayedValidation MessageType = "CARD_PLAYED_VALIDATION"
	MsgLobbyGameListUpdate  MessageType = "LOBBY_GAME_LIST_UPDATE"
	MsgError                MessageType = "ERROR"
)

// ---------------------------------------------------------------------------
// Client → Server
// ---------------------------------------------------------------------------

// ClientMessage 客戶端訊息（封閉集合）
type ClientMessage interface {
	Type() MessageType
	isClientMessage()
}

// PlayCardMessage 出牌
type PlayCardMessage struct {
	CardValue CardValue `json:"cardValue"`
}

// ChangeTopicMessage 修改主題
type ChangeTopicMessage struct {
	Topic string `json:"topic"`
}

// StartGameMessage 房主開始遊戲
type StartGameMessage struct{}

// NextRoundMessage 房主開始下一回合
type NextRoundMessage struct{}

// GuessTopicMessage 猜主題（保留）
type GuessTopicMessage struct {
	Guess string `json:"guess"`
}

func (PlayCardMessage) Type() MessageType    { return MsgPlayCard }
func (ChangeTopicMessage) Type() MessageType { return MsgChangeTopic }
func (StartGameMessage) Type() MessageType   { return MsgStartGame }
func (NextRoundMessage) Type() MessageType   { return MsgNextRound }
func (GuessTopicMessage) Type() MessageType  { return MsgGuessTopic }

func (PlayCardMessage) isClientMessage()    {}
func (ChangeTopicMessage) isClientMessage() {}
func (StartGameMessage) isClientMessage()   {}
func (NextRoundMessage) isClientMessage()   {}
func (GuessTopicMessage) isClientMessage()  {}

// ParseClientMessage 依 type 欄位解析客戶端訊息
func ParseClientMessage(data []byte) (ClientMessage, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("invalid message format: %w", err)
	}

	var target ClientMessage
	switch envelope.Type {
	case MsgPlayCard:
		var m PlayCardMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", envelope.Type, err)
		}
		target = m
	case MsgChangeTopic:
		var m ChangeTopicMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", envelope.Type, err)
		}
		target = m
	case MsgStartGame:
		target = StartGameMessage{}
	case MsgNextRound:
		target = NextRoundMessage{}
	case MsgGuessTopic:
		var m GuessTopicMessage
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("invalid %s payload: %w", envelope.Type, err)
		}
		target = m
	default:
		return nil, fmt.Errorf("unknown message type: %s", envelope.Type)
	}
	return target, nil
}

// ---------------------------------------------------------------------------
// Server → Client
// ---------------------------------------------------------------------------

// ServerMessage 伺服器訊息（封閉集合），序列化時帶有 type 欄位
type ServerMessage interface {
	Type() MessageType
	isServerMessage()
}

// GameStateUpdate 完整遊戲狀態
type GameStateUpdate struct {
	Payload Snapshot `json:"payload"`
}

// PlayerJoined 大廳通知：玩家加入
type PlayerJoined struct {
	GameID string `json:"gameId"`
	Player Player `json:"player"`
}

// PlayerLeft 大廳通知：玩家離開
type PlayerLeft struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// GameCreated 大廳通知：新遊戲
type GameCreated struct {
	Game Snapshot `json:"game"`
}

// GameDeleted 大廳通知：遊戲已刪除
type GameDeleted struct {
	GameID string `json:"gameId"`
}

// CardPlayedValidation 出牌驗證結果
type CardPlayedValidation struct {
	PlayerID      string    `json:"playerId"`
	CardValue     CardValue `json:"cardValue"`
	IsCorrectPlay bool      `json:"isCorrectPlay"`
	LivesLost     int       `json:"livesLost"`
	Message       string    `json:"message,omitempty"`
}

// LobbyGameListUpdate 可加入的遊戲列表
type LobbyGameListUpdate struct {
	Payload []Snapshot `json:"payload"`
}

// ErrorMessage 只送給請求者的錯誤
type ErrorMessage struct {
	Message string `json:"message"`
}

func (GameStateUpdate) Type() MessageType      { return MsgGameStateUpdate }
func (PlayerJoined) Type() MessageType         { return MsgPlayerJoined }
func (PlayerLeft) Type() MessageType           { return MsgPlayerLeft }
func (GameCreated) Type() MessageType          { return MsgGameCreated }
func (GameDeleted) Type() MessageType          { return MsgGameDeleted }
func (CardPlayedValidation) Type() MessageType { return MsgCardPlayedValidation }
func (LobbyGameListUpdate) Type() MessageType  { return MsgLobbyGameListUpdate }
func (ErrorMessage) Type() MessageType         { return MsgError }

func (GameStateUpdate) isServerMessage()      {}
func (PlayerJoined) isServerMessage()         {}
func (PlayerLeft) isServerMessage()           {}
func (GameCreated) isServerMessage()          {}
func (GameDeleted) isServerMessage()          {}
func (CardPlayedValidation) isServerMessage() {}
func (LobbyGameListUpdate) isServerMessage()  {}
func (ErrorMessage) isServerMessage()         {}

// MarshalJSON 為每種訊息加上 type 欄位（扁平結構）

func (m GameStateUpdate) MarshalJSON() ([]byte, error) {
	type alias GameStateUpdate
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m PlayerJoined) MarshalJSON() ([]byte, error) {
	type alias PlayerJoined
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m PlayerLeft) MarshalJSON() ([]byte, error) {
	type alias PlayerLeft
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m GameCreated) MarshalJSON() ([]byte, error) {
	type alias GameCreated
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m GameDeleted) MarshalJSON() ([]byte, error) {
	type alias GameDeleted
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m CardPlayedValidation) MarshalJSON() ([]byte, error) {
	type alias CardPlayedValidation
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m LobbyGameListUpdate) MarshalJSON() ([]byte, error) {
	type alias LobbyGameListUpdate
	if m.Payload == nil {
		m.Payload = []Snapshot{}
	}
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

func (m ErrorMessage) MarshalJSON() ([]byte, error) {
	type alias ErrorMessage
	return json.Marshal(struct {
		Type MessageType `json:"type"`
		alias
	}{m.Type(), alias(m)})
}

// Encode 序列化伺服器訊息
func Encode(m ServerMessage) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", m.Type(), err)
	}
	return data, nil
}
