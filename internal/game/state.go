package game

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	apperrors "github.com/koopa0/system-design/14-ito-game/pkg/errors"
)

// RoundState 遊戲階段
//
// 有限狀態機：
//
//	Lobby → Playing → RoundEnd → Playing → ... → GameEnd
//	                     ↓
//	                  GameEnd
//
// 轉換規則：
//   - Lobby → Playing：Start()，至少 2 名玩家
//   - Playing → RoundEnd：出牌錯誤，或所有人手牌出完
//   - RoundEnd → Playing：StartNewRound()，由外部控制是否允許
//   - 任何狀態 → GameEnd：生命歸零、第 3 回合成功完成、或發牌失敗
//
// GameEnd 為終止狀態。
type RoundState string

const (
	StateLobby    RoundState = "Lobby"
	StatePlaying  RoundState = "Playing"
	StateRoundEnd RoundState = "RoundEnd"
	StateGameEnd  RoundState = "GameEnd"
)

const (
	// MinPlayers 開始遊戲的最少人數
	MinPlayers = 2
	// InitialTeamLives 每場遊戲開始時的團隊生命
	InitialTeamLives = 2
	// MaxRounds 每場遊戲的回合數
	MaxRounds = 3
	// DefaultMaxPlayers 未指定時的房間人數上限
	DefaultMaxPlayers = 4
	// MaxPlayersLimit 第 3 回合每人 3 張牌加主題牌不能超過牌堆大小
	MaxPlayersLimit = (DeckSize - 1) / MaxRounds
	// MaxTopicLength 房間主題的最大字數
	MaxTopicLength = 100
)

// Outcome 遊戲結果
const (
	OutcomeWon  = "won"
	OutcomeLost = "lost"
)

// CardsPerPlayer 返回指定回合每人發幾張牌，超出回合範圍返回 0
func CardsPerPlayer(round int) int {
	switch round {
	case 1:
		return 1
	case 2:
		return 2
	case 3:
		return 3
	default:
		return 0
	}
}

// PlayResult 出牌結果
//
// Success=false 且 LivesLost=1 代表違反遊戲規則，這是正常的遊戲結果而不是錯誤。
type PlayResult struct {
	Success   bool
	LivesLost int
	Message   string

	// 觸發隱藏牌規則時，第一個被找到的持有者與牌值
	HiddenCardOwner string
	HiddenCard      CardValue
}

// State 單一遊戲房間的狀態機
//
// State 不是併發安全的：同一個遊戲的所有操作必須由呼叫者序列化
// （Manager 以每個遊戲一把鎖涵蓋 驗證 → 修改 → 廣播）。
type State struct {
	ID         string
	Name       string
	HostID     string
	MaxPlayers int
	Topic      string

	Players []*Player

	Deck                    []CardValue
	DiscardPile             []CardValue
	CurrentRound            int
	CardsPerPlayerThisRound int
	TopicCard               *CardValue
	LastPlayedCard          CardValue
	TeamLivesRemaining      int
	RoundState              RoundState

	// Abandoned 最後一名玩家離開時設定，與 RoundState 無關
	Abandoned bool

	shuffle ShuffleFunc
}

// Option 設定 State
type Option func(*State)

// WithShuffle 指定洗牌方式
func WithShuffle(fn ShuffleFunc) Option {
	return func(s *State) {
		if fn != nil {
			s.shuffle = fn
		}
	}
}

// NewState 創建遊戲狀態
func NewState(id, name, hostID string, maxPlayers int, opts ...Option) *State {
	if maxPlayers <= 0 {
		maxPlayers = DefaultMaxPlayers
	}
	s := &State{
		ID:                 id,
		Name:               name,
		HostID:             hostID,
		MaxPlayers:         maxPlayers,
		Players:            []*Player{},
		Deck:               []CardValue{},
		DiscardPile:        []CardValue{},
		TeamLivesRemaining: InitialTeamLives,
		RoundState:         StateLobby,
		shuffle:            FisherYates,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Player 依 ID 查找玩家
func (s *State) Player(id string) (*Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// IsFull 房間是否已滿
func (s *State) IsFull() bool {
	return len(s.Players) >= s.MaxPlayers
}

// IsHost 是否為房主
func (s *State) IsHost(playerID string) bool {
	return s.HostID == playerID
}

// AddPlayer 加入玩家
func (s *State) AddPlayer(p *Player) error {
	if s.IsFull() {
		return apperrors.ErrGameFull
	}
	if _, exists := s.Player(p.ID); exists {
		return apperrors.ErrPlayerExists
	}
	s.Players = append(s.Players, p)
	return nil
}

// RemovePlayer 移除玩家，返回是否存在
//
// 房主離開時由列表中第一位玩家接任；最後一名玩家離開時設定 Abandoned。
// 回合進行中若剩下的玩家手牌都已出完，回合隨即結束。
func (s *State) RemovePlayer(playerID string) bool {
	idx := slices.IndexFunc(s.Players, func(p *Player) bool { return p.ID == playerID })
	if idx < 0 {
		return false
	}
	s.Players = slices.Delete(s.Players, idx, idx+1)

	if len(s.Players) == 0 {
		s.Abandoned = true
		return true
	}
	if s.HostID == playerID {
		s.HostID = s.Players[0].ID
	}
	// 離開的玩家帶走了最後幾張未出的牌
	if s.RoundState == StatePlaying && s.AllHandsEmpty() {
		s.EndRound()
	}
	return true
}

// ChangeTopic 修改房間主題，只允許在 Lobby
func (s *State) ChangeTopic(topic string) error {
	if s.RoundState != StateLobby {
		return apperrors.ErrNotInLobby
	}
	topic = strings.TrimSpace(topic)
	if topic == "" || utf8.RuneCountInString(topic) > MaxTopicLength {
		return apperrors.ErrInvalidInput.WithDetails(fmt.Sprintf("topic must be 1-%d characters", MaxTopicLength))
	}
	s.Topic = topic
	return nil
}

// Start 開始遊戲並進入第 1 回合
//
// 人數不足時不修改任何狀態。
func (s *State) Start() error {
	if s.RoundState != StateLobby {
		return apperrors.ErrNotInLobby
	}
	if len(s.Players) < MinPlayers {
		return apperrors.ErrInsufficientPlayers
	}
	s.CurrentRound = 0
	s.TeamLivesRemaining = InitialTeamLives
	s.RoundState = StatePlaying
	return s.StartNewRound()
}

// StartNewRound 開始下一回合
//
// 步驟：
//  1. 回合數 +1，超過 MaxRounds 直接進入 GameEnd，不發牌
//  2. 新的 1..100 牌堆並洗牌，清空棄牌堆，LastPlayedCard 歸零
//  3. 重置每位玩家
//  4. 依玩家順序從牌堆最前面發牌，手牌遞增排序
//  5. 抽主題牌；牌堆耗盡時 TopicCard=nil 並進入 GameEnd（返回 DealingFault）
//  6. 進入 Playing
func (s *State) StartNewRound() error {
	s.CurrentRound++
	cards := CardsPerPlayer(s.CurrentRound)
	if cards == 0 {
		s.RoundState = StateGameEnd
		return nil
	}
	s.CardsPerPlayerThisRound = cards

	deck := NewDeck()
	s.shuffle(deck)
	s.DiscardPile = []CardValue{}
	s.LastPlayedCard = 0

	for _, p := range s.Players {
		p.ResetForNewRound()
	}

	for _, p := range s.Players {
		for range cards {
			card, rest, ok := draw(deck)
			if !ok {
				break
			}
			deck = rest
			p.AddCard(card)
		}
		slices.Sort(p.Hand)
	}

	topic, rest, ok := draw(deck)
	s.Deck = rest
	if !ok {
		s.TopicCard = nil
		s.RoundState = StateGameEnd
		return apperrors.ErrDealingFault.WithDetails(fmt.Sprintf("round %d, %d players", s.CurrentRound, len(s.Players)))
	}
	s.TopicCard = &topic
	s.RoundState = StatePlaying
	return nil
}

// PlayCard 玩家出牌
//
// 呼叫錯誤（玩家不存在、不在 Playing、手上沒有這張牌）返回 error，不扣生命也不結束回合。
// 違反規則時扣 1 條生命並立即結束回合：
//   - 順序規則：cardValue ≤ LastPlayedCard
//   - 隱藏牌規則：其他玩家手上有 LastPlayedCard < c < cardValue 的牌
//
// 隱藏牌依玩家列表順序掃描，只回報第一個找到的持有者。
func (s *State) PlayCard(playerID string, cardValue CardValue) (PlayResult, error) {
	player, ok := s.Player(playerID)
	if !ok {
		return PlayResult{}, apperrors.ErrPlayerNotFound
	}
	if s.RoundState != StatePlaying {
		return PlayResult{}, apperrors.ErrNotPlaying
	}
	if !player.HasCard(cardValue) {
		return PlayResult{}, apperrors.ErrCardNotInHand.WithDetails(fmt.Sprintf("card %d", cardValue))
	}

	if cardValue <= s.LastPlayedCard {
		msg := fmt.Sprintf("Player %s played %d, which is not higher than %d. Team loses 1 life!",
			player.Name, cardValue, s.LastPlayedCard)
		s.loseLife()
		return PlayResult{Success: false, LivesLost: 1, Message: msg}, nil
	}

	if owner, hidden, found := s.findHiddenLowerCard(playerID, cardValue); found {
		msg := fmt.Sprintf("Player %s played %d, but %s had %d (a valid lower card). Team loses 1 life!",
			player.Name, cardValue, owner.Name, hidden)
		s.loseLife()
		return PlayResult{
			Success:         false,
			LivesLost:       1,
			Message:         msg,
			HiddenCardOwner: owner.ID,
			HiddenCard:      hidden,
		}, nil
	}

	player.RemoveCard(cardValue)
	s.DiscardPile = append(s.DiscardPile, cardValue)
	s.LastPlayedCard = cardValue
	player.HasPlayedThisRound = true

	if s.AllHandsEmpty() {
		s.EndRound()
	}

	return PlayResult{
		Success:   true,
		LivesLost: 0,
		Message:   fmt.Sprintf("Player %s successfully played %d.", player.Name, cardValue),
	}, nil
}

// findHiddenLowerCard 掃描其他玩家，找出介於 LastPlayedCard 與 cardValue 之間的牌
func (s *State) findHiddenLowerCard(playerID string, cardValue CardValue) (*Player, CardValue, bool) {
	for _, other := range s.Players {
		if other.ID == playerID {
			continue
		}
		for _, c := range other.Hand {
			if c > s.LastPlayedCard && c < cardValue {
				return other, c, true
			}
		}
	}
	return nil, 0, false
}

func (s *State) loseLife() {
	if s.TeamLivesRemaining > 0 {
		s.TeamLivesRemaining--
	}
	s.EndRound()
}

// EndRound 結束回合並檢查遊戲是否結束
func (s *State) EndRound() {
	s.RoundState = StateRoundEnd

	switch {
	case s.TeamLivesRemaining <= 0:
		s.RoundState = StateGameEnd
	case s.CurrentRound >= MaxRounds && s.AllHandsEmpty():
		s.RoundState = StateGameEnd
	}
}

// CanStartNextRound 是否允許從 RoundEnd 進入下一回合
func (s *State) CanStartNextRound() bool {
	return s.RoundState == StateRoundEnd && s.TeamLivesRemaining > 0 && s.CurrentRound < MaxRounds
}

// ForceGameEnd 在 RoundEnd 但生命或回合已用完時強制結束
func (s *State) ForceGameEnd() {
	s.RoundState = StateGameEnd
}

// AllHandsEmpty 是否所有玩家都沒有手牌
func (s *State) AllHandsEmpty() bool {
	for _, p := range s.Players {
		if len(p.Hand) > 0 {
			return false
		}
	}
	return true
}

// Outcome 遊戲結束時返回 won / lost，未結束返回空字串
func (s *State) Outcome() string {
	if s.RoundState != StateGameEnd {
		return ""
	}
	if s.TeamLivesRemaining <= 0 || s.TopicCard == nil {
		return OutcomeLost
	}
	return OutcomeWon
}

// Snapshot 返回可在鎖外使用的深拷貝
func (s *State) Snapshot() Snapshot {
	players := make([]Player, len(s.Players))
	for i, p := range s.Players {
		players[i] = p.clone()
	}

	var topicCard *CardValue
	if s.TopicCard != nil {
		v := *s.TopicCard
		topicCard = &v
	}

	return Snapshot{
		ID:                      s.ID,
		Name:                    s.Name,
		HostID:                  s.HostID,
		MaxPlayers:              s.MaxPlayers,
		Topic:                   s.Topic,
		Players:                 players,
		Deck:                    slices.Clone(s.Deck),
		DiscardPile:             slices.Clone(s.DiscardPile),
		CurrentRound:            s.CurrentRound,
		CardsPerPlayerThisRound: s.CardsPerPlayerThisRound,
		TopicCard:               topicCard,
		LastPlayedCard:          s.LastPlayedCard,
		TeamLivesRemaining:      s.TeamLivesRemaining,
		RoundState:              s.RoundState,
		Abandoned:               s.Abandoned,
	}
}

// Snapshot 遊戲狀態的時間點副本（GAME_STATE_UPDATE 的 payload）
type Snapshot struct {
	ID                      string      `json:"id"`
	Name                    string      `json:"name"`
	HostID                  string      `json:"hostId"`
	MaxPlayers              int         `json:"maxPlayers"`
	Topic                   string      `json:"topic"`
	Players                 []Player    `json:"players"`
	Deck                    []CardValue `json:"deck"`
	DiscardPile             []CardValue `json:"discardPile"`
	CurrentRound            int         `json:"currentRound"`
	CardsPerPlayerThisRound int         `json:"cardsPerPlayerThisRound"`
	TopicCard               *CardValue  `json:"topicCard"`
	LastPlayedCard          CardValue   `json:"lastPlayedCard"`
	TeamLivesRemaining      int         `json:"teamLivesRemaining"`
	RoundState              RoundState  `json:"roundState"`
	Abandoned               bool        `json:"abandoned"`
}

// Joinable 是否出現在大廳可加入列表
func (s Snapshot) Joinable() bool {
	return s.RoundState == StateLobby && len(s.Players) < s.MaxPlayers
}
