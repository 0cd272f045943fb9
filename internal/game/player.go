package game

// CardValue 卡牌數值（1-100）
type CardValue = int

// Player 玩家資訊與手牌
//
// Player 只保存自身欄位，不做任何規則驗證；規則一律由 State 負責。
type Player struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Hand               []CardValue `json:"hand"`
	HasPlayedThisRound bool        `json:"hasPlayedCardThisRound"`
}

// NewPlayer 創建玩家
func NewPlayer(id, name string) *Player {
	return &Player{
		ID:   id,
		Name: name,
		Hand: []CardValue{},
	}
}

// AddCard 加入手牌
func (p *Player) AddCard(v CardValue) {
	p.Hand = append(p.Hand, v)
}

// RemoveCard 移除第一張符合的牌，返回是否找到
func (p *Player) RemoveCard(v CardValue) bool {
	for i, c := range p.Hand {
		if c == v {
			p.Hand = append(p.Hand[:i], p.Hand[i+1:]...)
			return true
		}
	}
	return false
}

// HasCard 檢查手牌中是否有此牌
func (p *Player) HasCard(v CardValue) bool {
	for _, c := range p.Hand {
		if c == v {
			return true
		}
	}
	return false
}

// ResetForNewRound 清空手牌與出牌狀態
func (p *Player) ResetForNewRound() {
	p.Hand = []CardValue{}
	p.HasPlayedThisRound = false
}

// clone 深拷貝（快照用）
func (p *Player) clone() Player {
	hand := make([]CardValue, len(p.Hand))
	copy(hand, p.Hand)
	return Player{
		ID:                 p.ID,
		Name:               p.Name,
		Hand:               hand,
		HasPlayedThisRound: p.HasPlayedThisRound,
	}
}
