package game

import "math/rand/v2"

// DeckSize 每回合使用一副 1..DeckSize 的新牌
const DeckSize = 100

// ShuffleFunc 就地洗牌
//
// 預設實作為 Fisher–Yates（rand.Shuffle）。測試可注入固定順序。
type ShuffleFunc func(deck []CardValue)

// FisherYates 均勻洗牌
func FisherYates(deck []CardValue) {
	rand.Shuffle(len(deck), func(i, j int) {
		deck[i], deck[j] = deck[j], deck[i]
	})
}

// NewDeck 產生 1..DeckSize 的有序牌堆
func NewDeck() []CardValue {
	deck := make([]CardValue, DeckSize)
	for i := range deck {
		deck[i] = i + 1
	}
	return deck
}

// StackedShuffle 返回把指定牌依序放到牌堆最前面的 ShuffleFunc，其餘牌的順序不保證。
// 發牌依玩家順序從最前面抽，接著抽出的是主題牌。
func StackedShuffle(front ...CardValue) ShuffleFunc {
	return func(deck []CardValue) {
		pos := 0
		for _, want := range front {
			for i := pos; i < len(deck); i++ {
				if deck[i] == want {
					deck[pos], deck[i] = deck[i], deck[pos]
					pos++
					break
				}
			}
		}
	}
}

// draw 從牌堆最前面抽一張
func draw(deck []CardValue) (CardValue, []CardValue, bool) {
	if len(deck) == 0 {
		return 0, deck, false
	}
	return deck[0], deck[1:], true
}
