package internal

import (
	"log/slog"
)

// Observer 接收伺服器訊息的一方（遊戲連接或大廳連接）
//
// Send 不得阻塞：無法接收時（已關閉或緩衝區已滿）返回 false。
// Close 必須可以重複呼叫。
type Observer interface {
	Send(msg []byte) bool
	Close()
}

// observerSet id → Observer，由持有者的鎖保護
type observerSet map[string]Observer

// deliver 送出訊息給每個觀察者，送不出去的觀察者會被移除並關閉
//
// 返回被移除的 id。
func (s observerSet) deliver(msg []byte) []string {
	var pruned []string
	for id, obs := range s {
		if obs.Send(msg) {
			continue
		}
		delete(s, id)
		obs.Close()
		pruned = append(pruned, id)
	}
	return pruned
}

// sendTo 送給單一觀察者，失敗時同樣移除並關閉
func (s observerSet) sendTo(id string, msg []byte) bool {
	obs, ok := s[id]
	if !ok {
		return false
	}
	if obs.Send(msg) {
		return true
	}
	delete(s, id)
	obs.Close()
	return false
}

// replace 註冊新的觀察者，關閉被取代的舊觀察者
func (s observerSet) replace(id string, obs Observer) {
	if old, ok := s[id]; ok && old != obs {
		old.Close()
	}
	s[id] = obs
}

// closeAll 關閉並清空所有觀察者
func (s observerSet) closeAll() {
	for id, obs := range s {
		obs.Close()
		delete(s, id)
	}
}

func logPruned(logger *slog.Logger, scope string, ids []string) {
	for _, id := range ids {
		logger.Warn("觀察者無法接收訊息，已移除",
			"scope", scope,
			"observer_id", id)
	}
}
