package internal

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/koopa0/system-design/14-ito-game/pkg/errors"
)

// TotalsReader 累計統計來源（Redis）
type TotalsReader interface {
	Totals(ctx context.Context) (map[string]int64, error)
}

// Handler HTTP 請求處理器
type Handler struct {
	manager *Manager
	totals  TotalsReader
	logger  *slog.Logger
}

// HandlerOption 設定 Handler
type HandlerOption func(*Handler)

// WithTotals 在 /stats 中附上累計統計
func WithTotals(r TotalsReader) HandlerOption {
	return func(h *Handler) {
		h.totals = r
	}
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *Manager, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{
		manager: manager,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	// 中間件鏈
	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	// 遊戲 API
	mux.HandleFunc("POST /api/v1/games", wrap(h.createGame))
	mux.HandleFunc("GET /api/v1/games", wrap(h.listGames))
	mux.HandleFunc("GET /api/v1/games/{game_id}", wrap(h.getGame))
	mux.HandleFunc("DELETE /api/v1/games/{game_id}", wrap(h.deleteGame))
	mux.HandleFunc("POST /api/v1/games/{game_id}/join", wrap(h.joinGame))
	mux.HandleFunc("POST /api/v1/games/{game_id}/leave", wrap(h.leaveGame))
	mux.HandleFunc("POST /api/v1/games/{game_id}/start", wrap(h.startGame))
	mux.HandleFunc("POST /api/v1/games/{game_id}/next-round", wrap(h.nextRound))
	mux.HandleFunc("POST /api/v1/games/{game_id}/topic", wrap(h.changeTopic))

	// 健康檢查
	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	return mux
}

// 請求結構
type createGameRequest struct {
	HostID     string `json:"hostId"`
	HostName   string `json:"hostName"`
	GameName   string `json:"gameName"`
	MaxPlayers int    `json:"maxPlayers"`
}

type joinGameRequest struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type leaveGameRequest struct {
	PlayerID string `json:"playerId"`
}

type hostRequest struct {
	RequesterID string `json:"requesterId"`
}

type topicRequest struct {
	RequesterID string `json:"requesterId"`
	Topic       string `json:"topic"`
}

// createGame 創建遊戲
func (h *Handler) createGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if !h.decode(w, r, &req) {
		return
	}

	snap, err := h.manager.CreateGame(req.HostID, req.HostName, req.GameName, req.MaxPlayers)
	if err != nil {
		h.appErrorResponse(w, err)
		return
	}

	h.jsonResponse(w, snap, http.StatusCreated)
}

// listGames 列出可加入的遊戲
func (h *Handler) listGames(w http.ResponseWriter, r *http.Request) {
	games := h.manager.ListJoinable()
	h.jsonResponse(w, map[string]any{
		"games": games,
		"total": len(games),
	}, http.StatusOK)
}

// getGame 獲取遊戲狀態
func (h *Handler) getGame(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.GetGame(r.PathValue("game_id"))
	if err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.jsonResponse(w, snap, http.StatusOK)
}

// deleteGame 房主刪除遊戲
func (h *Handler) deleteGame(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.manager.DeleteGame(r.PathValue("game_id"), req.RequesterID); err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.jsonResponse(w, map[string]any{"message": "game deleted"}, http.StatusOK)
}

// joinGame 加入遊戲
func (h *Handler) joinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameRequest
	if !h.decode(w, r, &req) {
		return
	}

	snap, err := h.manager.JoinGame(r.PathValue("game_id"), req.PlayerID, req.PlayerName)
	if err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.jsonResponse(w, snap, http.StatusOK)
}

// leaveGame 離開遊戲
func (h *Handler) leaveGame(w http.ResponseWriter, r *http.Request) {
	var req leaveGameRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.PlayerID == "" {
		h.errorResponse(w, "playerId is required", apperrors.ErrCodeInvalidInput, http.StatusBadRequest)
		return
	}

	if err := h.manager.LeaveGame(r.PathValue("game_id"), req.PlayerID); err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.jsonResponse(w, map[string]any{"message": "left game"}, http.StatusOK)
}

// startGame 房主開始遊戲
func (h *Handler) startGame(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if !h.decode(w, r, &req) {
		return
	}

	gameID := r.PathValue("game_id")
	if err := h.manager.StartGame(gameID, req.RequesterID); err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.stateResponse(w, gameID)
}

// nextRound 房主開始下一回合
func (h *Handler) nextRound(w http.ResponseWriter, r *http.Request) {
	var req hostRequest
	if !h.decode(w, r, &req) {
		return
	}

	gameID := r.PathValue("game_id")
	if err := h.manager.TriggerNextRound(gameID, req.RequesterID); err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.stateResponse(w, gameID)
}

// changeTopic 房主修改主題
func (h *Handler) changeTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if !h.decode(w, r, &req) {
		return
	}

	gameID := r.PathValue("game_id")
	if err := h.manager.UpdateTopic(gameID, req.RequesterID, req.Topic); err != nil {
		h.appErrorResponse(w, err)
		return
	}
	h.stateResponse(w, gameID)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}, http.StatusOK)
}

// stats 統計資訊
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.manager.Stats()

	if h.totals != nil {
		totals, err := h.totals.Totals(r.Context())
		if err != nil {
			h.logger.Warn("讀取累計統計失敗", "error", err)
		} else {
			stats["totals"] = totals
		}
	}

	h.jsonResponse(w, stats, http.StatusOK)
}

// stateResponse 操作成功後返回最新狀態；遊戲剛好被刪除時只返回成功
func (h *Handler) stateResponse(w http.ResponseWriter, gameID string) {
	snap, err := h.manager.GetGame(gameID)
	if err != nil {
		h.jsonResponse(w, map[string]any{"message": "ok"}, http.StatusOK)
		return
	}
	h.jsonResponse(w, snap, http.StatusOK)
}

// decode 解析 JSON 請求體，失敗時直接回覆 400
//
// DELETE 請求可以沒有請求體。
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		h.errorResponse(w, "invalid request body", apperrors.ErrCodeInvalidInput, http.StatusBadRequest)
		return false
	}
	return true
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// errorResponse 返回錯誤響應
func (h *Handler) errorResponse(w http.ResponseWriter, message, code string, status int) {
	h.jsonResponse(w, map[string]any{
		"error": message,
		"code":  code,
	}, status)
}

// appErrorResponse 依錯誤分類決定狀態碼
func (h *Handler) appErrorResponse(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := statusForCode(code)
	if status == http.StatusInternalServerError {
		h.logger.Error("處理請求失敗", "error", err)
	}
	h.errorResponse(w, apperrors.UserMessage(err), code, status)
}

func statusForCode(code string) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeInvalidState, apperrors.ErrCodeCapacity:
		return http.StatusConflict
	case apperrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 包裝 ResponseWriter 以獲取狀態碼
		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.errorResponse(w, "internal server error", apperrors.ErrCodeInternal, http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
