// Package errors 提供遊戲伺服器的應用程式錯誤分類
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 遊戲或玩家不存在
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeForbidden 非房主執行房主專屬操作
	ErrCodeForbidden = "FORBIDDEN"
	// ErrCodeInvalidState 當前狀態不允許此操作
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeCapacity 房間已滿
	ErrCodeCapacity = "CAPACITY"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeDealingFault 發牌時牌堆意外耗盡
	ErrCodeDealingFault = "DEALING_FAULT"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	msg := e.Message
	if e.Details != "" {
		msg = msg + " (" + e.Details + ")"
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 錯誤碼與訊息都相同才視為同一個錯誤
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 返回附帶詳細資訊的副本，預定義錯誤本身不會被修改
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	ErrGameNotFound   = New(ErrCodeNotFound, "game not found")
	ErrPlayerNotFound = New(ErrCodeNotFound, "player not found")

	ErrNotHost = New(ErrCodeForbidden, "only the host can perform this action")

	ErrNotInLobby          = New(ErrCodeInvalidState, "game is not in lobby state")
	ErrNotPlaying          = New(ErrCodeInvalidState, "game is not in playing state")
	ErrInsufficientPlayers = New(ErrCodeInvalidState, "not enough players to start the game (minimum 2 players)")
	ErrPlayerExists        = New(ErrCodeInvalidState, "player is already in the game")
	ErrNextRoundNotAllowed = New(ErrCodeInvalidState, "cannot start next round under current conditions")

	ErrGameFull = New(ErrCodeCapacity, "game is full")

	ErrCardNotInHand = New(ErrCodeInvalidInput, "you do not have this card in your hand")
	ErrInvalidInput  = New(ErrCodeInvalidInput, "invalid input")

	ErrDealingFault = New(ErrCodeDealingFault, "deck ran out before drawing the topic card")
)

// CodeOf 取得錯誤碼，非 AppError 一律視為內部錯誤
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

func hasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsForbidden 檢查是否為權限錯誤
func IsForbidden(err error) bool { return hasCode(err, ErrCodeForbidden) }

// IsInvalidState 檢查是否為狀態錯誤
func IsInvalidState(err error) bool { return hasCode(err, ErrCodeInvalidState) }

// IsCapacity 檢查是否為房間已滿錯誤
func IsCapacity(err error) bool { return hasCode(err, ErrCodeCapacity) }

// IsInvalidInput 檢查是否為無效輸入錯誤
func IsInvalidInput(err error) bool { return hasCode(err, ErrCodeInvalidInput) }

// IsDealingFault 檢查是否為發牌錯誤
func IsDealingFault(err error) bool { return hasCode(err, ErrCodeDealingFault) }

// UserMessage 返回可以直接顯示給玩家的訊息，非 AppError 不外洩內部細節
func UserMessage(err error) string {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return "internal server error"
	}
	if appErr.Details != "" {
		return appErr.Message + " (" + appErr.Details + ")"
	}
	return appErr.Message
}
