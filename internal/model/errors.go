// Package model はドメインモデルを定義する。
package model

import "fmt"

// SyncError は同期レイヤーの統一エラーフォーマットを表す。
// UIに表示する原因カテゴリを含み、ラップした下位エラーを保持する。
type SyncError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: transport, decode, validation, auth
	Err      error  // 下位エラー（存在する場合）
}

// Error はerrorインターフェースを実装する。
func (e *SyncError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap はラップした下位エラーを返す。
func (e *SyncError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeTransport         = "TRANSPORT_FAILED"
	ErrCodeDecode            = "DECODE_FAILED"
	ErrCodeNotSignedIn       = "NOT_SIGNED_IN"
	ErrCodeInvalidParent     = "INVALID_PARENT_COMMENT"
	ErrCodeEmptyContent      = "EMPTY_CONTENT"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeUnexpectedStatus  = "UNEXPECTED_STATUS"
)

// ErrNotSignedIn は未ログイン状態で認証必須の操作を呼んだ場合のエラー。
// ゲストはお気に入り登録とコメント投稿ができない。
var ErrNotSignedIn = &SyncError{
	Code:     ErrCodeNotSignedIn,
	Message:  "ログインしていないためこの操作は実行できません。",
	Category: "auth",
}

// NewTransportError は通信失敗エラーを生成する。
func NewTransportError(op string, err error) *SyncError {
	return &SyncError{
		Code:     ErrCodeTransport,
		Message:  fmt.Sprintf("%s の通信に失敗しました", op),
		Category: "transport",
		Err:      err,
	}
}

// NewDecodeError はレスポンス解析失敗エラーを生成する。
func NewDecodeError(op string, err error) *SyncError {
	return &SyncError{
		Code:     ErrCodeDecode,
		Message:  fmt.Sprintf("%s のレスポンスの解析に失敗しました", op),
		Category: "decode",
		Err:      err,
	}
}

// NewUnexpectedStatusError はAPIが想定外のHTTPステータスを返した場合のエラーを生成する。
func NewUnexpectedStatusError(op string, statusCode int) *SyncError {
	return &SyncError{
		Code:     ErrCodeUnexpectedStatus,
		Message:  fmt.Sprintf("%s がステータス %d を返しました", op, statusCode),
		Category: "transport",
	}
}

// NewInvalidParentError は返信先が不正な場合のエラーを生成する。
// 返信先はトップレベルコメントでなければならない（2階層制約）。
func NewInvalidParentError(parentID string) *SyncError {
	return &SyncError{
		Code:     ErrCodeInvalidParent,
		Message:  fmt.Sprintf("返信先コメントが不正です: %s", parentID),
		Category: "validation",
	}
}

// NewEmptyContentError はコメント本文が空の場合のエラーを生成する。
func NewEmptyContentError() *SyncError {
	return &SyncError{
		Code:     ErrCodeEmptyContent,
		Message:  "コメント本文が空です。",
		Category: "validation",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError(userID int) *SyncError {
	return &SyncError{
		Code:     ErrCodeUserNotFound,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %d", userID),
		Category: "validation",
	}
}
