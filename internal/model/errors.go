// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// ErrConstraintViolation はストアの一意制約違反（email、idの重複）を表す。
var ErrConstraintViolation = errors.New("constraint violation")

// ProviderExchangeError はIdPとの認可コード交換の失敗を表す。
// ネットワーク障害、無効・期限切れの認可コード、IdPのエラー応答はすべてこの型で返す。
type ProviderExchangeError struct {
	Provider string
	Err      error
}

// Error はerrorインターフェースを実装する。
func (e *ProviderExchangeError) Error() string {
	return fmt.Sprintf("provider exchange failed (%s): %v", e.Provider, e.Err)
}

// Unwrap は原因エラーを返す。
func (e *ProviderExchangeError) Unwrap() error {
	return e.Err
}

// NewProviderExchangeError はProviderExchangeErrorを生成する。
func NewProviderExchangeError(provider string, err error) *ProviderExchangeError {
	return &ProviderExchangeError{Provider: provider, Err: err}
}

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePasswordMismatch    = "PASSWORD_MISMATCH"
	ErrCodeEmailAlreadyExists  = "EMAIL_ALREADY_EXISTS"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeWrongPassword       = "WRONG_PASSWORD"
	ErrCodeProviderExchange    = "PROVIDER_EXCHANGE_FAILED"
	ErrCodeConstraintViolation = "CONSTRAINT_VIOLATION"
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeRateLimitExceeded   = "RATE_LIMIT_EXCEEDED"
)

// NewPasswordMismatchError はパスワード不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "Passwords do not match.",
		Category: "validation",
		Action:   "Enter the same password in both fields.",
	}
}

// NewEmailAlreadyExistsError はメールアドレス重複エラーを生成する。
func NewEmailAlreadyExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailAlreadyExists,
		Message:  "Email already exists.",
		Category: "validation",
		Action:   "Log in with this email or use another address.",
	}
}

// NewInvalidInputError は入力値不正エラーを生成する。
// 検証の詳細はログのみに残す。
func NewInvalidInputError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  "Invalid input.",
		Category: "validation",
		Action:   "Check the highlighted fields and try again.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found.",
		Category: "auth",
		Action:   "Check your email or sign up.",
	}
}

// NewWrongPasswordError はパスワード誤りエラーを生成する。
func NewWrongPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeWrongPassword,
		Message:  "Wrong password.",
		Category: "auth",
		Action:   "Check your password and try again.",
	}
}

// NewProviderLoginError はIdPでのログイン失敗を表すエラーを生成する。
func NewProviderLoginError() *APIError {
	return &APIError{
		Code:     ErrCodeProviderExchange,
		Message:  "Sign-in with the provider failed.",
		Category: "auth",
		Action:   "Try signing in again.",
	}
}

// NewConstraintViolationError はアカウントを作成できなかった場合のエラーを生成する。
func NewConstraintViolationError() *APIError {
	return &APIError{
		Code:     ErrCodeConstraintViolation,
		Message:  "Account could not be created.",
		Category: "auth",
		Action:   "Sign in with the account you already have.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error.",
		Category: "system",
		Action:   "Please try again later.",
	}
}

// NewForbiddenError はリクエストの出所を確認できない場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Request could not be verified.",
		Category: "auth",
		Action:   "Reload the page and submit the form again.",
	}
}
