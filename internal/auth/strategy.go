package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/pensinova/internal/model"
)

// DefaultRedirect は認証成功後の遷移先。
const DefaultRedirect = "/home"

// Reason は認証失敗の理由。
type Reason string

// 認証失敗の理由
const (
	ReasonUserNotFound           Reason = "user_not_found"
	ReasonWrongPassword          Reason = "wrong_password"
	ReasonPasswordMismatch       Reason = "password_mismatch"
	ReasonEmailAlreadyExists     Reason = "email_already_exists"
	ReasonInvalidInput           Reason = "invalid_input"
	ReasonProviderExchangeFailed Reason = "provider_exchange_failed"
	ReasonConstraintViolation    Reason = "constraint_violation"
	ReasonStoreFailure           Reason = "store_failure"
)

// Kind は失敗の分類。HTTPレスポンスの種別を決める。
type Kind int

const (
	// KindValidation は入力値の不備。400で応答する。
	KindValidation Kind = iota + 1
	// KindAuthentication は認証の失敗。ログイン画面へリダイレクトする。
	KindAuthentication
	// KindStore はストアの障害。500で応答する。
	KindStore
)

// Kind は理由に対応する分類を返す。
func (r Reason) Kind() Kind {
	switch r {
	case ReasonPasswordMismatch, ReasonEmailAlreadyExists, ReasonInvalidInput:
		return KindValidation
	case ReasonStoreFailure:
		return KindStore
	default:
		return KindAuthentication
	}
}

// APIError は利用者向けのエラー表現を返す。
func (r Reason) APIError() *model.APIError {
	switch r {
	case ReasonUserNotFound:
		return model.NewUserNotFoundError()
	case ReasonWrongPassword:
		return model.NewWrongPasswordError()
	case ReasonPasswordMismatch:
		return model.NewPasswordMismatchError()
	case ReasonEmailAlreadyExists:
		return model.NewEmailAlreadyExistsError()
	case ReasonInvalidInput:
		return model.NewInvalidInputError()
	case ReasonProviderExchangeFailed:
		return model.NewProviderLoginError()
	case ReasonConstraintViolation:
		return model.NewConstraintViolationError()
	default:
		return model.NewInternalError()
	}
}

// Failure は認証失敗を表す。Errは原因（ログ用）でnilの場合がある。
type Failure struct {
	Reason Reason
	Err    error
}

// Error はerrorインターフェースを実装する。
func (f *Failure) Error() string {
	if f.Err == nil {
		return string(f.Reason)
	}
	return fmt.Sprintf("%s: %v", f.Reason, f.Err)
}

// Unwrap は原因エラーを返す。
func (f *Failure) Unwrap() error {
	return f.Err
}

// Result は認証戦略の結果。成功時はUserとRedirect、失敗時はFailureのみが設定される。
type Result struct {
	User     *model.User
	Redirect string
	Failure  *Failure
}

// OK は成功かを返す。
func (r Result) OK() bool {
	return r.Failure == nil && r.User != nil
}

func success(user *model.User) Result {
	return Result{User: user, Redirect: DefaultRedirect}
}

func fail(reason Reason, err error) Result {
	return Result{Failure: &Failure{Reason: reason, Err: err}}
}

// Credentials は認証戦略への入力。戦略ごとに使うフィールドが異なる。
type Credentials struct {
	// ローカルログイン・サインアップ
	Email           string
	Password        string
	ConfirmPassword string
	FirstName       string
	LastName        string
	Photo           *string

	// IdPコールバックの認可コード
	Code string
}

// Strategy は認証戦略のインターフェース。
type Strategy interface {
	// Name は戦略名を返す。
	Name() string
	// Authenticate は資格情報を検証し、結果を返す。
	Authenticate(ctx context.Context, cred Credentials) Result
}

// NameSanitizer は氏名からマークアップを除去する。
type NameSanitizer interface {
	SanitizeName(name string) string
}

type noopSanitizer struct{}

func (noopSanitizer) SanitizeName(name string) string { return name }
