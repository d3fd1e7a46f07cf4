// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/pensinova/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// userIDSinkKey はロギングミドルウェアがユーザーIDを受け取るためのキー。
var userIDSinkKey = contextKey("user_id_sink")

// SessionRestorer はセッショントークンからユーザーを復元する。
// auth.SessionManagerの部分集合として定義する。
type SessionRestorer interface {
	Restore(ctx context.Context, token string) *model.User
}

// NewSessionMiddleware はセッションCookieからユーザーを復元し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未認証のリクエストも拒否せず次のハンドラーに渡す。
func NewSessionMiddleware(restorer SessionRestorer, cookieName string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			user := restorer.Restore(r.Context(), cookie.Value)
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// RequireAuthenticated は未認証のリクエストをloginPathへリダイレクトするミドルウェアを返す。
func RequireAuthenticated(loginPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsAuthenticated(r) {
				http.Redirect(w, r, loginPath, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RedirectAuthenticated は認証済みのリクエストをtargetへリダイレクトするミドルウェアを返す。
// ログイン画面やトップページで再ログインのループを防ぐ。
func RedirectAuthenticated(target string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsAuthenticated(r) {
				http.Redirect(w, r, target, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// IsAuthenticated はリクエストが認証済みかを返す。
func IsAuthenticated(r *http.Request) bool {
	return UserFromContext(r.Context()) != nil
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。未認証の場合はnil。
func UserFromContext(ctx context.Context) *model.User {
	user, _ := ctx.Value(userContextKey).(*model.User)
	return user
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	user := UserFromContext(ctx)
	if user == nil || user.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// 外側のロギングミドルウェアにもユーザーIDを通知する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	if user != nil {
		ReportUserID(ctx, user.ID)
	}
	return context.WithValue(ctx, userContextKey, user)
}

// ReportUserID はロギングミドルウェアにユーザーIDを通知する。
// ログイン直後のハンドラーからも呼び出す。
func ReportUserID(ctx context.Context, userID string) {
	if sink, ok := ctx.Value(userIDSinkKey).(*string); ok {
		*sink = userID
	}
}

func withUserIDSink(ctx context.Context, sink *string) context.Context {
	return context.WithValue(ctx, userIDSinkKey, sink)
}
