// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pensinova/internal/auth"
	"github.com/hitoshi/pensinova/internal/middleware"
	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/upload"
	"github.com/hitoshi/pensinova/internal/view"
)

const (
	oauthStateCookie = "oauth_state"
	flashCookie      = "auth_flash"

	flashCodeAuthFailed = "auth_failed"

	loginPath     = "/auth"
	landingPath   = "/"
	dashboardPath = auth.DefaultRedirect

	// authFailedMessage はログイン画面に表示する失敗メッセージ。原因の詳細は含めない。
	authFailedMessage = "Login failed. Please try again."
)

// Authenticator は戦略名で資格情報を検証する。
type Authenticator interface {
	Resolve(ctx context.Context, name string, cred auth.Credentials) auth.Result
}

// SessionManager はハンドラーが必要とするセッション操作。
type SessionManager interface {
	Establish(ctx context.Context, user *model.User) (string, time.Time, error)
	Destroy(ctx context.Context, token string) error
	CookieName() string
	WriteCookie(ctx context.Context, w http.ResponseWriter, token string, expiry time.Time)
	ClearCookie(ctx context.Context, w http.ResponseWriter)
}

// StateIssuer はOAuthのstateを発行・検証する。
type StateIssuer interface {
	Issue(provider string) (string, error)
	Verify(state, provider string) error
	TTL() time.Duration
}

// ProviderFlow はIdPの同意画面URLを組み立てる。
type ProviderFlow interface {
	Name() string
	AuthorizationURL(state string) string
}

// PhotoStore はサインアップ時のプロフィール画像を保存する。
type PhotoStore interface {
	Save(r io.ReadSeeker) (string, error)
	Remove(ref string)
}

// Renderer はテンプレート名とデータからHTMLを描画する。
type Renderer interface {
	Render(w http.ResponseWriter, status int, name string, data map[string]any)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure   bool
	UploadMaxBytes int64 // サインアップフォーム全体の上限
}

// AuthHandler はログイン・サインアップ・IdP連携・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	resolver  Authenticator
	sessions  SessionManager
	states    StateIssuer
	providers map[string]ProviderFlow
	names     []string
	photos    PhotoStore
	renderer  Renderer
	config    AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。photosがnilの場合は画像を受け付けない。
func NewAuthHandler(resolver Authenticator, sessions SessionManager, states StateIssuer,
	providers []ProviderFlow, photos PhotoStore, renderer Renderer, config AuthHandlerConfig) *AuthHandler {
	h := &AuthHandler{
		resolver:  resolver,
		sessions:  sessions,
		states:    states,
		providers: make(map[string]ProviderFlow, len(providers)),
		photos:    photos,
		renderer:  renderer,
		config:    config,
	}
	for _, p := range providers {
		h.providers[p.Name()] = p
		h.names = append(h.names, p.Name())
	}
	if h.config.UploadMaxBytes <= 0 {
		h.config.UploadMaxBytes = 5 << 20
	}
	return h
}

// LoginPage はログイン画面を表示する。
// GET /auth
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r, "Authentication")
	if msg := h.takeFlash(w, r); msg != "" {
		data["error"] = msg
	}
	h.renderer.Render(w, http.StatusOK, view.PageAuthentication, data)
}

// SignupPage はサインアップ画面を表示する。
// GET /auth/signup
func (h *AuthHandler) SignupPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, view.PageSignup, h.pageData(r, "Sign up"))
}

// Login はメールアドレスとパスワードで認証する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	cred := auth.Credentials{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}

	res := h.resolver.Resolve(r.Context(), auth.StrategyLocal, cred)
	if !res.OK() {
		h.handleFailure(w, r, res.Failure)
		return
	}
	h.completeLogin(w, r, res)
}

// Signup はローカルアカウントを作成し、そのままログインさせる。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.config.UploadMaxBytes)
	if err := r.ParseMultipartForm(h.config.UploadMaxBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.renderSignupError(w, r, http.StatusBadRequest, "invalid form")
		return
	}

	cred := auth.Credentials{
		FirstName:       r.PostFormValue("firstname"),
		LastName:        r.PostFormValue("lastname"),
		Email:           r.PostFormValue("email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}

	photo, status, msg := h.savePhoto(r)
	if status != 0 {
		h.renderSignupError(w, r, status, msg)
		return
	}
	cred.Photo = model.StringPtr(photo)

	res := h.resolver.Resolve(r.Context(), auth.StrategySignup, cred)
	if !res.OK() {
		if photo != "" {
			h.photos.Remove(photo)
		}
		h.handleFailure(w, r, res.Failure)
		return
	}
	h.completeLogin(w, r, res)
}

// BeginProvider はIdPの同意画面へリダイレクトする。
// GET /auth/{provider}
func (h *AuthHandler) BeginProvider(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		h.renderNotFound(w, r)
		return
	}

	state, err := h.states.Issue(provider.Name())
	if err != nil {
		slog.Error("failed to issue oauth state",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     loginPath,
		MaxAge:   int(h.states.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthorizationURL(state), http.StatusFound)
}

// ProviderCallback はIdPからのコールバックを処理する。
// GET /auth/{provider}/callback?code=xxx&state=yyy
func (h *AuthHandler) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		h.renderNotFound(w, r)
		return
	}
	name := provider.Name()

	query := r.URL.Query()
	state := query.Get("state")
	stateCookie, cookieErr := r.Cookie(oauthStateCookie)
	h.clearCookie(w, oauthStateCookie, loginPath)

	if idpErr := query.Get("error"); idpErr != "" {
		slog.Warn("provider returned error",
			slog.String("provider", name),
			slog.String("idp_error", idpErr),
		)
		h.redirectToLogin(w, r)
		return
	}

	if cookieErr != nil || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("provider", name))
		h.redirectToLogin(w, r)
		return
	}
	if err := h.states.Verify(state, name); err != nil {
		slog.Warn("oauth state rejected",
			slog.String("provider", name),
			slog.String("error", err.Error()),
		)
		h.redirectToLogin(w, r)
		return
	}

	res := h.resolver.Resolve(r.Context(), name, auth.Credentials{Code: query.Get("code")})
	if !res.OK() {
		h.handleFailure(w, r, res.Failure)
		return
	}
	h.completeLogin(w, r, res)
}

// Logout はセッションを破棄してトップページへリダイレクトする。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.sessions.CookieName()); err == nil && cookie.Value != "" {
		if err := h.sessions.Destroy(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to destroy session", slog.String("error", err.Error()))
			middleware.WriteInternalServerError(w)
			return
		}
	}

	h.sessions.ClearCookie(r.Context(), w)
	http.Redirect(w, r, landingPath, http.StatusFound)
}

// completeLogin はセッションを確立して遷移先へリダイレクトする。
func (h *AuthHandler) completeLogin(w http.ResponseWriter, r *http.Request, res auth.Result) {
	token, expiry, err := h.sessions.Establish(r.Context(), res.User)
	if err != nil {
		slog.Error("failed to establish session",
			slog.String("user_id", res.User.ID),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	h.sessions.WriteCookie(r.Context(), w, token, expiry)
	middleware.ReportUserID(r.Context(), res.User.ID)

	redirect := res.Redirect
	if redirect == "" {
		redirect = dashboardPath
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// handleFailure は失敗の分類に応じて応答する。
// 入力不備は400でフォームを再表示し、認証失敗はログイン画面へ、ストア障害は500を返す。
func (h *AuthHandler) handleFailure(w http.ResponseWriter, r *http.Request, f *auth.Failure) {
	switch f.Reason.Kind() {
	case auth.KindValidation:
		h.renderSignupError(w, r, http.StatusBadRequest, f.Reason.APIError().Message)
	case auth.KindStore:
		middleware.WriteInternalServerError(w)
	default:
		h.setFlash(w)
		h.redirectToLogin(w, r)
	}
}

// savePhoto はフォームの画像を保存する。
// 失敗時は応答すべきステータスとメッセージを返す。
func (h *AuthHandler) savePhoto(r *http.Request) (string, int, string) {
	if h.photos == nil || r.MultipartForm == nil {
		return "", 0, ""
	}
	file, _, err := r.FormFile("photo")
	if errors.Is(err, http.ErrMissingFile) {
		return "", 0, ""
	}
	if err != nil {
		return "", http.StatusBadRequest, "invalid photo"
	}
	defer file.Close()

	ref, err := h.photos.Save(file)
	switch {
	case err == nil:
		return ref, 0, ""
	case errors.Is(err, upload.ErrUnsupportedType):
		return "", http.StatusBadRequest, "photo must be a PNG, JPEG, GIF or WebP image"
	case errors.Is(err, upload.ErrTooLarge):
		return "", http.StatusBadRequest, "photo is too large"
	default:
		slog.Error("failed to save photo", slog.String("error", err.Error()))
		return "", http.StatusInternalServerError, "internal server error"
	}
}

func (h *AuthHandler) renderSignupError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.WriteInternalServerError(w)
		return
	}
	data := h.pageData(r, "Sign up")
	data["error"] = msg
	data["firstname"] = r.PostFormValue("firstname")
	data["lastname"] = r.PostFormValue("lastname")
	data["email"] = r.PostFormValue("email")
	h.renderer.Render(w, status, view.PageSignup, data)
}

func (h *AuthHandler) renderNotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusNotFound, view.PageNotFound, map[string]any{"title": "404 Not Found"})
}

func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, loginPath, http.StatusFound)
}

func (h *AuthHandler) pageData(r *http.Request, title string) map[string]any {
	return map[string]any{
		"title":      title,
		"csrf_token": middleware.CSRFTokenFromContext(r.Context()),
		"providers":  h.names,
	}
}

func (h *AuthHandler) setFlash(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    flashCodeAuthFailed,
		Path:     loginPath,
		MaxAge:   60,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// takeFlash はフラッシュメッセージを取り出して削除する。
// Cookieには固定のコードのみを保存し、表示文言はサーバー側で決める。
func (h *AuthHandler) takeFlash(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	h.clearCookie(w, flashCookie, loginPath)
	if c.Value == flashCodeAuthFailed {
		return authFailedMessage
	}
	return ""
}

func (h *AuthHandler) clearCookie(w http.ResponseWriter, name, path string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     path,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
