package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/pensinova/internal/middleware"
	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/view"
)

// UserLister は診断用のユーザー一覧を取得する。
type UserLister interface {
	List(ctx context.Context) ([]*model.User, error)
}

// HealthChecker はストアの疎通を確認する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PageHandler はトップ・ダッシュボード・診断用エンドポイントのHTTPハンドラー。
type PageHandler struct {
	users    UserLister
	health   HealthChecker
	renderer Renderer
}

// NewPageHandler はPageHandlerを生成する。healthがnilの場合は常に正常を返す。
func NewPageHandler(users UserLister, health HealthChecker, renderer Renderer) *PageHandler {
	return &PageHandler{
		users:    users,
		health:   health,
		renderer: renderer,
	}
}

// Index はトップページを表示する。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, view.PageIndex, map[string]any{"title": "Home"})
}

// Home はログイン中のユーザーのダッシュボードを表示する。
// GET /home
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusOK, view.PageHome, map[string]any{
		"title": "Dashboard",
		"user":  middleware.UserFromContext(r.Context()),
	})
}

// NotFound は404ページを表示する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.Render(w, http.StatusNotFound, view.PageNotFound, map[string]any{
		"title": "404 Not Found",
		"user":  middleware.UserFromContext(r.Context()),
	})
}

// userResponse は/usersのJSON表現。パスワードハッシュは含めない。
type userResponse struct {
	ID        string  `json:"id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Photo     *string `json:"photo"`
}

// Users は全ユーザーをJSON配列で返す。
// GET /users
func (h *PageHandler) Users(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		slog.Error("failed to list users", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	resp := make([]userResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, userResponse{
			ID:        u.ID,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Email:     u.Email,
			Photo:     u.Photo,
		})
	}

	middleware.WriteJSON(w, http.StatusOK, resp)
}

// Health はストアの疎通を確認する。
// GET /health
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		if err := h.health.PingContext(r.Context()); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
