package auth

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/hitoshi/pensinova/internal/model"
)

// DefaultSessionCookieName はセッションCookie名。
const DefaultSessionCookieName = "session_id"

// sessionUserKey はセッションデータ内のユーザーのキー。
const sessionUserKey = "user"

func init() {
	gob.Register(model.User{})
}

// SessionRecorder はセッションの発行・破棄をメトリクスに記録する。
type SessionRecorder interface {
	RecordSessionEstablished()
	RecordSessionDestroyed()
}

// SessionConfig はセッション管理の設定。
type SessionConfig struct {
	Lifetime     time.Duration
	CookieName   string
	CookieSecure bool
	CookieDomain string
}

// SessionManager は認証済みユーザーをセッションに保存し、復元する。
// セッションにはユーザーレコード全体を保存する。
type SessionManager struct {
	sm       *scs.SessionManager
	store    scs.Store
	recorder SessionRecorder
}

// NewSessionManager はSessionManagerを生成する。recorderはnilでもよい。
func NewSessionManager(store scs.Store, cfg SessionConfig, recorder SessionRecorder) *SessionManager {
	sm := scs.New()
	sm.Store = store
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	sm.Cookie.Name = cfg.CookieName
	if sm.Cookie.Name == "" {
		sm.Cookie.Name = DefaultSessionCookieName
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.CookieSecure
	sm.Cookie.Domain = cfg.CookieDomain
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Path = "/"
	sm.Cookie.Persist = true

	return &SessionManager{sm: sm, store: store, recorder: recorder}
}

// CookieName はセッションCookie名を返す。
func (m *SessionManager) CookieName() string {
	return m.sm.Cookie.Name
}

// Lifetime はセッションの有効期間を返す。
func (m *SessionManager) Lifetime() time.Duration {
	return m.sm.Lifetime
}

// Establish はユーザーのセッションを新規作成し、トークンと有効期限を返す。
func (m *SessionManager) Establish(ctx context.Context, user *model.User) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, fmt.Errorf("user is required")
	}

	ctx, err := m.sm.Load(ctx, "")
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to load session: %w", err)
	}
	m.sm.Put(ctx, sessionUserKey, *user)

	token, expiry, err := m.sm.Commit(ctx)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to commit session: %w", err)
	}

	if m.recorder != nil {
		m.recorder.RecordSessionEstablished()
	}
	slog.Info("session established", slog.String("user_id", user.ID))
	return token, expiry, nil
}

// Restore はトークンからユーザーを復元する。
// トークンが空、期限切れ、不正、または復号できない場合はnilを返す。
func (m *SessionManager) Restore(ctx context.Context, token string) *model.User {
	if token == "" {
		return nil
	}

	ctx, err := m.sm.Load(ctx, token)
	if err != nil {
		slog.Debug("failed to load session", slog.String("error", err.Error()))
		return nil
	}

	user, ok := m.sm.Get(ctx, sessionUserKey).(model.User)
	if !ok {
		return nil
	}
	return &user
}

// Destroy はセッションを破棄する。存在しないトークンに対してもエラーにならない。
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}

	loaded, err := m.sm.Load(ctx, token)
	if err != nil {
		// 復号できないセッションもストアからは削除する
		if err := deleteFromStore(ctx, m.store, token); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	}

	// scsは未知のトークンでも空のセッションを返すため、ユーザーが保存されていた場合のみ破棄として記録する
	existed := m.sm.Exists(loaded, sessionUserKey)

	if err := m.sm.Destroy(loaded); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	if err := deleteFromStore(ctx, m.store, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if existed && m.recorder != nil {
		m.recorder.RecordSessionDestroyed()
	}
	return nil
}

// WriteCookie はセッションCookieを書き込む。
func (m *SessionManager) WriteCookie(ctx context.Context, w http.ResponseWriter, token string, expiry time.Time) {
	m.sm.WriteSessionCookie(ctx, w, token, expiry)
}

// ClearCookie はセッションCookieを削除する。
func (m *SessionManager) ClearCookie(ctx context.Context, w http.ResponseWriter) {
	m.sm.WriteSessionCookie(ctx, w, "", time.Time{})
}

func deleteFromStore(ctx context.Context, store scs.Store, token string) error {
	if cs, ok := store.(scs.CtxStore); ok {
		return cs.DeleteCtx(ctx, token)
	}
	return store.Delete(token)
}
