package handler

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/pensinova/internal/auth"
	"github.com/hitoshi/pensinova/internal/model"
)

// --- モック定義 ---

type resolveCall struct {
	name string
	cred auth.Credentials
}

type mockAuthenticator struct {
	resolveFn func(ctx context.Context, name string, cred auth.Credentials) auth.Result
	calls     []resolveCall
}

func (m *mockAuthenticator) Resolve(ctx context.Context, name string, cred auth.Credentials) auth.Result {
	m.calls = append(m.calls, resolveCall{name: name, cred: cred})
	if m.resolveFn != nil {
		return m.resolveFn(ctx, name, cred)
	}
	return auth.Result{Failure: &auth.Failure{Reason: auth.ReasonUserNotFound}}
}

func succeedWith(user *model.User) func(context.Context, string, auth.Credentials) auth.Result {
	return func(context.Context, string, auth.Credentials) auth.Result {
		return auth.Result{User: user, Redirect: auth.DefaultRedirect}
	}
}

func failWith(reason auth.Reason) func(context.Context, string, auth.Credentials) auth.Result {
	return func(context.Context, string, auth.Credentials) auth.Result {
		return auth.Result{Failure: &auth.Failure{Reason: reason}}
	}
}

type mockSessionManager struct {
	establishFn func(ctx context.Context, user *model.User) (string, time.Time, error)
	destroyFn   func(ctx context.Context, token string) error
	established []*model.User
	destroyed   []string
	cleared     int
}

func (m *mockSessionManager) Establish(ctx context.Context, user *model.User) (string, time.Time, error) {
	m.established = append(m.established, user)
	if m.establishFn != nil {
		return m.establishFn(ctx, user)
	}
	return "session-token", time.Now().Add(time.Hour), nil
}

func (m *mockSessionManager) Destroy(ctx context.Context, token string) error {
	m.destroyed = append(m.destroyed, token)
	if m.destroyFn != nil {
		return m.destroyFn(ctx, token)
	}
	return nil
}

func (m *mockSessionManager) CookieName() string {
	return "session_id"
}

func (m *mockSessionManager) WriteCookie(_ context.Context, w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: token, Path: "/", Expires: expiry, HttpOnly: true})
}

func (m *mockSessionManager) ClearCookie(_ context.Context, w http.ResponseWriter) {
	m.cleared++
	http.SetCookie(w, &http.Cookie{Name: "session_id", Value: "", Path: "/", MaxAge: -1})
}

type mockStateIssuer struct {
	issueFn  func(provider string) (string, error)
	verifyFn func(state, provider string) error
}

func (m *mockStateIssuer) Issue(provider string) (string, error) {
	if m.issueFn != nil {
		return m.issueFn(provider)
	}
	return "state-" + provider, nil
}

func (m *mockStateIssuer) Verify(state, provider string) error {
	if m.verifyFn != nil {
		return m.verifyFn(state, provider)
	}
	if state != "state-"+provider {
		return auth.ErrInvalidState
	}
	return nil
}

func (m *mockStateIssuer) TTL() time.Duration {
	return 10 * time.Minute
}

type mockProviderFlow struct {
	name string
}

func (m *mockProviderFlow) Name() string {
	return m.name
}

func (m *mockProviderFlow) AuthorizationURL(state string) string {
	return "https://idp.example.com/" + m.name + "/authorize?state=" + state
}

type mockPhotoStore struct {
	saveFn  func(r io.ReadSeeker) (string, error)
	removed []string
}

func (m *mockPhotoStore) Save(r io.ReadSeeker) (string, error) {
	if m.saveFn != nil {
		return m.saveFn(r)
	}
	return "/uploads/photo.png", nil
}

func (m *mockPhotoStore) Remove(ref string) {
	m.removed = append(m.removed, ref)
}

type renderCall struct {
	status int
	name   string
	data   map[string]any
}

type mockRenderer struct {
	calls []renderCall
}

func (m *mockRenderer) Render(w http.ResponseWriter, status int, name string, data map[string]any) {
	m.calls = append(m.calls, renderCall{status: status, name: name, data: data})
	w.WriteHeader(status)
	io.WriteString(w, name)
}

func (m *mockRenderer) last() renderCall {
	if len(m.calls) == 0 {
		return renderCall{}
	}
	return m.calls[len(m.calls)-1]
}

type mockUserLister struct {
	listFn func(ctx context.Context) ([]*model.User, error)
}

func (m *mockUserLister) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(context.Context) error {
	return m.err
}
