package auth

import (
	"context"
	"sync"

	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/password"
	"github.com/hitoshi/pensinova/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	insertFn      func(ctx context.Context, user *model.User) error
	countFn       func(ctx context.Context) (int, error)

	insertCalls int
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) Insert(ctx context.Context, user *model.User) error {
	m.insertCalls++
	if m.insertFn != nil {
		return m.insertFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockUserRepo) List(_ context.Context) ([]*model.User, error) {
	return nil, nil
}

// plainHasher はテスト用にハッシュ化を "hashed:" プレフィックスで代用する。
type plainHasher struct {
	hashFn func(plain string) (string, error)
}

func (h *plainHasher) Hash(plain string) (string, error) {
	if h.hashFn != nil {
		return h.hashFn(plain)
	}
	return "hashed:" + plain, nil
}

func (h *plainHasher) Verify(plain, hash string) bool {
	return hash == "hashed:"+plain
}

type mockProvider struct {
	name       string
	exchangeFn func(ctx context.Context, code string) (*model.ExternalProfile, error)
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) AuthorizationURL(state string) string {
	return "https://idp.example.com/auth?state=" + state
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*model.ExternalProfile, error) {
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, code)
	}
	return nil, nil
}

type recordedAttempt struct {
	strategy, outcome string
}

type mockRecorder struct {
	mu          sync.Mutex
	attempts    []recordedAttempt
	established int
	destroyed   int
}

func (m *mockRecorder) RecordAuthAttempt(strategy, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts = append(m.attempts, recordedAttempt{strategy, outcome})
}

func (m *mockRecorder) RecordSessionEstablished() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.established++
}

func (m *mockRecorder) RecordSessionDestroyed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed++
}

type bracketSanitizer struct{}

func (bracketSanitizer) SanitizeName(name string) string {
	return "[" + name + "]"
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ password.Hasher = (*plainHasher)(nil)
var _ Provider = (*mockProvider)(nil)
var _ AttemptRecorder = (*mockRecorder)(nil)
var _ SessionRecorder = (*mockRecorder)(nil)
