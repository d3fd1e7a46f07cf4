package repository

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/hitoshi/pensinova/internal/model"
)

// MemoryUserRepo はプロセス内メモリを使用したユーザーリポジトリ。
// ローカル開発とテストで使用する。一意制約はPostgresUserRepoと同じ規則で検証する。
type MemoryUserRepo struct {
	mu      sync.RWMutex
	byID    map[string]*model.User
	byEmail map[string]string // email -> id
	nextSeq int64
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		byID:    make(map[string]*model.User),
		byEmail: make(map[string]string),
		nextSeq: 1,
	}
}

// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok || email == "" {
		return nil, nil
	}
	return cloneUser(r.byID[id]), nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneUser(user), nil
}

// Insert はユーザーを作成する。
// 一意性の検証と挿入は同一ロック内で行い、同時挿入でも一方のみ成功する。
func (r *MemoryUserRepo) Insert(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.Email != "" {
		if _, exists := r.byEmail[user.Email]; exists {
			return fmt.Errorf("failed to insert user: email already exists: %w", model.ErrConstraintViolation)
		}
	}

	id := user.ID
	if id == "" {
		id = localIDPrefix + strconv.FormatInt(r.nextSeq, 10)
		r.nextSeq++
	}
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("failed to insert user: id already exists: %w", model.ErrConstraintViolation)
	}

	user.ID = id
	stored := cloneUser(user)
	r.byID[id] = stored
	if stored.Email != "" {
		r.byEmail[stored.Email] = id
	}
	return nil
}

// Count は登録ユーザー数を返す。
func (r *MemoryUserRepo) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID), nil
}

// List は全ユーザーをID順で返す。
func (r *MemoryUserRepo) List(_ context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]*model.User, 0, len(r.byID))
	for _, u := range r.byID {
		users = append(users, cloneUser(u))
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

// cloneUser は呼び出し側の変更がストアに波及しないようコピーを返す。
func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Password != nil {
		p := *u.Password
		c.Password = &p
	}
	if u.Photo != nil {
		p := *u.Photo
		c.Photo = &p
	}
	return &c
}

// compile-time interface check
var _ UserRepository = (*MemoryUserRepo)(nil)
