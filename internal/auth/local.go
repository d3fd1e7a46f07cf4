package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/hitoshi/pensinova/internal/password"
	"github.com/hitoshi/pensinova/internal/repository"
)

// StrategyLocal はメールアドレスとパスワードによるログイン戦略の名前。
const StrategyLocal = "local"

// LocalStrategy はメールアドレスとパスワードでユーザーを認証する。
type LocalStrategy struct {
	users  repository.UserRepository
	hasher password.Hasher
}

// NewLocalStrategy はLocalStrategyを生成する。
func NewLocalStrategy(users repository.UserRepository, hasher password.Hasher) *LocalStrategy {
	return &LocalStrategy{users: users, hasher: hasher}
}

// Name は戦略名を返す。
func (s *LocalStrategy) Name() string {
	return StrategyLocal
}

// Authenticate はメールアドレスでユーザーを検索し、パスワードを検証する。
// パスワード未設定（IdP経由で作成）のユーザーはWrongPasswordとする。
func (s *LocalStrategy) Authenticate(ctx context.Context, cred Credentials) Result {
	email := strings.TrimSpace(cred.Email)
	if email == "" {
		return fail(ReasonUserNotFound, nil)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return fail(ReasonStoreFailure, fmt.Errorf("failed to find user: %w", err))
	}
	if user == nil {
		return fail(ReasonUserNotFound, nil)
	}

	if !user.HasLocalPassword() || !s.hasher.Verify(cred.Password, *user.Password) {
		return fail(ReasonWrongPassword, nil)
	}

	return success(user)
}

// compile-time interface check
var _ Strategy = (*LocalStrategy)(nil)
