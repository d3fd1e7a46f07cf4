package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/pensinova/internal/model"
	"github.com/hitoshi/pensinova/internal/repository"
)

// maxNameLength はusers.first_name/last_nameの列幅（文字数）。
const maxNameLength = 100

// ProviderStrategy はIdPの認可コードからユーザーを解決する。
// 初回ログイン時はパスワードなしのユーザーを作成する。
// 既存ユーザーのプロフィールはログイン時に更新しない。
type ProviderStrategy struct {
	provider  Provider
	users     repository.UserRepository
	sanitizer NameSanitizer
}

// NewProviderStrategy はProviderStrategyを生成する。
func NewProviderStrategy(provider Provider, users repository.UserRepository, sanitizer NameSanitizer) *ProviderStrategy {
	if sanitizer == nil {
		sanitizer = noopSanitizer{}
	}
	return &ProviderStrategy{provider: provider, users: users, sanitizer: sanitizer}
}

// Name はプロバイダー名を戦略名として返す。
func (s *ProviderStrategy) Name() string {
	return s.provider.Name()
}

// Provider は対応するIdPアダプターを返す。
func (s *ProviderStrategy) Provider() Provider {
	return s.provider
}

// Authenticate は認可コードをプロフィールに交換し、外部IDでユーザーを解決する。
// ID衝突による挿入失敗はリトライせずConstraintViolationとする。
func (s *ProviderStrategy) Authenticate(ctx context.Context, cred Credentials) Result {
	profile, err := s.provider.Exchange(ctx, cred.Code)
	if err != nil {
		var pe *model.ProviderExchangeError
		if !errors.As(err, &pe) {
			err = model.NewProviderExchangeError(s.provider.Name(), err)
		}
		return fail(ReasonProviderExchangeFailed, err)
	}

	existing, err := s.users.FindByID(ctx, profile.ExternalID)
	if err != nil {
		return fail(ReasonStoreFailure, fmt.Errorf("failed to find user: %w", err))
	}
	if existing != nil {
		return success(existing)
	}

	user := &model.User{
		ID:        profile.ExternalID,
		FirstName: s.profileName(profile.GivenName),
		LastName:  s.profileName(profile.FamilyName),
		Email:     profile.Email,
		Password:  nil,
		Photo:     model.StringPtr(profile.PhotoURL),
	}
	if err := s.users.Insert(ctx, user); err != nil {
		if errors.Is(err, model.ErrConstraintViolation) {
			return fail(ReasonConstraintViolation, err)
		}
		return fail(ReasonStoreFailure, err)
	}

	return success(user)
}

// profileName はIdPの氏名を無害化し、列幅に収まるよう文字単位で切り詰める。
// IdP側の氏名は列幅より長くなり得るため、初回ログインを失敗させない。
func (s *ProviderStrategy) profileName(name string) string {
	return truncateRunes(strings.TrimSpace(s.sanitizer.SanitizeName(name)), maxNameLength)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// compile-time interface check
var _ Strategy = (*ProviderStrategy)(nil)
