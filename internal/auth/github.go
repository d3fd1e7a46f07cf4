package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hitoshi/pensinova/internal/model"
	"golang.org/x/oauth2/endpoints"
)

const defaultGitHubUserInfoURL = "https://api.github.com/user"

// GitHubProvider はGitHub OAuthによるIdPアダプター。
type GitHubProvider struct {
	*oauth2Provider
}

// NewGitHubProvider はGitHubProviderを生成する。
// メールアドレス非公開ユーザーにも対応するためuser:emailスコープを要求する。
func NewGitHubProvider(cfg OAuth2Config) *GitHubProvider {
	return &GitHubProvider{
		oauth2Provider: newOAuth2Provider("github", cfg, endpoints.GitHub,
			[]string{"read:user", "user:email"}, defaultGitHubUserInfoURL),
	}
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	AvatarURL string `json:"avatar_url"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// Exchange は認可コードをトークンに交換し、GitHubのプロフィールを取得する。
func (p *GitHubProvider) Exchange(ctx context.Context, code string) (*model.ExternalProfile, error) {
	client, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var u githubUser
	if err := p.getJSON(ctx, client, p.userInfoURL, &u); err != nil {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("failed to fetch user info: %w", err))
	}
	if u.ID == 0 {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("empty id in user info response"))
	}

	email := u.Email
	if email == "" {
		// 公開メールアドレスがない場合は検証済みのプライマリアドレスを使う
		var emails []githubEmail
		if err := p.getJSON(ctx, client, p.userInfoURL+"/emails", &emails); err != nil {
			slog.Warn("failed to fetch github emails",
				slog.Int64("github_id", u.ID),
				slog.String("error", err.Error()),
			)
		}
		email = primaryVerifiedEmail(emails)
	}

	given, family := splitName(u.Name)
	if given == "" {
		given = u.Login
	}

	return &model.ExternalProfile{
		Provider:   p.name,
		ExternalID: strconv.FormatInt(u.ID, 10),
		GivenName:  given,
		FamilyName: family,
		Email:      email,
		PhotoURL:   u.AvatarURL,
	}, nil
}

func primaryVerifiedEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

// splitName は表示名を最初の空白で名と姓に分割する。
func splitName(name string) (given, family string) {
	name = strings.TrimSpace(name)
	given, family, _ = strings.Cut(name, " ")
	return given, strings.TrimSpace(family)
}

// compile-time interface check
var _ Provider = (*GitHubProvider)(nil)
