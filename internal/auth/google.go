package auth

import (
	"context"
	"fmt"

	"github.com/hitoshi/pensinova/internal/model"
	"golang.org/x/oauth2/endpoints"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider はGoogle OAuth 2.0によるIdPアダプター。
type GoogleProvider struct {
	*oauth2Provider
}

// NewGoogleProvider はGoogleProviderを生成する。
// スコープ未指定時はopenid, email, profileを要求する。
func NewGoogleProvider(cfg OAuth2Config) *GoogleProvider {
	return &GoogleProvider{
		oauth2Provider: newOAuth2Provider("google", cfg, endpoints.Google,
			[]string{"openid", "email", "profile"}, defaultGoogleUserInfoURL),
	}
}

// googleUserInfo はGoogleのユーザー情報エンドポイントのレスポンス。
type googleUserInfo struct {
	Sub        string `json:"sub"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Email      string `json:"email"`
	Picture    string `json:"picture"`
}

// Exchange は認可コードをトークンに交換し、Googleのプロフィールを取得する。
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*model.ExternalProfile, error) {
	client, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	var info googleUserInfo
	if err := p.getJSON(ctx, client, p.userInfoURL, &info); err != nil {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("failed to fetch user info: %w", err))
	}
	if info.Sub == "" {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("empty sub in user info response"))
	}

	return &model.ExternalProfile{
		Provider:   p.name,
		ExternalID: info.Sub,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		Email:      info.Email,
		PhotoURL:   info.Picture,
	}, nil
}

// compile-time interface check
var _ Provider = (*GoogleProvider)(nil)
