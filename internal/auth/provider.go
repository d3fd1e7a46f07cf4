// Package auth は認証戦略、IdPアダプター、セッション管理を提供する。
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hitoshi/pensinova/internal/model"
	"golang.org/x/oauth2"
)

// Provider はIdPアダプターのインターフェース。
// 認可コードを検証済みプロフィールに交換する。永続化は行わない。
type Provider interface {
	// Name はプロバイダー名（"google", "github"）を返す。
	Name() string
	// AuthorizationURL は同意画面のURLを生成する。
	AuthorizationURL(state string) string
	// Exchange は認可コードをプロフィールに交換する。
	// 失敗はすべて*model.ProviderExchangeErrorで返す。
	Exchange(ctx context.Context, code string) (*model.ExternalProfile, error)
}

// OAuth2Config はIdPアダプターの設定。
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	// HTTPClient はトークン交換とユーザー情報取得に使うクライアント。nilの場合はhttp.DefaultClient。
	HTTPClient *http.Client
}

// oauth2Provider はGoogle/GitHubで共通のOAuth 2.0処理。
type oauth2Provider struct {
	name        string
	conf        *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

func newOAuth2Provider(name string, cfg OAuth2Config, endpoint oauth2.Endpoint, defaultScopes []string, defaultUserInfoURL string) *oauth2Provider {
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = defaultScopes
	}
	userInfoURL := cfg.UserInfoURL
	if userInfoURL == "" {
		userInfoURL = defaultUserInfoURL
	}

	return &oauth2Provider{
		name: name,
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       scopes,
			Endpoint:     endpoint,
		},
		userInfoURL: userInfoURL,
		httpClient:  cfg.HTTPClient,
	}
}

// Name はプロバイダー名を返す。
func (p *oauth2Provider) Name() string {
	return p.name
}

// AuthorizationURL は同意画面のURLを生成する。
func (p *oauth2Provider) AuthorizationURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// clientContext は注入されたHTTPクライアントをoauth2に渡すコンテキストを返す。
func (p *oauth2Provider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// exchange は認可コードをアクセストークンに交換し、トークン付きHTTPクライアントを返す。
func (p *oauth2Provider) exchange(ctx context.Context, code string) (*http.Client, error) {
	if code == "" {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("authorization code is empty"))
	}

	ctx = p.clientContext(ctx)
	token, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("failed to exchange token: %w", err))
	}
	if !token.Valid() {
		return nil, model.NewProviderExchangeError(p.name, fmt.Errorf("invalid access token in response"))
	}
	return p.conf.Client(ctx, token), nil
}

// maxUserInfoBytes はユーザー情報レスポンスの読み取り上限。
const maxUserInfoBytes = 1 << 20

// getJSON はトークン付きクライアントでJSONを取得しvにデコードする。
func (p *oauth2Provider) getJSON(ctx context.Context, client *http.Client, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
