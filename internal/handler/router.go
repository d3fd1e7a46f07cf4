package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/pensinova/internal/metrics"
	"github.com/hitoshi/pensinova/internal/middleware"
	"github.com/hitoshi/pensinova/internal/view"
	"github.com/prometheus/client_golang/prometheus"
)

// defaultMaxBodyBytes はリクエストボディの既定上限。
const defaultMaxBodyBytes = 6 << 20

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	RequestRecorder   middleware.RequestRecorder
	SessionRestorer   middleware.SessionRestorer
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	MaxBodyBytes      int64
	// TrustProxy がtrueの場合のみ転送ヘッダーからクライアントIPを復元する。
	TrustProxy bool

	// 認証
	Resolver   Authenticator
	Sessions   SessionManager
	States     StateIssuer
	Providers  []ProviderFlow
	Photos     PhotoStore
	AuthConfig AuthHandlerConfig

	// 画面・診断
	Renderer      Renderer
	Users         UserLister
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
	UploadDir     string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	(RealIP) → Logging → Recovery → SecurityHeaders → CORS → RequestSize → Session → CSRF
//
// RealIPはTrustProxyが有効な場合のみ適用する。無効時はレート制限が接続元アドレスで判定される。
// /health、/metrics、静的ファイルはセッションとCSRFの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	if deps.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.NewLoggingMiddleware(logger, deps.RequestRecorder))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	pages := NewPageHandler(deps.Users, deps.HealthChecker, deps.Renderer)
	authHandler := NewAuthHandler(deps.Resolver, deps.Sessions, deps.States,
		deps.Providers, deps.Photos, deps.Renderer, deps.AuthConfig)

	// --- セッション不要のルート ---
	r.Get("/health", pages.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(view.StaticFS())))
	if deps.UploadDir != "" {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(http.Dir(deps.UploadDir))))
	}

	// --- 画面・認証ルート ---
	// ミドルウェアスタック: RequestSize → Session → CSRF
	r.Group(func(r chi.Router) {
		r.Use(chimw.RequestSize(maxBody))
		r.Use(middleware.NewSessionMiddleware(deps.SessionRestorer, deps.Sessions.CookieName()))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// ログイン済みならダッシュボードへ転送
		r.Group(func(r chi.Router) {
			r.Use(middleware.RedirectAuthenticated(dashboardPath))
			r.Get("/", pages.Index)
			r.Get("/auth", authHandler.LoginPage)
			r.Get("/auth/signup", authHandler.SignupPage)
		})

		// 総当たり対策のレート制限
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware())
			}
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/signup", authHandler.Signup)
		})

		r.Get("/auth/{provider}", authHandler.BeginProvider)
		r.Get("/auth/{provider}/callback", authHandler.ProviderCallback)
		r.Get("/logout", authHandler.Logout)
		r.Get("/users", pages.Users)

		r.With(middleware.RequireAuthenticated(loginPath)).Get("/home", pages.Home)

		r.NotFound(pages.NotFound)
	})

	return r
}
