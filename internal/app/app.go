package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/hitoshi/pensinova/internal/auth"
	"github.com/hitoshi/pensinova/internal/config"
	"github.com/hitoshi/pensinova/internal/database"
	"github.com/hitoshi/pensinova/internal/handler"
	"github.com/hitoshi/pensinova/internal/logger"
	"github.com/hitoshi/pensinova/internal/metrics"
	"github.com/hitoshi/pensinova/internal/middleware"
	"github.com/hitoshi/pensinova/internal/password"
	"github.com/hitoshi/pensinova/internal/repository"
	"github.com/hitoshi/pensinova/internal/security"
	"github.com/hitoshi/pensinova/internal/upload"
	"github.com/hitoshi/pensinova/internal/view"
	"github.com/hitoshi/pensinova/internal/worker/cleanup"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば環境変数に読み込み、Configを読み込んでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// 未知のサブコマンドはエラーとする。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store_backend", string(cfg.StoreBackend)),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Stores はユーザーとセッションの永続化先をまとめる。
type Stores struct {
	Users    repository.UserRepository
	Sessions scs.Store
	// Purger はPostgreSQL利用時のみ設定される。
	Purger repository.ExpiredSessionPurger
	// Health はPostgreSQL利用時のみ設定される。
	Health handler.HealthChecker

	close func() error
}

// Close は保持している接続を閉じる。
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// NewMemoryStores はプロセス内メモリのストアを生成する。
func NewMemoryStores() *Stores {
	return &Stores{
		Users:    repository.NewMemoryUserRepo(),
		Sessions: memstore.New(),
	}
}

// OpenStores はSTORE_BACKENDに応じたストアを開く。
func OpenStores(cfg *config.Config) (*Stores, error) {
	if cfg.StoreBackend == config.StoreBackendMemory {
		slog.Warn("using in-memory store; data is lost on restart")
		return NewMemoryStores(), nil
	}

	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := database.WaitForReady(context.Background(), db, 5, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("database connection established")

	sessions := repository.NewPostgresSessionStore(db)
	return &Stores{
		Users:    repository.NewPostgresUserRepo(db),
		Sessions: sessions,
		Purger:   sessions,
		Health:   db,
		close:    db.Close,
	}, nil
}

// Server はHTTPハンドラーと停止処理をまとめる。
type Server struct {
	Handler http.Handler
	Metrics *metrics.Collector

	rateLimiter *middleware.RateLimiter
}

// Close はバックグラウンド処理を停止する。
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// NewServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
func NewServer(cfg *config.Config, stores *Stores, reg *prometheus.Registry) (*Server, error) {
	collector := metrics.NewCollector(reg)

	// 1. 認証戦略の初期化
	hasher := password.NewBcryptHasher(cfg.BcryptCost)
	sanitizer := security.NewNameSanitizer()
	resolver := auth.NewResolver(collector,
		auth.NewLocalStrategy(stores.Users, hasher),
		auth.NewSignupStrategy(stores.Users, hasher, sanitizer),
	)

	// 2. IdPの初期化（クライアントIDが設定されたもののみ）
	if cfg.GoogleEnabled() {
		resolver.Register(auth.NewProviderStrategy(auth.NewGoogleProvider(auth.OAuth2Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			CallbackURL:  cfg.GoogleCallbackURL,
		}), stores.Users, sanitizer))
	}
	if cfg.GitHubEnabled() {
		resolver.Register(auth.NewProviderStrategy(auth.NewGitHubProvider(auth.OAuth2Config{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			CallbackURL:  cfg.GitHubCallbackURL,
		}), stores.Users, sanitizer))
	}

	var providers []handler.ProviderFlow
	for _, ps := range resolver.Providers() {
		providers = append(providers, ps.Provider())
	}

	// 3. セッション管理
	sessions := auth.NewSessionManager(stores.Sessions, auth.SessionConfig{
		Lifetime:     time.Duration(cfg.SessionMaxAge) * time.Second,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	}, collector)

	// 4. 画面・アップロード
	renderer, err := view.NewRenderer()
	if err != nil {
		return nil, err
	}
	photos, err := upload.NewPhotoStore(cfg.UploadDir, cfg.UploadMaxBytes)
	if err != nil {
		return nil, err
	}

	// 5. ルーターの構築
	// フォーム全体の上限は画像の上限にフィールド分の余裕を加える
	maxBody := cfg.UploadMaxBytes + 1<<20
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(cfg.RateLimitLogin))

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		RequestRecorder:   collector,
		SessionRestorer:   sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:  rateLimiter,
		MaxBodyBytes: maxBody,
		TrustProxy:   cfg.TrustProxy,

		Resolver:  resolver,
		Sessions:  sessions,
		States:    auth.NewStateSigner(cfg.SessionSecret, auth.DefaultStateTTL),
		Providers: providers,
		Photos:    photos,
		AuthConfig: handler.AuthHandlerConfig{
			CookieSecure:   cfg.CookieSecure,
			UploadMaxBytes: maxBody,
		},

		Renderer:  renderer,
		Users:     stores.Users,
		Gatherer:  reg,
		UploadDir: photos.Dir(),
	}
	if stores.Health != nil {
		deps.HealthChecker = stores.Health
	}

	return &Server{
		Handler:     handler.NewRouter(deps),
		Metrics:     collector,
		rateLimiter: rateLimiter,
	}, nil
}

// runServe はWebサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	stores, err := OpenStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer stores.Close()

	reg := prometheus.NewRegistry()
	srv, err := NewServer(cfg, stores, reg)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQLストアの期限切れセッションを定期削除する
	if stores.Purger != nil {
		job := cleanup.NewCleanupJob(stores.Purger, slog.Default(), srv.Metrics)
		go job.Start(ctx, cfg.SessionCleanupInterval)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションの削除ジョブを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.StoreBackend == config.StoreBackendMemory {
		return errors.New("worker requires STORE_BACKEND=postgres")
	}

	stores, err := OpenStores(cfg)
	if err != nil {
		return fmt.Errorf("failed to open stores: %w", err)
	}
	defer stores.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.SessionCleanupInterval),
	)

	job := cleanup.NewCleanupJob(stores.Purger, slog.Default(), nil)
	job.Start(ctx, cfg.SessionCleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend == config.StoreBackendMemory {
		return errors.New("migrate requires STORE_BACKEND=postgres")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
