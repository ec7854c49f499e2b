// Package app はサブコマンドの解析と各起動モードの依存関係の組み立てを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/nakama/internal/activity"
	"github.com/hitoshi/nakama/internal/auth"
	"github.com/hitoshi/nakama/internal/chat"
	"github.com/hitoshi/nakama/internal/community"
	"github.com/hitoshi/nakama/internal/config"
	"github.com/hitoshi/nakama/internal/database"
	"github.com/hitoshi/nakama/internal/handler"
	"github.com/hitoshi/nakama/internal/live"
	"github.com/hitoshi/nakama/internal/logger"
	"github.com/hitoshi/nakama/internal/mail"
	"github.com/hitoshi/nakama/internal/metrics"
	"github.com/hitoshi/nakama/internal/middleware"
	"github.com/hitoshi/nakama/internal/profile"
	"github.com/hitoshi/nakama/internal/security"
	"github.com/hitoshi/nakama/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログレベルを反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, args[1:])
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストレージを開き、全依存関係をワイヤリングし、ライブ配信ハブとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. ストレージ
	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. 共通サービス
	recorder := activity.NewRepoRecorder(store.activities, slog.Default())
	sanitizer := security.NewTextSanitizer()
	mailer := newMailSender(cfg)

	// 4. ライブ配信ハブ
	hub := live.NewHub(store.messages, store.notifier, collector, slog.Default())
	hubDone := make(chan error, 1)
	go func() {
		hubDone <- hub.Run(ctx)
	}()

	// 5. ドメインサービス
	authService := auth.NewService(
		store.accounts, store.profiles, store.sessions,
		mailer, sanitizer, recorder, collector,
		auth.ServiceConfig{
			SessionMaxAge: cfg.SessionMaxAge,
			ResetTokenTTL: cfg.ResetTokenTTL,
			ResetSecret:   []byte(cfg.SessionSecret),
			BaseURL:       cfg.BaseURL,
		},
	)
	profileService := profile.NewService(store.profiles, store.accounts, store.communities, sanitizer, recorder)
	communityService := community.NewService(store.communities, profileService, sanitizer, recorder, collector)
	chatService := chat.NewService(store.communities, store.messages, profileService, hub, sanitizer, recorder, collector)

	// 6. ルーター
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitMessage, cfg.RateLimitAuth),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     store.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		StatusRecorder: collector,
		EnableHSTS:     cfg.CookieSecure,

		HealthChecker:  store.health,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ProfileService:     profileService,
		CommunityService:   communityService,
		ChatService:        chatService,
		StreamPingInterval: cfg.WSPingInterval,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case err := <-hubDone:
		if err != nil {
			slog.Error("live hub stopped unexpectedly", slog.String("error", err.Error()))
		}
	}
	slog.Info("shutting down API server...")

	// ライブ購読を先に閉じ、WebSocket接続を終了させる
	hub.Close()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 期限切れセッションと古い監査ログのクリーンアップをCLEANUP_INTERVALごとに実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	cleanupJob := cleanup.NewCleanupJob(store.sessions, store.activities, slog.Default())
	cleanupJob.RetentionDays = cfg.LogRetentionDays

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	go func() {
		select {
		case <-stop:
			slog.Info("shutting down worker...")
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Int("log_retention_days", cfg.LogRetentionDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, args []string) error {
	if isMemoryURL(cfg.DatabaseURL) {
		return fmt.Errorf("migrations require a PostgreSQL DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	opts, err := ParseMigrateArgs(args)
	if err != nil {
		return err
	}

	if opts.Down {
		version, err := database.RollbackMigrations(cfg.DatabaseURL, opts.Steps)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back",
			slog.Int("steps", opts.Steps),
			slog.Uint64("version", uint64(version)),
		)
		return nil
	}

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
	)
	return nil
}

// newMailSender はMAIL_WEBHOOK_URLが設定されていればWebhook送信、なければログ出力のSenderを返す。
func newMailSender(cfg *config.Config) mail.Sender {
	if cfg.MailWebhookURL == "" {
		return mail.NewLogSender(slog.Default())
	}
	return mail.NewWebhookSender(&http.Client{Timeout: 10 * time.Second}, cfg.MailWebhookURL, cfg.MailFrom)
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		if len(raw) > 20 {
			return raw[:12] + "***@..."
		}
		return "***"
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
