package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/nakama/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	StatusRecorder    middleware.StatusRecorder
	EnableHSTS        bool

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロフィール・コミュニティ・チャット
	ProfileService   ProfileServiceInterface
	CommunityService CommunityServiceInterface
	ChatService      ChatServiceInterface

	// ライブ購読のping間隔（0の場合はデフォルト値）
	StreamPingInterval time.Duration
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS
//	  認証ルート: RateLimit(Auth)
//	  APIルート:  CSRF → Session → RateLimit(General)
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.EnableHSTS))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.ProfileService)
	communityHandler := NewCommunityHandler(deps.CommunityService, deps.ProfileService)
	chatHandler := NewChatHandler(deps.ChatService)
	streamHandler := NewStreamHandler(deps.ChatService, StreamHandlerConfig{
		AllowedOrigin: deps.CORSAllowedOrigin,
		PingInterval:  deps.StreamPingInterval,
	}, logger)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))
	r.Get("/api/interests", ListInterests)

	// 認証ルート（IP単位のレート制限）
	r.Route("/auth", func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.Post("/signup", authHandler.SignUp)
		r.Post("/login", authHandler.Login)
		r.Post("/password-reset", authHandler.RequestPasswordReset)
		r.Post("/password-reset/confirm", authHandler.ConfirmPasswordReset)
		r.Get("/me", authHandler.Me)

		// ログアウトはCSRF検証を行う
		r.With(middleware.NewCSRFMiddleware(deps.CSRFConfig)).Post("/logout", authHandler.Logout)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: CSRF → Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Put("/interests", profileHandler.UpdateInterests)
			r.Put("/username", profileHandler.UpdateUsername)
		})

		// コミュニティ
		r.Route("/api/communities", func(r chi.Router) {
			r.Get("/", communityHandler.ListCommunities)
			r.Post("/", communityHandler.CreateCommunity)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", communityHandler.GetCommunity)
				r.Post("/join", communityHandler.JoinCommunity)
				r.Delete("/join", communityHandler.LeaveCommunity)

				// チャット（送信専用レート制限を追加）
				r.Get("/messages", chatHandler.ListMessages)
				r.With(deps.RateLimiter.MessageMiddleware()).Post("/messages", chatHandler.SendMessage)
				r.Get("/stream", streamHandler.Stream)
			})
		})
	})

	return r
}
