package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/musa/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	AuthChecker       middleware.AuthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	Sessions SessionService
	Profiles ProfileService
	Views    ViewRegistry
	Blobs    interface {
		BlobGetter
		BlobReleaser
	}

	Health      HealthChecker
	ViewCount   func() int
	MetricsHTTP http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Recovery → SecurityHeaders → RealIP → Logging → CORS → (Session → RateLimit)
//
// /health、/metrics、/api/session はログイン不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	sessionHandler := NewSessionHandler(deps.Sessions, logger)
	profileHandler := NewProfileHandler(deps.Profiles, deps.Blobs, logger)
	viewHandler := NewViewHandler(deps.Views, logger)
	blobHandler := NewBlobHandler(deps.Blobs)

	// --- ログイン不要のルート ---
	r.Get("/health", NewHealthHandler(deps.Health, deps.ViewCount, logger))
	if deps.MetricsHTTP != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHTTP)
	}
	r.Route("/api/session", func(r chi.Router) {
		r.Get("/", sessionHandler.Status)
		r.Post("/", sessionHandler.Login)
		r.Delete("/", sessionHandler.Logout)
	})

	// --- ログインが必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.AuthChecker))
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/api/profile/me", profileHandler.Me)
		r.Route("/api/profiles/{username}", func(r chi.Router) {
			r.Get("/", profileHandler.Public)
			r.Put("/follow", profileHandler.Follow)
		})

		r.Route("/api/views", func(r chi.Router) {
			r.Post("/", viewHandler.Create)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", viewHandler.Get)
				r.Delete("/", viewHandler.Delete)
				r.Post("/tabs/{kind}", viewHandler.ActivateTab)
				r.Post("/scroll", viewHandler.Scroll)
				r.Get("/collections/{kind}", viewHandler.Collection)
			})
		})

		r.Get("/api/blobs/{handle}", blobHandler.Serve)
	})

	return r
}
