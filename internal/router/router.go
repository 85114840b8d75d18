package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	appLogger "github.com/FACorreiaa/go-posts-api/app/logger"
	_ "github.com/FACorreiaa/go-posts-api/docs"
	"github.com/FACorreiaa/go-posts-api/internal/api"
	"github.com/FACorreiaa/go-posts-api/internal/api/auth"
	"github.com/FACorreiaa/go-posts-api/internal/api/post"
)

const serviceName = "go-posts-api"

// Config contains dependencies needed for the router setup.
type Config struct {
	AuthHandler            auth.Handler
	PostHandler            post.Handler
	AuthenticateMiddleware func(http.Handler) http.Handler
	// Uploads serves stored images; it receives paths with /uploads stripped.
	Uploads http.Handler
	Logger  *slog.Logger

	Timeout        time.Duration
	AllowedOrigins []string
	// AuthRequests per AuthWindow per client IP on /auth; zero disables the limit.
	AuthRequests int
	AuthWindow   time.Duration
}

// SetupRouter builds the complete HTTP surface including server-wide middleware.
func SetupRouter(cfg *Config) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(otelhttp.NewMiddleware(serviceName))
	r.Use(appLogger.StructuredLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(api.NotFoundHandler)
	r.MethodNotAllowed(api.MethodNotAllowedHandler)

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	r.Get("/api/*", httpSwagger.Handler(httpSwagger.URL("/api/doc.json")))

	if cfg.Uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads", cfg.Uploads))
	}

	r.Route("/auth", func(r chi.Router) {
		if cfg.AuthRequests > 0 {
			r.Use(httprate.Limit(cfg.AuthRequests, cfg.AuthWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					api.ErrorResponse(w, r, http.StatusTooManyRequests, "Too many requests")
				}),
			))
		}
		r.Post("/signup", cfg.AuthHandler.Signup)
		r.Post("/signin", cfg.AuthHandler.Signin)
	})

	r.Route("/posts", func(r chi.Router) {
		r.Use(cfg.AuthenticateMiddleware)
		r.Get("/", cfg.PostHandler.FindAll)
		r.Post("/", cfg.PostHandler.Create)
		r.Get("/{id}", cfg.PostHandler.FindOne)
		r.Patch("/{id}", cfg.PostHandler.Update)
		r.Delete("/{id}", cfg.PostHandler.Remove)
	})

	return r
}
