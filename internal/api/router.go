package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/flightbrief/internal/config"
	"github.com/yegors/flightbrief/pkg/logger"
)

// Router wires the handlers onto a chi mux
type Router struct {
	handler *Handler
	config  config.ServerConfig
	logger  *logger.Logger
}

// NewRouter creates a new router
func NewRouter(handler *Handler, cfg config.ServerConfig, logger *logger.Logger) *Router {
	return &Router{
		handler: handler,
		config:  cfg,
		logger:  logger.Named("api-router"),
	}
}

// Routes builds the HTTP handler tree
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(rt.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(rt.config.CORSAllowedOrigins))

	h := rt.handler
	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Get("/system-status", h.SystemStatus)
		r.Get("/health", h.GetHealth)

		if rt.config.AdminToken == "" {
			rt.logger.Warn("No admin token configured, admin endpoints disabled")
			return
		}
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin(rt.config.AdminToken))
			r.Get("/logs", h.GetLogs)
			r.Get("/stats", h.GetStats)
			r.Get("/settings", h.GetSettings)
			r.Put("/settings", h.UpdateSettings)
			r.Get("/live", h.Live)
		})
	})

	if rt.config.StaticFilesDir != "" {
		static := NewStaticFileHandler(rt.config.StaticFilesDir, rt.logger)
		r.NotFound(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, "/api/") {
				WriteError(w, http.StatusNotFound, "not found")
				return
			}
			static.ServeHTTP(w, req)
		})
	}

	return r
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			log.Debug("HTTP request",
				logger.String("method", r.Method),
				logger.String("path", r.URL.Path),
				logger.Int("status", ww.Status()),
				logger.Int("bytes", ww.BytesWritten()),
				logger.Duration("duration", time.Since(start)),
				logger.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}

func cors(allowed []string) func(http.Handler) http.Handler {
	wildcard := false
	origins := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			wildcard = true
		}
		origins[strings.TrimSuffix(o, "/")] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (wildcard || origins[origin]) {
				if wildcard {
					w.Header().Set("Access-Control-Allow-Origin", "*")
				} else {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
				}
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Client-ID")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
