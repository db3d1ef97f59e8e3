package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
)

// RouterConfig tunes the middleware around the API routes.
type RouterConfig struct {
	Logger      *slog.Logger
	Metrics     *Metrics
	CORSOrigins []string
}

// NewRouter builds the gin engine with middleware, API routes and /metrics,
// wrapped in the CORS handler.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics()
	}

	router := gin.New()
	router.Use(withLogger(logger), requestID(), accessLog(logger), metrics.middleware(), recovery())
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	h.RegisterRoutes(router)

	for _, route := range router.Routes() {
		logger.Info("route registered", "method", route.Method, "path", route.Path)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", requestIDHeader},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         300,
	})(router)
}
