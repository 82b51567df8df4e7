package api

import (
	"context"
	"net/http"
	"time"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/comment-moderation-api/internal/metrics"
	"github.com/comment-moderation-api/internal/service"
	"github.com/comment-moderation-api/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// NewRouter creates and configures the Gin router
func NewRouter(services *service.Services, m *metrics.Metrics, db HealthChecker, log zerolog.Logger) *gin.Engine {
	router := gin.New()

	// Middleware
	router.Use(recoveryMiddleware(log))
	router.Use(loggingMiddleware(log))
	router.Use(corsMiddleware())

	// Handlers
	commentHandler := NewCommentHandler(services, log)
	articleHandler := NewArticleHandler(services, log)
	exportHandler := NewExportHandler(services, log)

	router.GET("/health", healthCheck(db))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	// API v1
	v1 := router.Group("/v1")
	{
		v1.GET("/stats", statsHandler(services, log))

		articles := v1.Group("/articles")
		{
			articles.POST("", articleHandler.Create)
			articles.GET("/:id", articleHandler.Get)
			articles.GET("/:id/comments", articleHandler.ListComments)
			articles.POST("/:id/recount", articleHandler.Recount)
		}

		comments := v1.Group("/comments")
		{
			comments.POST("", commentHandler.Create)
			comments.GET("/:id", commentHandler.Get)
			comments.POST("/:id/approve", commentHandler.Approve)
			comments.POST("/:id/reject", commentHandler.Reject)
			comments.PATCH("/:id/status", commentHandler.SetStatus)
			comments.POST("/:id/like", commentHandler.Like)
			comments.DELETE("/:id", commentHandler.Delete)
		}

		v1.GET("/exports", exportHandler.StreamExport)
	}

	return router
}

// healthCheck returns the health status, including store reachability
func healthCheck(db HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		body := gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Format(time.RFC3339),
			"service":   logger.ServiceName,
		}

		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
			defer cancel()
			if err := db.HealthCheck(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "unhealthy"
				body["error"] = err.Error()
			}
		}

		c.JSON(status, body)
	}
}

// statsHandler serves the dashboard summary
func statsHandler(services *service.Services, log zerolog.Logger) gin.HandlerFunc {
	log = log.With().Str("handler", "stats").Logger()
	return func(c *gin.Context) {
		top, err := queryInt(c, "top", 0)
		if err != nil {
			respondError(c, log, err)
			return
		}

		stats, err := services.Stats.Get(c.Request.Context(), top)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

// respondError maps an error to its HTTP status and the {"error","code"} body
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	code := apperr.Code(err)
	status := apperr.HTTPStatus(code)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("Request failed")
		if code == "" {
			code = "INTERNAL_ERROR"
		}
		message = "internal server error"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": message, "code": code})
}

// recoveryMiddleware handles panics
func recoveryMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error().Interface("error", err).Msg("Panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
					"code":  "INTERNAL_ERROR",
				})
			}
		}()
		c.Next()
	}
}

// loggingMiddleware logs requests
func loggingMiddleware(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		event := log.Info()
		if statusCode >= 400 {
			event = log.Warn()
		}
		if statusCode >= 500 {
			event = log.Error()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", statusCode).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("Request completed")
	}
}

// corsMiddleware handles CORS
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
