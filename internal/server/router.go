package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/example/chembot/internal/logger"
	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// WebhookPath is where Telegram posts updates, followed by the webhook secret
const WebhookPath = "/telegram/webhook"

var errBadSecret = errors.New("invalid webhook secret")

// UpdateDispatcher handles updates received by the webhook
type UpdateDispatcher interface {
	Dispatch(update tgbotapi.Update)
}

// Pinger reports whether the database is reachable
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterConfig holds the router's collaborators. The webhook is mounted only when
// both Dispatcher and WebhookSecret are set.
type RouterConfig struct {
	Dispatcher    UpdateDispatcher
	WebhookSecret string
	DB            Pinger
	Logger        *logger.Logger
}

// APIError is the body of a failed request
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ErrorEnvelope wraps APIError in every error response
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func respondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: APIError{Message: msg, Code: code}})
}

// NewRouter builds the gin engine serving the health check and the webhook
func NewRouter(cfg RouterConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	log = log.With("component", "http")

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	router.GET("/healthcheck", healthCheck(cfg.DB))
	switch {
	case cfg.Dispatcher != nil && cfg.WebhookSecret != "":
		router.POST(WebhookPath+"/:secret", webhook(cfg.Dispatcher, cfg.WebhookSecret, log))
	case cfg.Dispatcher != nil:
		log.Warn("webhook secret missing, webhook endpoint disabled")
	}
	return router
}

func healthCheck(db Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				respondError(c, http.StatusServiceUnavailable, "database_unavailable", err)
				return
			}
		}
		c.String(http.StatusOK, "ok")
	}
}

// webhook acknowledges the update at once and handles it in the background.
// Requests without the secret are rejected before the body is read.
func webhook(d UpdateDispatcher, secret string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(secret)) != 1 {
			log.Warn("webhook request with invalid secret", "remote", c.ClientIP())
			respondError(c, http.StatusForbidden, "forbidden", errBadSecret)
			return
		}
		var update tgbotapi.Update
		if err := c.ShouldBindJSON(&update); err != nil {
			log.Warn("invalid webhook payload", "error", err)
			respondError(c, http.StatusBadRequest, "invalid_update", err)
			return
		}
		d.Dispatch(update)
		c.Status(http.StatusOK)
	}
}

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
