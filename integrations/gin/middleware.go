// Package gin provides a thin Gin-compatible middleware translating the
// policy package's request hook into a gin.HandlerFunc that runs ahead of a
// route's normal x402 payment gate.
package gin

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/mark3labs/agentkit/policy"
)

// Config bundles the per-route Hooks together with the Gin payment-gating
// middleware to fall through to when the request hook makes no decision.
type Config struct {
	Hooks   *policy.Hooks
	Payment gin.HandlerFunc
	Logger  *slog.Logger
}

// New returns Gin middleware checking the access mode before the normal
// payment gate runs.
func New(config Config) gin.HandlerFunc {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		if c.Request.Method != "OPTIONS" && config.Hooks.RequestHook(c.Request) {
			logger.Info("agentkit: access granted ahead of payment gate", "path", c.Request.URL.Path)
			c.Next()
			return
		}
		if config.Payment != nil {
			config.Payment(c)
			return
		}
		c.Next()
	}
}
