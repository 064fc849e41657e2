// Package chi provides a thin Chi-compatible middleware that runs the
// request hook before a route's normal x402 payment gate, granting outright
// access to verified human-linked agents. It is a reference adapter: the
// hook contracts it wires come from the policy package, not from Chi.
package chi

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/agentkit/policy"
)

// Config bundles the per-route Hooks together with the underlying x402
// payment middleware to fall through to when the request hook makes no
// decision.
type Config struct {
	Hooks   *policy.Hooks
	Payment func(http.Handler) http.Handler
	Logger  *slog.Logger
}

// New returns Chi-compatible middleware wrapping next with an access-mode
// check ahead of the normal payment gate.
func New(config Config) func(http.Handler) http.Handler {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		gated := next
		if config.Payment != nil {
			gated = config.Payment(next)
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				gated.ServeHTTP(w, r)
				return
			}
			if config.Hooks.RequestHook(r) {
				logger.Info("agentkit: access granted ahead of payment gate", "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			gated.ServeHTTP(w, r)
		})
	}
}
