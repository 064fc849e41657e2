// Package validate implements the agentkit message validator (spec §4.C):
// domain binding, URI origin match, temporal bounds, and nonce freshness on
// a parsed Challenge.
package validate

import (
	"fmt"
	"net/url"
	"time"

	"github.com/mark3labs/agentkit"
)

// DefaultMaxAge is the default window within which issuedAt must fall.
const DefaultMaxAge = 5 * time.Minute

// Result is the structured, non-throwing outcome of Validate (spec §4.C:
// "Returns structured {valid, error?}; never throws").
type Result struct {
	Valid bool
	Error error
}

// Options configures a Validate call.
type Options struct {
	// MaxAge bounds how old issuedAt may be. Zero means DefaultMaxAge.
	MaxAge time.Duration
	// CheckNonce reports whether nonce is fresh (true) or already used
	// (false). May perform I/O (e.g. consult a remote store). Optional: a
	// nil CheckNonce skips the replay check, leaving it to the caller.
	CheckNonce func(nonce string) bool
	// Now overrides the validator's clock; nil means time.Now.
	Now func() time.Time
}

// Validate checks a Challenge against the expected resource URI and the
// invariants of spec §3/§4.C/§8 (properties 2 and 3).
func Validate(c agentkit.Challenge, resourceURI string, opts Options) Result {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	expected, err := url.Parse(resourceURI)
	if err != nil {
		return fail(fmt.Errorf("%w: invalid resource URI: %v", agentkit.ErrSchemaInvalid, err))
	}

	if c.Domain != expected.Hostname() {
		return fail(fmt.Errorf("%w: got %q, want %q", agentkit.ErrDomainMismatch, c.Domain, expected.Hostname()))
	}

	payloadURI, err := url.Parse(c.URI)
	if err != nil {
		return fail(fmt.Errorf("%w: payload uri not parseable: %v", agentkit.ErrOriginMismatch, err))
	}
	if origin(payloadURI) != origin(expected) {
		return fail(fmt.Errorf("%w: got %q, want %q", agentkit.ErrOriginMismatch, origin(payloadURI), origin(expected)))
	}

	issuedAt, err := time.Parse(time.RFC3339, c.IssuedAt)
	if err != nil {
		return fail(fmt.Errorf("%w: issuedAt: %v", agentkit.ErrTimestampInvalid, err))
	}
	n := now()
	if issuedAt.After(n) {
		return fail(agentkit.ErrIssuedInFuture)
	}
	if n.Sub(issuedAt) > maxAge {
		return fail(agentkit.ErrChallengeTooOld)
	}

	if c.ExpirationTime != "" {
		expiration, err := time.Parse(time.RFC3339, c.ExpirationTime)
		if err != nil {
			return fail(fmt.Errorf("%w: expirationTime: %v", agentkit.ErrTimestampInvalid, err))
		}
		if expiration.Before(n) {
			return fail(agentkit.ErrExpired)
		}
	}

	if c.NotBefore != "" {
		notBefore, err := time.Parse(time.RFC3339, c.NotBefore)
		if err != nil {
			return fail(fmt.Errorf("%w: notBefore: %v", agentkit.ErrTimestampInvalid, err))
		}
		if notBefore.After(n) {
			return fail(agentkit.ErrNotYetValid)
		}
	}

	if opts.CheckNonce != nil && !opts.CheckNonce(c.Nonce) {
		return fail(agentkit.ErrNonceReplayed)
	}

	return Result{Valid: true}
}

func fail(err error) Result {
	return Result{Valid: false, Error: err}
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}
