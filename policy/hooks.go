// Package policy implements the request-time state machine that ties the
// chain codecs, header codec, validator, verifier, AgentBook client, and
// usage store together into the two hooks an HTTP adapter calls: the
// request hook and the discount-mode verify-failure hook (spec §4.H).
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/agentkit"
	"github.com/mark3labs/agentkit/header"
	"github.com/mark3labs/agentkit/store"
	"github.com/mark3labs/agentkit/validate"
	"github.com/mark3labs/agentkit/verify"
)

// HumanLookup resolves a wallet address to a human identifier; satisfied by
// *agentbook.Client.LookupHuman.
type HumanLookup interface {
	LookupHuman(ctx context.Context, chainID, address string) (string, error)
}

// Option configures a Hooks value.
type Option func(*Hooks)

// WithValidateOptions overrides the message-validator options used by RequestHook.
func WithValidateOptions(opts validate.Options) Option {
	return func(h *Hooks) { h.validateOpts = opts }
}

// WithVerifyOptions overrides the signature-verifier options used by RequestHook.
func WithVerifyOptions(opts verify.Options) Option {
	return func(h *Hooks) { h.verifyOpts = opts }
}

// WithEventSink registers a callback invoked for every emitted Event, in
// addition to the built-in slog logging.
func WithEventSink(sink func(agentkit.Event)) Option {
	return func(h *Hooks) { h.sink = sink }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hooks) { h.logger = logger }
}

// WithClock overrides the hooks' clock; used by tests.
func WithClock(now func() time.Time) Option {
	return func(h *Hooks) { h.now = now }
}

// Hooks orchestrates components A-G behind the two request-boundary hooks
// of spec §4.H.
type Hooks struct {
	mode         agentkit.AccessMode
	store        store.Store
	lookup       HumanLookup
	validateOpts validate.Options
	verifyOpts   verify.Options
	sink         func(agentkit.Event)
	logger       *slog.Logger
	now          func() time.Time
	pending      *pendingStore
}

// New constructs Hooks for one protected route's access mode.
func New(mode agentkit.AccessMode, st store.Store, lookup HumanLookup, opts ...Option) (*Hooks, error) {
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if st == nil {
		return nil, agentkit.ErrStoreRequired
	}
	h := &Hooks{
		mode:    mode,
		store:   st,
		lookup:  lookup,
		logger:  slog.Default(),
		now:     time.Now,
		pending: newPendingStore(),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.validateOpts.CheckNonce == nil {
		h.validateOpts.CheckNonce = func(n string) bool { return !h.store.HasUsedNonce(n) }
	}
	return h, nil
}

// RequestHook runs the state machine of spec §4.H's Request hook and
// reports whether the request should be granted access outright. A false
// return always means "no decision": the caller's normal payment flow
// proceeds unchanged.
func (h *Hooks) RequestHook(r *http.Request) bool {
	c, err := header.FromRequest(r)
	if err != nil {
		if err == agentkit.ErrMissingHeader {
			return false
		}
		h.emit(agentkit.EventValidationFailed, r.URL.Path, "", "", err)
		return false
	}

	res := validate.Validate(c, resourceURL(r), h.validateOpts)
	if !res.Valid {
		h.emit(agentkit.EventValidationFailed, r.URL.Path, c.Address, "", res.Error)
		return false
	}

	vres := verify.Verify(c, h.verifyOpts)
	if !vres.Valid {
		h.emit(agentkit.EventValidationFailed, r.URL.Path, c.Address, "", vres.Error)
		return false
	}

	// Nonce recording must happen only after successful verification, and
	// before the AgentBook lookup, so a race between two identical replays
	// can let at most one past this point (spec §4.H ordering requirement).
	h.store.RecordNonce(c.Nonce)

	humanID, err := h.lookup.LookupHuman(r.Context(), c.ChainID, vres.Address)
	if err != nil || humanID == "" {
		h.emit(agentkit.EventAgentNotVerified, r.URL.Path, c.Address, "", err)
		return false
	}

	endpoint := r.URL.Path
	switch h.mode.Kind {
	case agentkit.ModeFree:
		h.emit(agentkit.EventAgentVerified, endpoint, c.Address, humanID, nil)
		return true

	case agentkit.ModeFreeTrial:
		count := h.store.GetUsageCount(endpoint, humanID)
		if count >= h.mode.Uses {
			return false
		}
		h.store.IncrementUsage(endpoint, humanID)
		h.emit(agentkit.EventAgentVerified, endpoint, c.Address, humanID, nil)
		return true

	case agentkit.ModeDiscount:
		h.pending.put(endpoint, c.Address, humanID, h.now())
		return false

	default:
		return false
	}
}

func (h *Hooks) emit(kind agentkit.EventKind, resource, address, humanID string, err error) {
	event := agentkit.Event{Kind: kind, Resource: resource, Address: address, HumanID: humanID, Err: err, At: h.now()}
	switch kind {
	case agentkit.EventValidationFailed:
		h.logger.Warn("agentkit: request rejected", "resource", resource, "address", address, "error", err)
	case agentkit.EventAgentNotVerified:
		h.logger.Info("agentkit: agent not verified", "resource", resource, "address", address)
	case agentkit.EventAgentVerified:
		h.logger.Info("agentkit: agent verified", "resource", resource, "address", address, "humanId", humanID)
	case agentkit.EventDiscountApplied:
		h.logger.Info("agentkit: discount applied", "resource", resource, "address", address, "humanId", humanID)
	case agentkit.EventDiscountExhaust:
		h.logger.Info("agentkit: discount exhausted", "resource", resource, "address", address, "humanId", humanID)
	}
	if h.sink != nil {
		h.sink(event)
	}
}

func resourceURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}
