// Package agentkit implements the server side of the agentkit HTTP
// extension: it lets a protected endpoint distinguish automated traffic
// backed by a verified human from anonymous bots, and apply a configurable
// access policy (free bypass, free trial, or percentage discount) to
// requests that prove personhood by signing a wallet challenge tied to an
// on-chain human-identifier registry (the AgentBook).
//
// The core of this package is adapter-agnostic: it exposes a request hook
// and, for discount mode, a verify-failure hook, and leaves HTTP framework
// wiring, on-chain settlement, and storage backends to callers. See the
// header, verify, validate, agentbook, store, challenge, and policy
// sub-packages for the individual moving parts, and integrations/chi and
// integrations/gin for reference adapters.
package agentkit

import (
	"encoding/json"
	"fmt"
	"time"
)

// Challenge is the logical message a client signs and returns, carried
// base64-JSON-encoded in the agentkit HTTP header.
type Challenge struct {
	Domain          string   `json:"domain"`
	Address         string   `json:"address"`
	URI             string   `json:"uri"`
	Version         string   `json:"version"`
	ChainID         string   `json:"chainId"`
	Type            string   `json:"type"`
	Nonce           string   `json:"nonce"`
	IssuedAt        string   `json:"issuedAt"`
	ExpirationTime  string   `json:"expirationTime,omitempty"`
	NotBefore       string   `json:"notBefore,omitempty"`
	RequestID       string   `json:"requestId,omitempty"`
	Resources       []string `json:"resources,omitempty"`
	Statement       string   `json:"statement,omitempty"`
	SignatureScheme string   `json:"signatureScheme,omitempty"`
	Signature       string   `json:"signature"`
}

// Signature type families recognized in Challenge.Type.
const (
	TypeEIP191  = "eip191"
	TypeEd25519 = "ed25519"
)

// Optional signature schemes recognized in Challenge.SignatureScheme.
const (
	SchemeEIP191  = "eip191"
	SchemeEIP1271 = "eip1271"
	SchemeEIP6492 = "eip6492"
	SchemeSIWS    = "siws"
)

// SupportedChain is advertised in the 402 response's agentkit.supportedChains.
type SupportedChain struct {
	ChainID         string `json:"chainId"`
	Type            string `json:"type"`
	SignatureScheme string `json:"signatureScheme,omitempty"`
}

// ModeKind tags the variant held by an AccessMode.
type ModeKind int

const (
	// ModeFree grants access unconditionally once a request is verified.
	ModeFree ModeKind = iota
	// ModeFreeTrial grants access for the first Uses verified requests per human.
	ModeFreeTrial
	// ModeDiscount lets a verified human settle at a reduced amount, up to Uses times.
	ModeDiscount
)

// AccessMode is the tagged value described in spec §3: free, free-trial{uses},
// or discount{percent, uses}.
type AccessMode struct {
	Kind    ModeKind
	Uses    int // free-trial: positive int, default 1. discount: positive int, 0 = unbounded.
	Percent int // discount only: 1..100.
}

// Free returns the unconditional-bypass access mode.
func Free() AccessMode { return AccessMode{Kind: ModeFree} }

// FreeTrial returns a free-trial access mode capped at uses grants per human.
// uses <= 0 defaults to 1.
func FreeTrial(uses int) AccessMode {
	if uses <= 0 {
		uses = 1
	}
	return AccessMode{Kind: ModeFreeTrial, Uses: uses}
}

// Discount returns a percentage-discount access mode. uses == 0 means
// unbounded; negative uses are rejected by Validate.
func Discount(percent, uses int) AccessMode {
	return AccessMode{Kind: ModeDiscount, Percent: percent, Uses: uses}
}

// modeKindNames maps ModeKind to the tagged-value string a client sees in
// the 402 response's "mode" field (spec §6).
var modeKindNames = map[ModeKind]string{
	ModeFree:      "free",
	ModeFreeTrial: "free-trial",
	ModeDiscount:  "discount",
}

// MarshalJSON renders an AccessMode as the tagged value spec §6 describes
// (free, free-trial{uses}, discount{percent,uses}) rather than the bare
// struct fields, so a client can act on the echoed mode without knowing this
// package's internal ModeKind encoding.
func (m AccessMode) MarshalJSON() ([]byte, error) {
	name, ok := modeKindNames[m.Kind]
	if !ok {
		return nil, fmt.Errorf("agentkit: unknown access mode kind %d", m.Kind)
	}
	switch m.Kind {
	case ModeFreeTrial:
		return json.Marshal(struct {
			Kind string `json:"kind"`
			Uses int    `json:"uses"`
		}{name, m.Uses})
	case ModeDiscount:
		return json.Marshal(struct {
			Kind    string `json:"kind"`
			Percent int    `json:"percent"`
			Uses    int    `json:"uses"`
		}{name, m.Percent, m.Uses})
	default:
		return json.Marshal(struct {
			Kind string `json:"kind"`
		}{name})
	}
}

// Validate checks an AccessMode's invariants (spec §3, §7 configuration errors).
func (m AccessMode) Validate() error {
	switch m.Kind {
	case ModeFree:
		return nil
	case ModeFreeTrial:
		if m.Uses <= 0 {
			return ErrInvalidAccessMode
		}
		return nil
	case ModeDiscount:
		if m.Percent < 1 || m.Percent > 100 {
			return ErrInvalidAccessMode
		}
		if m.Uses < 0 {
			return ErrInvalidAccessMode
		}
		return nil
	default:
		return ErrInvalidAccessMode
	}
}

// Unbounded reports whether a discount mode has no usage cap.
func (m AccessMode) Unbounded() bool {
	return m.Kind == ModeDiscount && m.Uses <= 0
}

// EventKind names one of the observability-only hook events (spec §6).
type EventKind string

const (
	EventAgentVerified    EventKind = "agent_verified"
	EventAgentNotVerified EventKind = "agent_not_verified"
	EventValidationFailed EventKind = "validation_failed"
	EventDiscountApplied  EventKind = "discount_applied"
	EventDiscountExhaust  EventKind = "discount_exhausted"
)

// Event is emitted by the policy hooks for observability; it carries no
// behavior of its own and must never block the hook that emits it.
type Event struct {
	Kind     EventKind
	Resource string
	Address  string
	HumanID  string
	Err      error
	At       time.Time
}
