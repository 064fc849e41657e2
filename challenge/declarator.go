// Package challenge builds the agentkit extension block embedded in a 402
// response: the challenge info, the server's supported chains, a schema
// descriptor, and the active access mode (spec §4.G).
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mark3labs/agentkit"
)

// Schema is a draft-2020-12 JSON Schema descriptor of the expected Challenge
// payload, echoed to clients so they can build a conforming request without
// reading this repository's source (spec §6).
type Schema struct {
	Schema     string                    `json:"$schema"`
	Type       string                    `json:"type"`
	Properties map[string]SchemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

// SchemaProperty describes one field of the Challenge payload schema.
type SchemaProperty struct {
	Type string   `json:"type"`
	Enum []string `json:"enum,omitempty"`
}

var defaultSchema = Schema{
	Schema: "https://json-schema.org/draft/2020-12/schema",
	Type:   "object",
	Properties: map[string]SchemaProperty{
		"domain":          {Type: "string"},
		"address":         {Type: "string"},
		"uri":             {Type: "string"},
		"version":         {Type: "string"},
		"chainId":         {Type: "string"},
		"type":            {Type: "string", Enum: []string{agentkit.TypeEIP191, agentkit.TypeEd25519}},
		"nonce":           {Type: "string"},
		"issuedAt":        {Type: "string"},
		"expirationTime":  {Type: "string"},
		"notBefore":       {Type: "string"},
		"requestId":       {Type: "string"},
		"resources":       {Type: "array"},
		"statement":       {Type: "string"},
		"signatureScheme": {Type: "string", Enum: []string{agentkit.SchemeEIP191, agentkit.SchemeEIP1271, agentkit.SchemeEIP6492, agentkit.SchemeSIWS}},
		"signature":       {Type: "string"},
	},
	Required: []string{"domain", "address", "uri", "version", "chainId", "type", "nonce", "issuedAt", "signature"},
}

// Extension is the JSON block emitted under the "agentkit" key of a 402 response.
type Extension struct {
	Info            ChallengeInfo             `json:"info"`
	SupportedChains []agentkit.SupportedChain `json:"supportedChains"`
	Schema          Schema                    `json:"schema"`
	AccessMode      *agentkit.AccessMode      `json:"mode,omitempty"`
}

// ChallengeInfo is the server-minted half of a Challenge: everything the
// server decides before the client ever signs anything.
type ChallengeInfo struct {
	Domain         string   `json:"domain"`
	URI            string   `json:"uri"`
	Version        string   `json:"version"`
	Nonce          string   `json:"nonce"`
	IssuedAt       string   `json:"issuedAt"`
	ExpirationTime string   `json:"expirationTime,omitempty"`
	Statement      string   `json:"statement,omitempty"`
	Resources      []string `json:"resources,omitempty"`
}

// Options configures Declare.
type Options struct {
	// Domain and URI default from the request when empty.
	Domain string
	URI    string
	// Version defaults to "1".
	Version string
	// ExpirationWindow, if positive, sets ExpirationTime = issuedAt + window.
	ExpirationWindow time.Duration
	Statement        string
	SupportedChains  []agentkit.SupportedChain
	AccessMode       *agentkit.AccessMode
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Declare builds the 402-response extension block for r, per spec §4.G.
func Declare(r *http.Request, opts Options) (Extension, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	domain := opts.Domain
	if domain == "" {
		domain = r.Host
		if host, _, err := net.SplitHostPort(r.Host); err == nil {
			domain = host
		}
	}
	uri := opts.URI
	if uri == "" {
		uri = requestURL(r)
	}
	version := opts.Version
	if version == "" {
		version = "1"
	}

	nonce, err := newNonce()
	if err != nil {
		return Extension{}, fmt.Errorf("challenge: failed to mint nonce: %w", err)
	}

	issuedAt := now().UTC()
	info := ChallengeInfo{
		Domain:    domain,
		URI:       uri,
		Version:   version,
		Nonce:     nonce,
		IssuedAt:  issuedAt.Format(time.RFC3339),
		Statement: opts.Statement,
		Resources: []string{uri},
	}
	if opts.ExpirationWindow > 0 {
		info.ExpirationTime = issuedAt.Add(opts.ExpirationWindow).Format(time.RFC3339)
	}

	return Extension{
		Info:            info,
		SupportedChains: opts.SupportedChains,
		Schema:          defaultSchema,
		AccessMode:      opts.AccessMode,
	}, nil
}

// newNonce returns 16 random bytes, hex-encoded, per spec §4.G.
func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func requestURL(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return fmt.Sprintf("%s://%s%s", scheme, r.Host, r.URL.RequestURI())
}
