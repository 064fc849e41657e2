// Package header implements the codec for the agentkit HTTP header: a
// single header whose value is base64 of a UTF-8 JSON Challenge object
// (spec §4.B).
package header

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mark3labs/agentkit"
)

// HeaderName is the canonical header name. Case of the header name is not
// significant on the wire (net/http already canonicalizes it for Get), but
// implementations building requests by hand should use this constant.
const HeaderName = "Agentkit"

const currentVersion = "1"

var requiredFields = []string{"domain", "address", "uri", "version", "chainId", "type", "nonce", "issuedAt", "signature"}

var validTypes = map[string]bool{
	agentkit.TypeEIP191:  true,
	agentkit.TypeEd25519: true,
}

var validSchemes = map[string]bool{
	agentkit.SchemeEIP191:  true,
	agentkit.SchemeEIP1271: true,
	agentkit.SchemeEIP6492: true,
	agentkit.SchemeSIWS:    true,
}

// Parse decodes the base64-JSON value of the agentkit header into a
// Challenge. It rejects values that aren't valid base64, aren't valid
// JSON, or fail schema validation (missing required field or an enum field
// outside its allowed set), each with a distinct wrapped sentinel error
// (spec §4.B, §7).
func Parse(value string) (agentkit.Challenge, error) {
	var c agentkit.Challenge

	if value == "" {
		return c, agentkit.ErrMissingHeader
	}

	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return c, fmt.Errorf("%w: invalid base64 encoding", agentkit.ErrMalformedHeader)
	}

	// A raw JSON parse first, so we can distinguish "field missing" from
	// "field present but empty" when validating the schema below.
	var raw map[string]any
	if err := json.Unmarshal(decoded, &raw); err != nil {
		return c, fmt.Errorf("%w: invalid JSON", agentkit.ErrMalformedHeader)
	}

	if err := json.Unmarshal(decoded, &c); err != nil {
		return c, fmt.Errorf("%w: invalid JSON", agentkit.ErrMalformedHeader)
	}

	if c.Version != currentVersion {
		return c, fmt.Errorf("%w: got %q", agentkit.ErrUnsupportedVersion, c.Version)
	}

	if err := validateSchema(raw, c); err != nil {
		return c, err
	}

	return c, nil
}

func validateSchema(raw map[string]any, c agentkit.Challenge) error {
	for _, field := range requiredFields {
		v, ok := raw[field]
		if !ok {
			return fmt.Errorf("%w: missing field %q", agentkit.ErrSchemaInvalid, field)
		}
		if s, ok := v.(string); ok && s == "" {
			return fmt.Errorf("%w: empty field %q", agentkit.ErrSchemaInvalid, field)
		}
	}
	if !validTypes[c.Type] {
		return fmt.Errorf("%w: unsupported type %q", agentkit.ErrSchemaInvalid, c.Type)
	}
	if c.SignatureScheme != "" && !validSchemes[c.SignatureScheme] {
		return fmt.Errorf("%w: unsupported signatureScheme %q", agentkit.ErrSchemaInvalid, c.SignatureScheme)
	}
	return nil
}

// Encode marshals a Challenge to its base64-JSON wire form.
func Encode(c agentkit.Challenge) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal challenge: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// FromRequest reads and parses the agentkit header from an *http.Request.
// Implementations must accept both "agentkit" and "Agentkit"; net/http's
// header map already canonicalizes the key, so a plain Get suffices.
func FromRequest(r *http.Request) (agentkit.Challenge, error) {
	return Parse(r.Header.Get(HeaderName))
}
