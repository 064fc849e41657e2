package policy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mark3labs/agentkit"
	"github.com/mark3labs/agentkit/evm"
	"github.com/mark3labs/agentkit/header"
	"github.com/mark3labs/agentkit/store"
)

type stubLookup struct {
	humanID string
	err     error
}

func (s stubLookup) LookupHuman(ctx context.Context, chainID, address string) (string, error) {
	return s.humanID, s.err
}

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
}

func ethSignHash(data []byte) []byte {
	msg := "\x19Ethereum Signed Message:\n" + itoa(len(data)) + string(data)
	return crypto.Keccak256([]byte(msg))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// signedRequest builds a GET request to resourceURL carrying a valid,
// signed agentkit header for that exact URL.
func signedRequest(t *testing.T, resourceURL string, now time.Time) *http.Request {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	req := httptest.NewRequest(http.MethodGet, resourceURL, nil)

	c := agentkit.Challenge{
		Domain:   req.URL.Hostname(),
		Address:  address,
		URI:      resourceURL,
		Version:  "1",
		ChainID:  "eip155:8453",
		Type:     agentkit.TypeEIP191,
		Nonce:    "deadbeef",
		IssuedAt: now.Format(time.RFC3339),
	}

	msg := evm.Format(evm.Info{
		Domain:   c.Domain,
		URI:      c.URI,
		Version:  c.Version,
		ChainRef: "8453",
		Nonce:    c.Nonce,
		IssuedAt: c.IssuedAt,
	}, c.Address)

	hash := ethSignHash([]byte(msg))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	c.Signature = "0x" + hexEncode(sig)

	encoded, err := header.Encode(c)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set(header.HeaderName, encoded)
	return req
}

func TestRequestHookNoHeaderReturnsNoDecision(t *testing.T) {
	mode := agentkit.Free()
	h, err := New(mode, store.NewMemory(), stubLookup{humanID: "abc"})
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil)
	if h.RequestHook(req) {
		t.Fatal("expected no decision with no header")
	}
}

func TestRequestHookFreeModeGrantsAccess(t *testing.T) {
	now := time.Now().UTC()
	h, err := New(agentkit.Free(), store.NewMemory(), stubLookup{humanID: "abc"}, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	req := signedRequest(t, "http://api.example.com/data", now)
	if !h.RequestHook(req) {
		t.Fatal("expected free mode to grant access")
	}
}

func TestRequestHookAgentNotVerifiedReturnsNoDecision(t *testing.T) {
	now := time.Now().UTC()
	h, err := New(agentkit.Free(), store.NewMemory(), stubLookup{humanID: ""}, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	req := signedRequest(t, "http://api.example.com/data", now)
	if h.RequestHook(req) {
		t.Fatal("expected no decision when human lookup returns empty")
	}
}

func TestRequestHookFreeTrialGrantsUpToCap(t *testing.T) {
	now := time.Now().UTC()
	st := store.NewMemory()
	h, err := New(agentkit.FreeTrial(2), st, stubLookup{humanID: "human-1"}, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		req := signedRequest(t, "http://api.example.com/data", now)
		req.Header.Set(header.HeaderName, reencodeWithNonce(t, req, itoa(i)+"-nonce"))
		if !h.RequestHook(req) {
			t.Fatalf("expected grant on call %d", i)
		}
	}

	req := signedRequest(t, "http://api.example.com/data", now)
	req.Header.Set(header.HeaderName, reencodeWithNonce(t, req, "3rd-nonce"))
	if h.RequestHook(req) {
		t.Fatal("expected no decision once the trial cap is reached")
	}
}

// reencodeWithNonce rebuilds req's header with a distinct nonce, signed by a
// fresh wallet. Distinct nonces are required here: RequestHook records each
// verified nonce, and the default replay check rejects one seen before.
func reencodeWithNonce(t *testing.T, req *http.Request, nonce string) string {
	t.Helper()
	c, err := header.FromRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	c.Address = crypto.PubkeyToAddress(key.PublicKey).Hex()
	c.Nonce = nonce
	msg := evm.Format(evm.Info{
		Domain:   c.Domain,
		URI:      c.URI,
		Version:  c.Version,
		ChainRef: "8453",
		Nonce:    c.Nonce,
		IssuedAt: c.IssuedAt,
	}, c.Address)
	hash := ethSignHash([]byte(msg))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	c.Signature = "0x" + hexEncode(sig)
	encoded, err := header.Encode(c)
	if err != nil {
		t.Fatal(err)
	}
	return encoded
}

func TestRequestHookRejectsReplayedNonce(t *testing.T) {
	now := time.Now().UTC()
	h, err := New(agentkit.Free(), store.NewMemory(), stubLookup{humanID: "abc"}, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}

	// signedRequest always signs nonce "deadbeef", so a second independently
	// signed request for the same resource replays the first's nonce.
	first := signedRequest(t, "http://api.example.com/data", now)
	if !h.RequestHook(first) {
		t.Fatal("expected the first request to be granted")
	}

	replay := signedRequest(t, "http://api.example.com/data", now)
	if h.RequestHook(replay) {
		t.Fatal("expected a replayed nonce to be rejected")
	}
}

func TestRequestHookDiscountModeRecordsPendingAndReturnsNoDecision(t *testing.T) {
	now := time.Now().UTC()
	h, err := New(agentkit.Discount(20, 0), store.NewMemory(), stubLookup{humanID: "human-1"}, WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatal(err)
	}
	req := signedRequest(t, "http://api.example.com/data", now)
	c, err := header.FromRequest(req)
	if err != nil {
		t.Fatal(err)
	}

	if h.RequestHook(req) {
		t.Fatal("discount mode must never grant access directly")
	}

	rec, found := h.pending.take("/data", c.Address, now)
	if !found {
		t.Fatal("expected a pending-discount record keyed by (endpoint, address)")
	}
	if rec.humanID != "human-1" {
		t.Fatalf("humanID = %q, want human-1", rec.humanID)
	}
}
