package chi

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
	"github.com/mark3labs/agentkit/policy"
	"github.com/mark3labs/agentkit/store"
)

type stubLookup struct{ humanID string }

func (s stubLookup) LookupHuman(ctx context.Context, chainID, address string) (string, error) {
	return s.humanID, nil
}

func signedRequest(t *testing.T, url string) *http.Request {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()
	req := httptest.NewRequest(http.MethodGet, url, nil)

	c := agentkit.Challenge{
		Domain:   req.URL.Hostname(),
		Address:  address,
		URI:      url,
		Version:  "1",
		ChainID:  "eip155:8453",
		Type:     agentkit.TypeEIP191,
		Nonce:    "chi-test-nonce",
		IssuedAt: time.Now().UTC().Format(time.RFC3339),
	}
	msg := evm.Format(evm.Info{
		Domain:   c.Domain,
		URI:      c.URI,
		Version:  c.Version,
		ChainRef: "8453",
		Nonce:    c.Nonce,
		IssuedAt: c.IssuedAt,
	}, c.Address)

	hash := crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n" + itoa(len(msg)) + msg))
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

func hexEncode(b []byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hexDigits[c>>4]
		out[i*2+1] = hexDigits[c&0x0f]
	}
	return string(out)
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

func TestMiddlewareGrantsAccessBypassingPaymentGate(t *testing.T) {
	hooks, err := policy.New(agentkit.Free(), store.NewMemory(), stubLookup{humanID: "human-1"})
	if err != nil {
		t.Fatal(err)
	}

	paymentCalled := false
	payment := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paymentCalled = true
			w.WriteHeader(http.StatusPaymentRequired)
		})
	}

	mw := New(Config{Hooks: hooks, Payment: payment})
	handlerCalled := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	})

	req := signedRequest(t, "http://api.example.com/data")
	rec := httptest.NewRecorder()
	mw(next).ServeHTTP(rec, req)

	if !handlerCalled {
		t.Fatal("expected next handler to run when access is granted")
	}
	if paymentCalled {
		t.Fatal("expected payment gate to be bypassed when access is granted")
	}
}

func TestMiddlewareFallsThroughToPaymentGateWithoutHeader(t *testing.T) {
	hooks, err := policy.New(agentkit.Free(), store.NewMemory(), stubLookup{humanID: "human-1"})
	if err != nil {
		t.Fatal(err)
	}

	paymentCalled := false
	payment := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			paymentCalled = true
			w.WriteHeader(http.StatusPaymentRequired)
		})
	}

	mw := New(Config{Hooks: hooks, Payment: payment})
	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/data", nil)
	rec := httptest.NewRecorder()
	mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})).ServeHTTP(rec, req)

	if !paymentCalled {
		t.Fatal("expected payment gate to run when the request hook makes no decision")
	}
}
