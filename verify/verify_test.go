package verify

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"

	"github.com/mark3labs/agentkit"
	"github.com/mark3labs/agentkit/evm"
	"github.com/mark3labs/agentkit/svm"
)

// ethSignHash replicates evm's unexported signHash for test-side signing.
func ethSignHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}

func evmFormat(c agentkit.Challenge, ref string) string {
	return evm.Format(evm.Info{
		Domain:   c.Domain,
		URI:      c.URI,
		Version:  c.Version,
		ChainRef: ref,
		Nonce:    c.Nonce,
		IssuedAt: c.IssuedAt,
	}, c.Address)
}

func svmFormat(c agentkit.Challenge, ref string) string {
	return svm.Format(svm.Info{
		Domain:   c.Domain,
		URI:      c.URI,
		Version:  c.Version,
		ChainRef: ref,
		Nonce:    c.Nonce,
		IssuedAt: c.IssuedAt,
	}, c.Address)
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

func TestVerifyEVMRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	c := agentkit.Challenge{
		Domain:   "api.example.com",
		Address:  address,
		URI:      "https://api.example.com/data",
		Version:  "1",
		ChainID:  "eip155:8453",
		Type:     agentkit.TypeEIP191,
		Nonce:    "deadbeef",
		IssuedAt: "2025-01-01T00:00:00Z",
	}

	// Build the exact canonical message so we sign what Verify will reassemble.
	msg := formatForTest(t, c)
	hash := ethSignHash([]byte(msg))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	c.Signature = "0x" + hexEncode(sig)

	res := Verify(c, Options{})
	if res.Error != nil {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	if !res.Valid || res.Address != address {
		t.Fatalf("expected valid result echoing address, got %+v", res)
	}
}

func TestVerifyEVMWrongType(t *testing.T) {
	c := agentkit.Challenge{
		ChainID: "eip155:8453",
		Type:    agentkit.TypeEd25519,
	}
	res := Verify(c, Options{})
	if res.Valid || !errors.Is(res.Error, agentkit.ErrTypeNamespaceMismatch) {
		t.Fatalf("expected ErrTypeNamespaceMismatch, got %v", res.Error)
	}
}

func TestVerifySolanaRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatal(err)
	}
	address := base58.Encode(pub)

	c := agentkit.Challenge{
		Domain:   "api.example.com",
		Address:  address,
		URI:      "https://api.example.com/data",
		Version:  "1",
		ChainID:  "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp",
		Type:     agentkit.TypeEd25519,
		Nonce:    "deadbeef",
		IssuedAt: "2025-01-01T00:00:00Z",
	}

	msg := formatForTest(t, c)
	sig := ed25519.Sign(priv, []byte(msg))
	c.Signature = base58.Encode(sig)

	res := Verify(c, Options{})
	if res.Error != nil {
		t.Fatalf("unexpected error: %v", res.Error)
	}
	if !res.Valid || res.Address != address {
		t.Fatalf("expected valid result echoing address, got %+v", res)
	}
}

func TestVerifyUnsupportedNamespace(t *testing.T) {
	c := agentkit.Challenge{ChainID: "bip122:000000000019d6689c085ae165831e93"}
	res := Verify(c, Options{})
	if res.Valid || res.Error == nil {
		t.Fatalf("expected an error for unsupported namespace, got %+v", res)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	c := agentkit.Challenge{
		Domain:   "api.example.com",
		Address:  address,
		URI:      "https://api.example.com/data",
		Version:  "1",
		ChainID:  "eip155:8453",
		Type:     agentkit.TypeEIP191,
		Nonce:    "deadbeef",
		IssuedAt: "2025-01-01T00:00:00Z",
	}
	msg := formatForTest(t, c)
	hash := ethSignHash([]byte(msg))
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		t.Fatal(err)
	}
	if sig[64] < 27 {
		sig[64] += 27
	}
	sig[0] ^= 0xFF // tamper
	c.Signature = "0x" + hexEncode(sig)

	res := Verify(c, Options{})
	if res.Valid {
		t.Fatal("expected tampered signature to fail verification")
	}
}

// formatForTest reassembles the exact message Verify will build internally,
// so tests can sign it ahead of time without duplicating Format's internals.
func formatForTest(t *testing.T, c agentkit.Challenge) string {
	t.Helper()
	ns, ref, err := agentkit.ClassifyChain(c.ChainID)
	if err != nil {
		t.Fatal(err)
	}
	switch ns {
	case agentkit.NamespaceEIP155:
		return evmFormat(c, ref)
	case agentkit.NamespaceSolana:
		return svmFormat(c, ref)
	default:
		t.Fatalf("unsupported namespace for %s", c.ChainID)
		return ""
	}
}
