// Package svm implements the Sign-In-With-Solana chain codec for solana:*
// chains: formatting the canonical message a wallet signs, and verifying
// the Ed25519 signature that comes back.
package svm

import (
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"github.com/mark3labs/agentkit"
)

// Info carries the fields needed to format a SIWS message for one challenge.
type Info struct {
	Domain         string
	URI            string
	Version        string
	ChainRef       string // base58 genesis-hash prefix, e.g. "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
	Nonce          string
	IssuedAt       string
	ExpirationTime string
	NotBefore      string
	RequestID      string
	Resources      []string
	Statement      string
}

// Format produces the canonical Sign-In-With-Solana message for address to
// sign, in the field order defined by spec §4.A.
func Format(info Info, address string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Solana account:\n", info.Domain)
	fmt.Fprintf(&b, "\n%s\n", address)
	if info.Statement != "" {
		fmt.Fprintf(&b, "\n%s\n", info.Statement)
	}
	fmt.Fprintf(&b, "\nURI: %s\n", info.URI)
	fmt.Fprintf(&b, "Version: %s\n", info.Version)
	fmt.Fprintf(&b, "Chain ID: %s\n", info.ChainRef)
	fmt.Fprintf(&b, "Nonce: %s\n", info.Nonce)
	fmt.Fprintf(&b, "Issued At: %s", info.IssuedAt)
	if info.ExpirationTime != "" {
		fmt.Fprintf(&b, "\nExpiration Time: %s", info.ExpirationTime)
	}
	if info.NotBefore != "" {
		fmt.Fprintf(&b, "\nNot Before: %s", info.NotBefore)
	}
	if info.RequestID != "" {
		fmt.Fprintf(&b, "\nRequest ID: %s", info.RequestID)
	}
	if len(info.Resources) > 0 {
		fmt.Fprintf(&b, "\nResources:")
		for _, r := range info.Resources {
			fmt.Fprintf(&b, "\n- %s", r)
		}
	}
	return b.String()
}

// Verify base58-decodes signature (expects 64 bytes) and address (expects a
// 32-byte Ed25519 public key), then performs Ed25519 detached verification
// over the UTF-8 bytes of message (spec §4.A).
func Verify(message, address, signature string) (bool, error) {
	sigBytes, err := base58.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", agentkit.ErrInvalidSignatureLength, err)
	}
	if len(sigBytes) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: got %d bytes", agentkit.ErrInvalidSignatureLength, len(sigBytes))
	}

	pubKey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return false, fmt.Errorf("%w: %v", agentkit.ErrInvalidPublicKeyLength, err)
	}
	pubKeyBytes := pubKey.Bytes()
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return false, fmt.Errorf("%w: got %d bytes", agentkit.ErrInvalidPublicKeyLength, len(pubKeyBytes))
	}

	ok := ed25519.Verify(ed25519.PublicKey(pubKeyBytes), []byte(message), sigBytes)
	return ok, nil
}
