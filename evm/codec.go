// Package evm implements the EIP-191 "Sign-In With Ethereum" chain codec
// for eip155:* chains: formatting the canonical message a wallet signs, and
// verifying the signature that comes back.
package evm

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/mark3labs/agentkit"
)

// Info carries the fields needed to format a SIWE message for one challenge.
type Info struct {
	Domain         string
	URI            string
	Version        string
	ChainRef       string // decimal eip155 reference, e.g. "8453"
	Nonce          string
	IssuedAt       string
	ExpirationTime string
	NotBefore      string
	RequestID      string
	Resources      []string
	Statement      string
}

// Format produces the canonical EIP-4361 message for address to sign,
// in the field order defined by spec §4.A.
func Format(info Info, address string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s wants you to sign in with your Ethereum account:\n", info.Domain)
	fmt.Fprintf(&b, "%s\n\n", address)
	if info.Statement != "" {
		fmt.Fprintf(&b, "%s\n\n", info.Statement)
	}
	fmt.Fprintf(&b, "URI: %s\n", info.URI)
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

// Verifier performs EIP-191 ECDSA recovery-and-compare by default, but may
// be swapped for one that also speaks EIP-1271 (contract wallets) or
// EIP-6492 (counterfactual wallets), both of which require an RPC call the
// default verifier doesn't make. See WithVerifier.
type Verifier func(message, address, signature string) (bool, error)

// DefaultVerifier recovers the signer's address from a 65-byte EIP-191
// signature and compares it (case-insensitively) against address.
func DefaultVerifier(message, address, signature string) (bool, error) {
	sigBytes, err := hexutil.Decode(signature)
	if err != nil {
		return false, fmt.Errorf("%w: %v", agentkit.ErrInvalidSignatureLength, err)
	}
	if len(sigBytes) != 65 {
		return false, fmt.Errorf("%w: got %d bytes", agentkit.ErrInvalidSignatureLength, len(sigBytes))
	}

	msgHash := signHash([]byte(message))

	// MetaMask and most wallets emit recovery id as 27/28; go-ethereum
	// expects 0/1.
	sig := make([]byte, len(sigBytes))
	copy(sig, sigBytes)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(msgHash, sig)
	if err != nil {
		return false, fmt.Errorf("%w: %v", agentkit.ErrSignatureInvalid, err)
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	if !strings.EqualFold(recovered.Hex(), address) {
		return false, nil
	}
	return true, nil
}

// signHash computes the ERC-191 personal-sign hash:
// keccak256("\x19Ethereum Signed Message:\n" + len(data) + data).
func signHash(data []byte) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}

// Verify checks that signature over message was produced by address, using
// verifier (DefaultVerifier if nil). It also performs the family's
// lexical pre-checks (spec §4.A: nonzero hex signature, valid hex address).
func Verify(message, address, signature string, verifier Verifier) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("%w: invalid EVM address %q", agentkit.ErrSignatureInvalid, address)
	}
	if signature == "" || !strings.HasPrefix(signature, "0x") || len(signature) <= 2 {
		return false, fmt.Errorf("%w: signature must be non-empty 0x-prefixed hex", agentkit.ErrInvalidSignatureLength)
	}

	if verifier == nil {
		verifier = DefaultVerifier
	}
	return verifier(message, address, signature)
}

// Now is exposed for tests that need to format a message with the current
// time in RFC3339, matching the IssuedAt format the challenge declarator emits.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
