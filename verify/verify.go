// Package verify implements the agentkit signature verifier (spec §4.D):
// it dispatches a parsed Challenge to the correct chain codec, reassembles
// the canonical signed message from the payload fields, and reports
// whether the signature checks out.
package verify

import (
	"fmt"

	"github.com/mark3labs/agentkit"
	"github.com/mark3labs/agentkit/evm"
	"github.com/mark3labs/agentkit/svm"
)

// Result is the structured, non-throwing outcome of Verify.
type Result struct {
	Valid   bool
	Address string
	Error   error
}

// EVMVerifier lets callers plug in a verifier that also understands
// EIP-1271 (contract wallets) and EIP-6492 (counterfactual wallets), both
// of which require an RPC call the default offline verifier can't make.
type EVMVerifier = evm.Verifier

// Options configures a Verify call.
type Options struct {
	// EVMVerifier overrides the default EIP-191-only verifier. Nil uses evm.DefaultVerifier.
	EVMVerifier EVMVerifier
}

// Verify checks that c.Signature was produced by c.Address over the
// canonical message for c's chain family, per spec §3/§4.A/§4.D. Both
// chain families verify an asserted address rather than recovering an
// unknown one: the EVM codec internally recovers-and-compares, and the
// address on success is always echoed from the payload.
func Verify(c agentkit.Challenge, opts Options) Result {
	ns, ref, err := agentkit.ClassifyChain(c.ChainID)
	if err != nil {
		return Result{Error: err}
	}

	wantType, err := agentkit.SignatureTypeForNamespace(ns)
	if err != nil {
		return Result{Error: err}
	}
	if c.Type != wantType {
		return Result{Error: fmt.Errorf("%w: chainId %s requires type %s, got %s", agentkit.ErrTypeNamespaceMismatch, c.ChainID, wantType, c.Type)}
	}

	switch ns {
	case agentkit.NamespaceEIP155:
		info := evm.Info{
			Domain:         c.Domain,
			URI:            c.URI,
			Version:        c.Version,
			ChainRef:       ref,
			Nonce:          c.Nonce,
			IssuedAt:       c.IssuedAt,
			ExpirationTime: c.ExpirationTime,
			NotBefore:      c.NotBefore,
			RequestID:      c.RequestID,
			Resources:      c.Resources,
			Statement:      c.Statement,
		}
		message := evm.Format(info, c.Address)
		ok, err := evm.Verify(message, c.Address, c.Signature, opts.EVMVerifier)
		if err != nil {
			return Result{Error: err}
		}
		if !ok {
			return Result{Error: agentkit.ErrSignatureInvalid}
		}
		return Result{Valid: true, Address: c.Address}

	case agentkit.NamespaceSolana:
		info := svm.Info{
			Domain:         c.Domain,
			URI:            c.URI,
			Version:        c.Version,
			ChainRef:       ref,
			Nonce:          c.Nonce,
			IssuedAt:       c.IssuedAt,
			ExpirationTime: c.ExpirationTime,
			NotBefore:      c.NotBefore,
			RequestID:      c.RequestID,
			Resources:      c.Resources,
			Statement:      c.Statement,
		}
		message := svm.Format(info, c.Address)
		ok, err := svm.Verify(message, c.Address, c.Signature)
		if err != nil {
			return Result{Error: err}
		}
		if !ok {
			return Result{Error: agentkit.ErrSignatureInvalid}
		}
		return Result{Valid: true, Address: c.Address}

	default:
		return Result{Error: fmt.Errorf("%w: %s", agentkit.ErrUnsupportedNamespace, c.ChainID)}
	}
}
