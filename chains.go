package agentkit

import (
	"fmt"
	"strconv"
	"strings"
)

// Namespace identifies the signature family a CAIP-2 chainId selects.
type Namespace int

const (
	// NamespaceUnknown is returned for a chainId with no recognized prefix.
	NamespaceUnknown Namespace = iota
	// NamespaceEIP155 covers "eip155:<decimal chain id>" EVM chains.
	NamespaceEIP155
	// NamespaceSolana covers "solana:<base58 genesis hash prefix>" chains.
	NamespaceSolana
)

const (
	prefixEIP155 = "eip155:"
	prefixSolana = "solana:"
)

// ClassifyChain parses a CAIP-2 chainId and returns its namespace and the
// reference part after the colon. An unrecognized prefix is
// ErrUnsupportedNamespace; a recognized prefix with a syntactically invalid
// reference (eip155 requires a decimal chain id) is ErrInvalidChainID.
func ClassifyChain(chainID string) (Namespace, string, error) {
	switch {
	case strings.HasPrefix(chainID, prefixEIP155):
		ref := strings.TrimPrefix(chainID, prefixEIP155)
		if ref == "" {
			return NamespaceUnknown, "", fmt.Errorf("%w: empty eip155 reference", ErrInvalidChainID)
		}
		if _, err := strconv.ParseUint(ref, 10, 64); err != nil {
			return NamespaceUnknown, "", fmt.Errorf("%w: eip155 reference must be decimal: %s", ErrInvalidChainID, ref)
		}
		return NamespaceEIP155, ref, nil
	case strings.HasPrefix(chainID, prefixSolana):
		ref := strings.TrimPrefix(chainID, prefixSolana)
		if ref == "" {
			return NamespaceUnknown, "", fmt.Errorf("%w: empty solana reference", ErrInvalidChainID)
		}
		return NamespaceSolana, ref, nil
	default:
		return NamespaceUnknown, "", fmt.Errorf("%w: %s", ErrUnsupportedNamespace, chainID)
	}
}

// SignatureTypeForNamespace returns the Challenge.Type value a namespace
// requires (spec §3 invariant: type matches the chain namespace).
func SignatureTypeForNamespace(ns Namespace) (string, error) {
	switch ns {
	case NamespaceEIP155:
		return TypeEIP191, nil
	case NamespaceSolana:
		return TypeEd25519, nil
	default:
		return "", ErrUnsupportedNamespace
	}
}

// Deployment describes where the AgentBook registry contract lives for one chain.
type Deployment struct {
	ChainID         string
	ContractAddress string
	RPCURL          string
}

// builtinDeployments is the static chainId -> AgentBook deployment table
// (spec §6 "Built-in deployments", §9 Open Question 1). It ships empty: the
// contract has not been deployed anywhere at inception. Callers MUST supply
// a contract address (agentbook.WithContractAddress) and an RPC endpoint
// (agentbook.WithRPCURL) per chain until entries are added here.
var builtinDeployments = map[string]Deployment{}

// LookupDeployment returns the built-in deployment for a chainId, if any.
func LookupDeployment(chainID string) (Deployment, bool) {
	d, ok := builtinDeployments[chainID]
	return d, ok
}
