package agentkit

import "errors"

// Sentinel errors surfaced across the agentkit packages, one per failure
// class (see spec §7). Callers match with errors.Is; the request hook never
// lets any of these escape across the adapter boundary unmapped.

var (
	// ErrMissingHeader indicates the agentkit header was absent from the request.
	ErrMissingHeader = errors.New("agentkit: missing header")

	// ErrMalformedHeader indicates the header value was not valid base64 or
	// not valid JSON.
	ErrMalformedHeader = errors.New("agentkit: malformed header")

	// ErrUnsupportedVersion indicates the payload's version field is not one
	// this server understands.
	ErrUnsupportedVersion = errors.New("agentkit: unsupported challenge version")

	// ErrSchemaInvalid indicates a required field was missing or an enum
	// field held a value outside its allowed set.
	ErrSchemaInvalid = errors.New("agentkit: payload failed schema validation")

	// ErrDomainMismatch indicates payload.domain did not match the request's hostname.
	ErrDomainMismatch = errors.New("agentkit: domain mismatch")

	// ErrOriginMismatch indicates payload.uri's origin did not match the request's origin.
	ErrOriginMismatch = errors.New("agentkit: origin mismatch")

	// ErrTimestampInvalid indicates a timestamp field was not ISO-8601 parseable.
	ErrTimestampInvalid = errors.New("agentkit: timestamp not parseable")

	// ErrIssuedInFuture indicates issuedAt was after the validator's clock.
	ErrIssuedInFuture = errors.New("agentkit: issuedAt is in the future")

	// ErrChallengeTooOld indicates issuedAt predates the maxAge window.
	ErrChallengeTooOld = errors.New("agentkit: challenge older than max age")

	// ErrExpired indicates expirationTime has passed.
	ErrExpired = errors.New("agentkit: challenge expired")

	// ErrNotYetValid indicates notBefore has not yet arrived.
	ErrNotYetValid = errors.New("agentkit: challenge not yet valid")

	// ErrNonceReplayed indicates checkNonce rejected a previously-seen nonce.
	ErrNonceReplayed = errors.New("agentkit: nonce already used")

	// ErrUnsupportedNamespace indicates a chainId whose namespace prefix is
	// neither eip155 nor solana.
	ErrUnsupportedNamespace = errors.New("agentkit: unsupported chain namespace")

	// ErrInvalidChainID indicates a chainId that does not match its
	// namespace's reference syntax (e.g. a non-decimal eip155 reference).
	ErrInvalidChainID = errors.New("agentkit: invalid chain id")

	// ErrTypeNamespaceMismatch indicates payload.type does not match the
	// signature family implied by chainId's namespace.
	ErrTypeNamespaceMismatch = errors.New("agentkit: signature type does not match chain namespace")

	// ErrInvalidSignatureLength indicates a signature that fails the
	// family's fixed-length check (EVM: non-empty hex; Solana: 64 bytes).
	ErrInvalidSignatureLength = errors.New("agentkit: invalid signature length")

	// ErrInvalidPublicKeyLength indicates a Solana address that does not
	// decode to a 32-byte Ed25519 public key.
	ErrInvalidPublicKeyLength = errors.New("agentkit: invalid public key length")

	// ErrSignatureInvalid indicates the cryptographic check itself failed.
	ErrSignatureInvalid = errors.New("agentkit: signature verification failed")

	// ErrAgentBookUnconfigured indicates a chain with no usable AgentBook
	// configuration: neither a contract-address override nor a
	// deployment-table entry, or no RPC URL to reach it.
	ErrAgentBookUnconfigured = errors.New("agentkit: no AgentBook contract configured for chain")

	// ErrInvalidAccessMode indicates a policy was constructed with a
	// malformed access mode (e.g. discount percent outside 1..100).
	ErrInvalidAccessMode = errors.New("agentkit: invalid access mode")

	// ErrStoreRequired indicates a policy was configured without a usage
	// store. policy.New requires one for every access mode, free included.
	ErrStoreRequired = errors.New("agentkit: access mode requires a usage store")
)
