// Package agentbook wraps the on-chain AgentBook registry: resolving a
// wallet address to an anonymous human identifier via a read-only
// lookupHuman call (spec §4.E).
package agentbook

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mark3labs/agentkit"
	"github.com/mark3labs/agentkit/retry"
)

// lookupHumanABI is the minimal ABI fragment for the single view function
// this client calls. There is no abigen binding for AgentBook, so the call
// is packed and unpacked against this literal ABI, the same way the pack's
// SAGE client does for a contract method outside its generated bindings.
const lookupHumanABI = `[{
	"name": "lookupHuman",
	"type": "function",
	"stateMutability": "view",
	"inputs": [{"name": "wallet", "type": "address"}],
	"outputs": [{"name": "humanId", "type": "uint256"}]
}]`

var parsedABI = mustParseABI(lookupHumanABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("agentbook: invalid embedded ABI: %v", err))
	}
	return parsed
}

// Option configures a Client.
type Option func(*Client) error

// Client resolves wallet addresses to human identifiers for one or more
// eip155 chains, caching an *ethclient.Client per chainId.
type Client struct {
	deployments map[string]agentkit.Deployment
	rpcOverride map[string]string
	retryConfig retry.Config

	mu      sync.Mutex
	clients map[string]*ethclient.Client
}

// WithContractAddress overrides the built-in deployment table for chainId,
// letting a caller point at a different AgentBook deployment (e.g. a
// testnet or a private fork) without waiting for it to ship in
// agentkit.LookupDeployment.
func WithContractAddress(chainID, contractAddress string) Option {
	return func(c *Client) error {
		if !common.IsHexAddress(contractAddress) {
			return fmt.Errorf("agentbook: invalid contract address %q for %s", contractAddress, chainID)
		}
		c.deployments[chainID] = agentkit.Deployment{ChainID: chainID, ContractAddress: contractAddress}
		return nil
	}
}

// WithRPCURL overrides the RPC endpoint used for chainId.
func WithRPCURL(chainID, rpcURL string) Option {
	return func(c *Client) error {
		c.rpcOverride[chainID] = rpcURL
		return nil
	}
}

// WithRetryConfig overrides the retry policy applied to the on-chain call.
func WithRetryConfig(cfg retry.Config) Option {
	return func(c *Client) error {
		c.retryConfig = cfg
		return nil
	}
}

// New constructs a Client. Construction fails loudly (spec §4.E step 1) if
// any chain in chainIDs has neither an entry in agentkit's built-in
// deployment table nor a WithContractAddress override — callers must supply
// one explicitly for any chain not yet in the built-in table. Chains named
// only by an option, and not in chainIDs, are not checked here.
func New(chainIDs []string, opts ...Option) (*Client, error) {
	c := &Client{
		deployments: make(map[string]agentkit.Deployment),
		rpcOverride: make(map[string]string),
		retryConfig: retry.DefaultConfig,
		clients:     make(map[string]*ethclient.Client),
	}
	for chainID, d := range collectBuiltin(chainIDs) {
		c.deployments[chainID] = d
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	for _, chainID := range chainIDs {
		if _, ok := c.deployments[chainID]; !ok {
			return nil, fmt.Errorf("%w: %s has no built-in deployment; supply WithContractAddress", agentkit.ErrAgentBookUnconfigured, chainID)
		}
	}
	return c, nil
}

func collectBuiltin(chainIDs []string) map[string]agentkit.Deployment {
	out := make(map[string]agentkit.Deployment)
	for _, chainID := range chainIDs {
		if d, ok := agentkit.LookupDeployment(chainID); ok {
			out[chainID] = d
		}
	}
	return out
}

// LookupHuman resolves address on chainID to its human identifier. It
// returns ("", nil) for "not registered" or any RPC/encoding failure
// (spec §4.E steps 4-5: failures fail closed rather than propagate).
func (c *Client) LookupHuman(ctx context.Context, chainID, address string) (humanID string, err error) {
	if !common.IsHexAddress(address) {
		return "", nil
	}

	client, deployment, err := c.clientFor(chainID)
	if err != nil {
		return "", nil
	}

	data, err := parsedABI.Pack("lookupHuman", common.HexToAddress(address))
	if err != nil {
		return "", nil
	}

	contractAddr := common.HexToAddress(deployment.ContractAddress)
	isRetryable := func(error) bool { return true }

	out, err := retry.WithRetry(ctx, c.retryConfig, isRetryable, func() ([]byte, error) {
		return client.CallContract(ctx, ethereum.CallMsg{To: &contractAddr, Data: data}, nil)
	})
	if err != nil {
		return "", nil
	}

	var humanIDBig *big.Int
	if err := parsedABI.UnpackIntoInterface(&humanIDBig, "lookupHuman", out); err != nil {
		return "", nil
	}
	if humanIDBig == nil || humanIDBig.Sign() == 0 {
		return "", nil
	}
	return strings.ToLower(humanIDBig.Text(16)), nil
}

// clientFor returns the cached *ethclient.Client for chainID, dialing and
// caching it on first use (spec §4.E step 2/"Clients are cached per chainId
// for the lifetime of the verifier").
func (c *Client) clientFor(chainID string) (*ethclient.Client, agentkit.Deployment, error) {
	deployment, ok := c.deployments[chainID]
	if !ok {
		return nil, agentkit.Deployment{}, fmt.Errorf("%w: %s", agentkit.ErrAgentBookUnconfigured, chainID)
	}

	rpcURL := deployment.RPCURL
	if override, ok := c.rpcOverride[chainID]; ok {
		rpcURL = override
	}
	if rpcURL == "" {
		return nil, agentkit.Deployment{}, fmt.Errorf("%w: %s has no RPC URL", agentkit.ErrAgentBookUnconfigured, chainID)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[chainID]; ok {
		return client, deployment, nil
	}

	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, agentkit.Deployment{}, err
	}
	c.clients[chainID] = client
	return client, deployment, nil
}
