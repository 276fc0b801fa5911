package sentinel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/canopy-network/bridgewatch/pkg/verify"
)

// Bridge is one Gravity deployment to watch.
type Bridge struct {
	EvmChainPrefix string
	Contract       common.Address
	EVMRPC         string
}

// ParseBridges reads "prefix|contract|evmRPC" entries. Prefixes must be unique.
func ParseBridges(entries []string) ([]Bridge, error) {
	seen := make(map[string]struct{}, len(entries))
	out := make([]Bridge, 0, len(entries))
	for _, entry := range entries {
		parts := strings.Split(entry, "|")
		if len(parts) != 3 {
			return nil, fmt.Errorf("bridge %q: want prefix|contract|evmRPC", entry)
		}
		prefix, contract, url := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
		if prefix == "" || url == "" {
			return nil, fmt.Errorf("bridge %q: empty prefix or rpc url", entry)
		}
		if !common.IsHexAddress(contract) {
			return nil, fmt.Errorf("bridge %q: invalid contract address %q", entry, contract)
		}
		if _, dup := seen[prefix]; dup {
			return nil, fmt.Errorf("bridge prefix %q configured twice", prefix)
		}
		seen[prefix] = struct{}{}
		out = append(out, Bridge{EvmChainPrefix: prefix, Contract: common.HexToAddress(contract), EVMRPC: url})
	}
	return out, nil
}

// MismatchPolicy decides what a fatal verification fault does to the process.
type MismatchPolicy string

const (
	// PolicyHalt stops the sentinel.
	PolicyHalt MismatchPolicy = "halt"
	// PolicyDegrade marks the bridge halted and keeps serving the others.
	PolicyDegrade MismatchPolicy = "degrade"
)

func ParseMismatchPolicy(s string) (MismatchPolicy, error) {
	switch MismatchPolicy(strings.ToLower(s)) {
	case PolicyHalt:
		return PolicyHalt, nil
	case PolicyDegrade:
		return PolicyDegrade, nil
	default:
		return "", fmt.Errorf("unknown mismatch policy %q (want halt or degrade)", s)
	}
}

// Resolver resolves a bridge's latest agreed valset. *verify.Verifier implements it.
type Resolver interface {
	Resolve(ctx context.Context) (*verify.Resolution, error)
}

// BridgeStatus is the last verification result recorded for a bridge.
type BridgeStatus struct {
	EvmChainPrefix string    `json:"evmChainPrefix"`
	Contract       string    `json:"contract"`
	Nonce          uint64    `json:"nonce"`
	Checkpoint     string    `json:"checkpoint,omitempty"`
	GravityID      string    `json:"gravityId,omitempty"`
	EVMBlock       uint64    `json:"evmBlock,omitempty"`
	VerifiedAt     time.Time `json:"verifiedAt,omitzero"`
	CheckedAt      time.Time `json:"checkedAt,omitzero"`
	LastError      string    `json:"lastError,omitempty"`
	Failures       int       `json:"failures"`
	Halted         bool      `json:"halted"`
}

type watchedBridge struct {
	Bridge
	resolver Resolver
}
