package evm

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/canopy-network/bridgewatch/pkg/utils"
)

// Gravity contract event signatures.
const (
	TransactionBatchExecutedEventSig = "TransactionBatchExecutedEvent(uint256,address,uint256)"
	SendToCosmosEventSig             = "SendToCosmosEvent(address,address,string,uint256,uint256)"
	SendERC721ToCosmosEventSig       = "SendERC721ToCosmosEvent(address,address,string,uint256,uint256,string)"
	GravityERC721DeployedEventSig    = "GravityERC721DeployedEvent()"
	ERC20DeployedEventSig            = "ERC20DeployedEvent(string,address,string,string,uint8,uint256)"
	LogicCallEventSig                = "LogicCallEvent(bytes32,uint256,bytes,uint256)"
	ValsetUpdatedEventSig            = "ValsetUpdatedEvent(uint256,uint256,uint256,address,address[],uint256[])"
)

// EventSignatures lists every signature a Gravity watcher subscribes to.
var EventSignatures = []string{
	TransactionBatchExecutedEventSig,
	SendToCosmosEventSig,
	SendERC721ToCosmosEventSig,
	GravityERC721DeployedEventSig,
	ERC20DeployedEventSig,
	LogicCallEventSig,
	ValsetUpdatedEventSig,
}

// Topic returns topic[0] of logs emitted with the given event signature.
func Topic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// EventTopics maps topic[0] back to its signature.
func EventTopics() map[common.Hash]string {
	out := make(map[common.Hash]string, len(EventSignatures))
	for _, sig := range EventSignatures {
		out[Topic(sig)] = sig
	}
	return out
}

const defaultBlocksToSearch = 5000

// BlocksToSearch is the log-scan window size, BLOCK_TO_SEARCH or 5000.
func BlocksToSearch() uint64 {
	return utils.EnvUint64("BLOCK_TO_SEARCH", defaultBlocksToSearch)
}
