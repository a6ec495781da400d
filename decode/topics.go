package decode

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Known event topics, derived the same way the chain itself derives them:
// keccak256 of the canonical event signature.
var (
	topicBridgeableContractDeployed = crypto.Keccak256Hash([]byte("BridgeableContractDeployed(address,bytes32)"))
	topicTransfer                   = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))
	topicAvailableJob               = crypto.Keccak256Hash([]byte("AvailableJob(bytes)"))
	topicAvailableOperatorJob       = crypto.Keccak256Hash([]byte("AvailableOperatorJob(bytes32,bytes)"))
	topicFinishedOperatorJob        = crypto.Keccak256Hash([]byte("FinishedOperatorJob(bytes32,address)"))
	topicFailedOperatorJob          = crypto.Keccak256Hash([]byte("FailedOperatorJob(bytes32)"))
	topicCrossChainMessageSent      = crypto.Keccak256Hash([]byte("CrossChainMessageSent(bytes32)"))
	topicLayerZeroPacket            = crypto.Keccak256Hash([]byte("Packet(bytes)"))
	topicPacketLegacy               = crypto.Keccak256Hash([]byte("Packet(uint16,bytes)"))

	// topicHolographableContractEvent is the second-pass wrapper: its
	// payload's first 32 bytes discriminate the wrapped Transfer variant.
	topicHolographableContractEvent = crypto.Keccak256Hash([]byte("HolographableContractEvent(address,bytes)"))

	// ERC-1155 topics are named by the Transfer(ERC1155-single|batch)
	// variants in the DecodedEvent sum type; derived the same way.
	topicTransferSingle = crypto.Keccak256Hash([]byte("TransferSingle(address,address,address,uint256,uint256)"))
	topicTransferBatch  = crypto.Keccak256Hash([]byte("TransferBatch(address,address,address,uint256[],uint256[])"))
)

// KnownTopics returns every topic0 this decoder recognizes, for use by
// components (e.g. a future topic-based filter) that want to know the full
// set without importing decode internals.
func KnownTopics() []common.Hash {
	return []common.Hash{
		topicBridgeableContractDeployed,
		topicTransfer,
		topicAvailableJob,
		topicAvailableOperatorJob,
		topicFinishedOperatorJob,
		topicFailedOperatorJob,
		topicCrossChainMessageSent,
		topicLayerZeroPacket,
		topicPacketLegacy,
		topicHolographableContractEvent,
		topicTransferSingle,
		topicTransferBatch,
	}
}
