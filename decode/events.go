package decode

import (
	"github.com/ethereum/go-ethereum/common"
)

// Kind tags the variant of a DecodedEvent.
type Kind int

const (
	KindContractDeployed Kind = iota
	KindTransferERC20
	KindTransferERC721
	KindTransferERC1155Single
	KindTransferERC1155Batch
	KindBridgeableContractDeployed
	KindCrossChainMessageSent
	KindAvailableOperatorJob
	KindFinishedOperatorJob
	KindFailedOperatorJob
	KindLayerZeroPacket
)

func (k Kind) String() string {
	switch k {
	case KindContractDeployed:
		return "ContractDeployed"
	case KindTransferERC20:
		return "ERC20Transfer"
	case KindTransferERC721:
		return "ERC721Transfer"
	case KindTransferERC1155Single:
		return "ERC1155TransferSingle"
	case KindTransferERC1155Batch:
		return "ERC1155TransferBatch"
	case KindBridgeableContractDeployed:
		return "BridgeableContractDeployed"
	case KindCrossChainMessageSent:
		return "CrossChainMessageSent"
	case KindAvailableOperatorJob:
		return "AvailableOperatorJob"
	case KindFinishedOperatorJob:
		return "FinishedOperatorJob"
	case KindFailedOperatorJob:
		return "FailedOperatorJob"
	case KindLayerZeroPacket:
		return "LayerZeroPacket"
	default:
		return "Unknown"
	}
}

// Event is implemented by every decoded variant.
type Event interface {
	Kind() Kind
}

// ContractDeployed is emitted when a transaction's receipt shows a new
// contract address (ordinary EVM contract creation, not the protocol's own
// bridgeable-deploy flow).
type ContractDeployed struct {
	Contract common.Address
}

func (ContractDeployed) Kind() Kind { return KindContractDeployed }

// Transfer covers ERC-20, ERC-721 and ERC-1155 transfers. Standard is set
// from the topic/indexed-topic-count disambiguation; TokenID/Value/IDs/Values
// are populated according to Standard.
type Transfer struct {
	Emitter  common.Address
	From     common.Address
	To       common.Address
	Standard Kind // one of KindTransferERC20, KindTransferERC721, KindTransferERC1155Single, KindTransferERC1155Batch

	Value   *common.Hash // ERC-20 amount, as the raw 32-byte word
	TokenID *common.Hash // ERC-721 token id

	IDs    []common.Hash // ERC-1155 single/batch ids
	Values []common.Hash // ERC-1155 single/batch values
}

func (t Transfer) Kind() Kind { return t.Standard }

// BridgeableContractDeployed is the protocol's own cross-chain deployment
// event: BridgeableContractDeployed(address,bytes32).
type BridgeableContractDeployed struct {
	Contract common.Address
	Hash     common.Hash
}

func (BridgeableContractDeployed) Kind() Kind { return KindBridgeableContractDeployed }

// CrossChainMessageSent carries the 32-byte jobHash of a bridge-out payload.
type CrossChainMessageSent struct {
	JobHash common.Hash
}

func (CrossChainMessageSent) Kind() Kind { return KindCrossChainMessageSent }

// AvailableOperatorJob signals that an operator job is ready for execution
// on the destination chain.
type AvailableOperatorJob struct {
	JobHash common.Hash
	Payload []byte
}

func (AvailableOperatorJob) Kind() Kind { return KindAvailableOperatorJob }

// FinishedOperatorJob signals successful execution by operator.
type FinishedOperatorJob struct {
	JobHash  common.Hash
	Operator common.Address
}

func (FinishedOperatorJob) Kind() Kind { return KindFinishedOperatorJob }

// FailedOperatorJob signals a failed execution attempt.
type FailedOperatorJob struct {
	JobHash common.Hash
}

func (FailedOperatorJob) Kind() Kind { return KindFailedOperatorJob }

// LayerZeroPacket carries the raw LayerZero messaging payload of a
// Packet(bytes) or Packet(uint16,bytes) log. Receipt does not strip the
// protocol prefix; ExtractLayerZeroPayload does that separately.
type LayerZeroPacket struct {
	Payload []byte
}

func (LayerZeroPacket) Kind() Kind { return KindLayerZeroPacket }
