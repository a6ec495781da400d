// Package decode turns receipt logs into typed DecodedEvents.
// The decoder is pure: it never performs I/O and never suspends.
package decode

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrJobHashMismatch is returned when a receipt carries both
// CrossChainMessageSent and a Packet* log whose keccak256 does not equal the
// message's jobHash.
var ErrJobHashMismatch = errors.New("decode: job hash mismatch")

// Receipt decodes every recognized log in receipt into a DecodedEvent. Logs
// with an unrecognized topic0 are skipped.
func Receipt(receipt *types.Receipt) ([]Event, error) {
	var events []Event
	var holographable []*types.Log

	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		switch l.Topics[0] {
		case topicBridgeableContractDeployed:
			events = append(events, decodeBridgeableContractDeployed(l))
		case topicTransfer:
			events = append(events, decodeTransfer(l))
		case topicTransferSingle:
			events = append(events, decodeTransferSingle(l))
		case topicTransferBatch:
			events = append(events, decodeTransferBatch(l))
		case topicAvailableJob:
			events = append(events, decodeAvailableJob(l))
		case topicAvailableOperatorJob:
			events = append(events, decodeAvailableOperatorJob(l))
		case topicFinishedOperatorJob:
			events = append(events, decodeFinishedOperatorJob(l))
		case topicFailedOperatorJob:
			events = append(events, decodeFailedOperatorJob(l))
		case topicCrossChainMessageSent:
			events = append(events, decodeCrossChainMessageSent(l))
		case topicLayerZeroPacket:
			events = append(events, decodeLayerZeroPacket(l))
		case topicPacketLegacy:
			events = append(events, LayerZeroPacket{Payload: decodeBytesArg(l.Data, 32)})
		case topicHolographableContractEvent:
			holographable = append(holographable, l)
		default:
			// Decoder miss: unrecognized topic, skip.
		}
	}

	for _, l := range holographable {
		ev, err := decodeHolographableContractEvent(l)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}

	if err := checkIntegrity(receipt, events); err != nil {
		return events, err
	}
	return events, nil
}

func addressFromTopic(t common.Hash) common.Address {
	return common.BytesToAddress(t.Bytes())
}

func decodeBridgeableContractDeployed(l *types.Log) BridgeableContractDeployed {
	ev := BridgeableContractDeployed{Contract: l.Address}
	if len(l.Data) >= 32 {
		ev.Hash = common.BytesToHash(l.Data[:32])
	}
	return ev
}

// decodeTransfer disambiguates ERC-20 from ERC-721 by indexed-topic count
//: ERC-721 carries tokenId as a third indexed topic.
func decodeTransfer(l *types.Log) Transfer {
	t := Transfer{Emitter: l.Address}
	if len(l.Topics) > 1 {
		t.From = addressFromTopic(l.Topics[1])
	}
	if len(l.Topics) > 2 {
		t.To = addressFromTopic(l.Topics[2])
	}
	switch len(l.Topics) {
	case 4:
		t.Standard = KindTransferERC721
		id := l.Topics[3]
		t.TokenID = &id
	default:
		t.Standard = KindTransferERC20
		if len(l.Data) >= 32 {
			v := common.BytesToHash(l.Data[:32])
			t.Value = &v
		}
	}
	return t
}

func decodeTransferSingle(l *types.Log) Transfer {
	t := Transfer{Standard: KindTransferERC1155Single, Emitter: l.Address}
	if len(l.Topics) > 2 {
		t.From = addressFromTopic(l.Topics[2])
	}
	if len(l.Topics) > 3 {
		t.To = addressFromTopic(l.Topics[3])
	}
	if len(l.Data) >= 64 {
		id := common.BytesToHash(l.Data[:32])
		val := common.BytesToHash(l.Data[32:64])
		t.IDs = []common.Hash{id}
		t.Values = []common.Hash{val}
	}
	return t
}

func decodeTransferBatch(l *types.Log) Transfer {
	t := Transfer{Standard: KindTransferERC1155Batch, Emitter: l.Address}
	if len(l.Topics) > 2 {
		t.From = addressFromTopic(l.Topics[2])
	}
	if len(l.Topics) > 3 {
		t.To = addressFromTopic(l.Topics[3])
	}
	t.IDs, t.Values = decodeDynamicUintPair(l.Data)
	return t
}

// decodeDynamicUintPair performs a minimal ABI-encoded decode of two
// dynamic uint256[] arrays packed back to back (the TransferBatch payload
// layout), without pulling in full abi.Arguments.Unpack for a two-field
// case.
func decodeDynamicUintPair(data []byte) (a, b []common.Hash) {
	if len(data) < 64 {
		return nil, nil
	}
	a = readDynamicArray(data, readOffset(data, 0))
	b = readDynamicArray(data, readOffset(data, 32))
	return a, b
}

func readOffset(data []byte, at int) int {
	if at+32 > len(data) {
		return 0
	}
	return int(common.BytesToHash(data[at : at+32]).Big().Uint64())
}

func readDynamicArray(data []byte, offset int) []common.Hash {
	if offset+32 > len(data) {
		return nil
	}
	length := int(common.BytesToHash(data[offset : offset+32]).Big().Uint64())
	out := make([]common.Hash, 0, length)
	start := offset + 32
	for i := 0; i < length; i++ {
		s := start + i*32
		if s+32 > len(data) {
			break
		}
		out = append(out, common.BytesToHash(data[s:s+32]))
	}
	return out
}

func decodeAvailableJob(l *types.Log) AvailableOperatorJob {
	payload := decodeBytesArg(l.Data, 0)
	return AvailableOperatorJob{JobHash: crypto.Keccak256Hash(payload), Payload: payload}
}

func decodeAvailableOperatorJob(l *types.Log) AvailableOperatorJob {
	ev := AvailableOperatorJob{}
	if len(l.Topics) > 1 {
		ev.JobHash = l.Topics[1]
	} else if len(l.Data) >= 32 {
		ev.JobHash = common.BytesToHash(l.Data[:32])
	}
	ev.Payload = decodeBytesArg(l.Data, 32)
	return ev
}

func decodeFinishedOperatorJob(l *types.Log) FinishedOperatorJob {
	ev := FinishedOperatorJob{}
	if len(l.Topics) > 1 {
		ev.JobHash = l.Topics[1]
	}
	if len(l.Data) >= 32 {
		ev.Operator = common.BytesToAddress(l.Data[:32])
	}
	return ev
}

func decodeFailedOperatorJob(l *types.Log) FailedOperatorJob {
	ev := FailedOperatorJob{}
	if len(l.Topics) > 1 {
		ev.JobHash = l.Topics[1]
	} else if len(l.Data) >= 32 {
		ev.JobHash = common.BytesToHash(l.Data[:32])
	}
	return ev
}

func decodeCrossChainMessageSent(l *types.Log) CrossChainMessageSent {
	ev := CrossChainMessageSent{}
	if len(l.Topics) > 1 {
		ev.JobHash = l.Topics[1]
	} else if len(l.Data) >= 32 {
		ev.JobHash = common.BytesToHash(l.Data[:32])
	}
	return ev
}

func decodeLayerZeroPacket(l *types.Log) LayerZeroPacket {
	return LayerZeroPacket{Payload: decodeBytesArg(l.Data, 0)}
}

// decodeBytesArg decodes a single dynamic `bytes` ABI argument whose offset
// word starts at byteOffset within data.
func decodeBytesArg(data []byte, byteOffset int) []byte {
	if byteOffset+32 > len(data) {
		return nil
	}
	off := int(common.BytesToHash(data[byteOffset : byteOffset+32]).Big().Uint64())
	if off+32 > len(data) {
		return nil
	}
	length := int(common.BytesToHash(data[off : off+32]).Big().Uint64())
	start := off + 32
	if start+length > len(data) {
		return nil
	}
	return data[start : start+length]
}

// decodeHolographableContractEvent implements the second pass: the first 32
// bytes of the inner payload select the wrapped Transfer variant.
func decodeHolographableContractEvent(l *types.Log) (Event, error) {
	inner := decodeBytesArg(l.Data, 32)
	if len(inner) < 32 {
		return nil, fmt.Errorf("decode: holographable event payload too short")
	}
	discriminator := common.BytesToHash(inner[:32])
	switch discriminator {
	case topicTransfer:
		return decodeWrappedTransfer(l.Address, inner[32:]), nil
	default:
		return nil, fmt.Errorf("decode: unknown holographable discriminator %s", discriminator)
	}
}

func decodeWrappedTransfer(emitter common.Address, payload []byte) Transfer {
	t := Transfer{Emitter: emitter, Standard: KindTransferERC721}
	if len(payload) >= 96 {
		t.From = common.BytesToAddress(payload[0:32])
		t.To = common.BytesToAddress(payload[32:64])
		id := common.BytesToHash(payload[64:96])
		t.TokenID = &id
	}
	return t
}

// ExtractOperatorJobHash returns the jobHash carried by the first decoded
// operator-pipeline event found in receipt (AvailableOperatorJob,
// FinishedOperatorJob, FailedOperatorJob, or CrossChainMessageSent).
func ExtractOperatorJobHash(receipt *types.Receipt) (common.Hash, bool) {
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 {
			continue
		}
		switch l.Topics[0] {
		case topicAvailableOperatorJob, topicFinishedOperatorJob, topicFailedOperatorJob, topicCrossChainMessageSent:
			if len(l.Topics) > 1 {
				return l.Topics[1], true
			}
			if len(l.Data) >= 32 {
				return common.BytesToHash(l.Data[:32]), true
			}
		}
	}
	return common.Hash{}, false
}

// protocolPrefixLen is 20B address + 2B version + 20B address. To verify
// across protocol versions.
const protocolPrefixLen = 20 + 2 + 20

// ExtractLayerZeroPayload locates the PacketLegacy log emitted by
// messagingModule and strips the protocol prefix before returning the tail
// payload.
func ExtractLayerZeroPayload(receipt *types.Receipt, messagingModule common.Address) ([]byte, bool) {
	for _, l := range receipt.Logs {
		if len(l.Topics) == 0 || l.Topics[0] != topicPacketLegacy {
			continue
		}
		if l.Address != messagingModule {
			continue
		}
		raw := decodeBytesArg(l.Data, 32)
		if len(raw) <= protocolPrefixLen {
			return nil, false
		}
		return raw[protocolPrefixLen:], true
	}
	return nil, false
}

// checkIntegrity enforces that whenever both CrossChainMessageSent and a
// Packet* event are present, keccak256(payload) must equal jobHash.
func checkIntegrity(receipt *types.Receipt, events []Event) error {
	var jobHash common.Hash
	var haveMessage bool
	var payload []byte
	var havePacket bool

	for _, ev := range events {
		switch e := ev.(type) {
		case CrossChainMessageSent:
			jobHash = e.JobHash
			haveMessage = true
		case LayerZeroPacket:
			payload = e.Payload
			havePacket = true
		}
	}
	if !haveMessage || !havePacket {
		return nil
	}
	if crypto.Keccak256Hash(payload) != jobHash {
		return ErrJobHashMismatch
	}
	return nil
}
