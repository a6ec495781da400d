package decode

import (
	"encoding/binary"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func uint256Word(v uint64) []byte {
	word := make([]byte, 32)
	binary.BigEndian.PutUint64(word[24:], v)
	return word
}

func pad32(b []byte) []byte {
	rem := len(b) % 32
	if rem == 0 {
		return b
	}
	return append(b, make([]byte, 32-rem)...)
}

// bytesArgData builds a Data buffer such that decodeBytesArg(data, byteOffset)
// returns payload: a header word at byteOffset pointing to an immediately
// following length+content section.
func bytesArgData(byteOffset int, header []byte, payload []byte) []byte {
	buf := make([]byte, byteOffset)
	copy(buf, header)
	buf = append(buf, uint256Word(uint64(byteOffset+32))...)
	buf = append(buf, uint256Word(uint64(len(payload)))...)
	buf = append(buf, pad32(append([]byte{}, payload...))...)
	return buf
}

func TestReceiptDecodesBridgeableContractDeployed(t *testing.T) {
	contract := common.HexToAddress("0x1111111111111111111111111111111111111111")
	hash := common.HexToHash("0xdead")
	log := &types.Log{
		Address: contract,
		Topics:  []common.Hash{topicBridgeableContractDeployed},
		Data:    hash.Bytes(),
	}
	events, err := Receipt(&types.Receipt{Logs: []*types.Log{log}})
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev, ok := events[0].(BridgeableContractDeployed)
	if !ok {
		t.Fatalf("expected BridgeableContractDeployed, got %T", events[0])
	}
	if ev.Contract != contract || ev.Hash != hash {
		t.Errorf("decoded event = %+v, want contract=%s hash=%s", ev, contract, hash)
	}
}

func TestDecodeTransferERC20VsERC721(t *testing.T) {
	from := common.HexToAddress("0xaaaa000000000000000000000000000000aaaa")
	to := common.HexToAddress("0xbbbb000000000000000000000000000000bbbb")
	emitter := common.HexToAddress("0xcccc000000000000000000000000000000cccc")

	erc20Log := &types.Log{
		Address: emitter,
		Topics:  []common.Hash{topicTransfer, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())},
		Data:    uint256Word(1000),
	}
	erc20 := decodeTransfer(erc20Log)
	if erc20.Standard != KindTransferERC20 {
		t.Errorf("expected ERC20 standard for a 3-topic Transfer, got %v", erc20.Standard)
	}
	if erc20.Value == nil {
		t.Fatalf("expected a decoded Value for ERC20")
	}

	tokenID := common.HexToHash("0x7")
	erc721Log := &types.Log{
		Address: emitter,
		Topics:  []common.Hash{topicTransfer, common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes()), tokenID},
	}
	erc721 := decodeTransfer(erc721Log)
	if erc721.Standard != KindTransferERC721 {
		t.Errorf("expected ERC721 standard for a 4-topic Transfer, got %v", erc721.Standard)
	}
	if erc721.TokenID == nil || *erc721.TokenID != tokenID {
		t.Errorf("expected TokenID %s, got %+v", tokenID, erc721.TokenID)
	}
}

func TestReceiptSkipsUnrecognizedTopic(t *testing.T) {
	log := &types.Log{
		Topics: []common.Hash{common.HexToHash("0xbadc0ffee0badc0ffee0badc0ffee0badc0ffee0badc0ffee0badc0ffee0123")},
	}
	events, err := Receipt(&types.Receipt{Logs: []*types.Log{log}})
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events for an unrecognized topic, got %d", len(events))
	}
}

func TestReceiptDecodesAvailableOperatorJobFromTopic(t *testing.T) {
	jobHash := common.HexToHash("0xfeed")
	payload := []byte("operator payload")
	log := &types.Log{
		Topics: []common.Hash{topicAvailableOperatorJob, jobHash},
		Data:   bytesArgData(32, nil, payload),
	}
	events, err := Receipt(&types.Receipt{Logs: []*types.Log{log}})
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev, ok := events[0].(AvailableOperatorJob)
	if !ok {
		t.Fatalf("expected AvailableOperatorJob, got %T", events[0])
	}
	if ev.JobHash != jobHash {
		t.Errorf("JobHash = %s, want %s", ev.JobHash, jobHash)
	}
	if string(ev.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", ev.Payload, payload)
	}
}

func TestReceiptDecodesAvailableJobWithDerivedJobHash(t *testing.T) {
	payload := []byte("legacy operator payload")
	log := &types.Log{
		Topics: []common.Hash{topicAvailableJob},
		Data:   bytesArgData(0, nil, payload),
	}
	events, err := Receipt(&types.Receipt{Logs: []*types.Log{log}})
	if err != nil {
		t.Fatalf("Receipt: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev, ok := events[0].(AvailableOperatorJob)
	if !ok {
		t.Fatalf("expected AvailableOperatorJob, got %T", events[0])
	}
	want := crypto.Keccak256Hash(payload)
	if ev.JobHash != want {
		t.Errorf("JobHash = %s, want %s (keccak256 of payload)", ev.JobHash, want)
	}
	if string(ev.Payload) != string(payload) {
		t.Errorf("Payload = %q, want %q", ev.Payload, payload)
	}
}

func TestCheckIntegrityMismatchReturnsError(t *testing.T) {
	jobHash := common.HexToHash("0x1")
	payload := []byte("mismatched payload")

	messageLog := &types.Log{
		Topics: []common.Hash{topicCrossChainMessageSent, jobHash},
	}
	packetLog := &types.Log{
		Topics: []common.Hash{topicPacketLegacy},
		Data:   bytesArgData(32, nil, payload),
	}
	_, err := Receipt(&types.Receipt{Logs: []*types.Log{messageLog, packetLog}})
	if err != ErrJobHashMismatch {
		t.Fatalf("expected ErrJobHashMismatch, got %v", err)
	}
}

func TestCheckIntegrityMatchingHashOK(t *testing.T) {
	payload := []byte("matching payload")
	jobHash := crypto.Keccak256Hash(payload)

	messageLog := &types.Log{
		Topics: []common.Hash{topicCrossChainMessageSent, jobHash},
	}
	packetLog := &types.Log{
		Topics: []common.Hash{topicPacketLegacy},
		Data:   bytesArgData(32, nil, payload),
	}
	_, err := Receipt(&types.Receipt{Logs: []*types.Log{messageLog, packetLog}})
	if err != nil {
		t.Fatalf("expected no error for a matching jobHash/payload, got %v", err)
	}
}

func TestExtractOperatorJobHash(t *testing.T) {
	jobHash := common.HexToHash("0x42")
	log := &types.Log{
		Topics: []common.Hash{topicFinishedOperatorJob, jobHash},
	}
	got, ok := ExtractOperatorJobHash(&types.Receipt{Logs: []*types.Log{log}})
	if !ok {
		t.Fatalf("expected a job hash to be found")
	}
	if got != jobHash {
		t.Errorf("ExtractOperatorJobHash = %s, want %s", got, jobHash)
	}
}

func TestExtractLayerZeroPayloadStripsPrefix(t *testing.T) {
	module := common.HexToAddress("0xdddd000000000000000000000000000000dddd")
	tail := []byte("tail payload bytes")
	prefix := make([]byte, protocolPrefixLen)
	raw := append(prefix, tail...)

	log := &types.Log{
		Address: module,
		Topics:  []common.Hash{topicPacketLegacy},
		Data:    bytesArgData(32, nil, raw),
	}
	got, ok := ExtractLayerZeroPayload(&types.Receipt{Logs: []*types.Log{log}}, module)
	if !ok {
		t.Fatalf("expected a payload to be found")
	}
	if string(got) != string(tail) {
		t.Errorf("ExtractLayerZeroPayload = %q, want %q", got, tail)
	}
}

func TestKnownTopicsNonEmpty(t *testing.T) {
	if len(KnownTopics()) == 0 {
		t.Errorf("expected a non-empty known topic set")
	}
}
