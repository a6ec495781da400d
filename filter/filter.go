// Package filter implements the declarative Transaction Filter rule set: a
// tagged variant over MatchTo, MatchFrom, and MatchFunctionSelector, with
// optional per-chain address substitution.
package filter

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Kind tags the variant of a Rule.
type Kind int

const (
	KindMatchTo Kind = iota
	KindMatchFrom
	KindMatchFunctionSelector
)

// Selector is the 4-byte function selector matched against the first four
// bytes of a transaction's calldata.
type Selector [4]byte

// Rule is one entry of the filter set. Exactly one of Address/Selector is
// meaningful, selected by Kind. When NetworkDependent is true, Addresses
// (keyed by chain name) is consulted instead of Address.
type Rule struct {
	Kind             Kind
	Address          common.Address
	Selector         Selector
	NetworkDependent bool
	Addresses        map[string]common.Address
}

// MatchTo builds a static (non network-dependent) "to" rule.
func MatchTo(addr common.Address) Rule {
	return Rule{Kind: KindMatchTo, Address: addr}
}

// MatchToPerChain builds a network-dependent "to" rule.
func MatchToPerChain(addrs map[string]common.Address) Rule {
	return Rule{Kind: KindMatchTo, NetworkDependent: true, Addresses: addrs}
}

// MatchFrom builds a static "from" rule.
func MatchFrom(addr common.Address) Rule {
	return Rule{Kind: KindMatchFrom, Address: addr}
}

// MatchFromPerChain builds a network-dependent "from" rule.
func MatchFromPerChain(addrs map[string]common.Address) Rule {
	return Rule{Kind: KindMatchFrom, NetworkDependent: true, Addresses: addrs}
}

// MatchFunctionSelector builds a selector rule; sig4 must carry exactly the
// first 4 bytes of keccak256(functionSignature).
func MatchFunctionSelector(sig4 Selector) Rule {
	return Rule{Kind: KindMatchFunctionSelector, Selector: sig4}
}

func (r Rule) resolvedAddress(chainName string) (common.Address, bool) {
	if !r.NetworkDependent {
		return r.Address, true
	}
	addr, ok := r.Addresses[chainName]
	return addr, ok
}

func (r Rule) matches(chainName string, tx *types.Transaction, from common.Address) bool {
	switch r.Kind {
	case KindMatchTo:
		to := tx.To()
		if to == nil {
			return false
		}
		addr, ok := r.resolvedAddress(chainName)
		return ok && *to == addr
	case KindMatchFrom:
		addr, ok := r.resolvedAddress(chainName)
		return ok && from == addr
	case KindMatchFunctionSelector:
		data := tx.Data()
		if len(data) < 4 {
			return false
		}
		return Selector{data[0], data[1], data[2], data[3]} == r.Selector
	default:
		return false
	}
}

// Set is an ordered collection of rules evaluated against every transaction
// in a block's pass. A transaction matched by any rule is admitted exactly
// once.
type Set struct {
	rules []Rule

	// global, when non-nil, suppresses re-admitting a tx hash already seen
	// across calls to Apply (e.g. the same block reprocessed after a warp
	// backfill and a live subscription overlap), bounded so long-running
	// processes don't grow this set without limit.
	global *lru.Cache[common.Hash, struct{}]
}

// NewSet builds a Set from the given rules, with no cross-call dedup.
func NewSet(rules ...Rule) *Set {
	return &Set{rules: rules}
}

// NewBoundedSet builds a Set that additionally suppresses duplicate
// admission of the same transaction hash across separate Apply calls, using
// an LRU of size capacity.
func NewBoundedSet(capacity int, rules ...Rule) (*Set, error) {
	cache, err := lru.New[common.Hash, struct{}](capacity)
	if err != nil {
		return nil, err
	}
	return &Set{rules: rules, global: cache}, nil
}

// Matches reports whether tx is admitted by any rule for chainName. from is
// the transaction's recovered sender, computed once by the caller (the
// Block Processor) and passed in to avoid re-deriving it per rule.
func (s *Set) Matches(chainName string, tx *types.Transaction, from common.Address) bool {
	for _, r := range s.rules {
		if r.matches(chainName, tx, from) {
			return true
		}
	}
	return false
}

// Apply filters txs down to the subset matched by any rule, preserving block
// order and applying set semantics (each transaction appears at most once).
func (s *Set) Apply(chainName string, txs []*types.Transaction, senderOf func(*types.Transaction) (common.Address, error)) []*types.Transaction {
	seen := make(map[common.Hash]struct{}, len(txs))
	out := make([]*types.Transaction, 0, len(txs))
	for _, tx := range txs {
		h := tx.Hash()
		if _, dup := seen[h]; dup {
			continue
		}
		from, err := senderOf(tx)
		if err != nil {
			continue
		}
		if !s.Matches(chainName, tx, from) {
			continue
		}
		if s.global != nil {
			if _, dup := s.global.Get(h); dup {
				continue
			}
			s.global.Add(h, struct{}{})
		}
		seen[h] = struct{}{}
		out = append(out, tx)
	}
	return out
}
