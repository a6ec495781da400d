package executor

import (
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/holograph-network/monitor/provider"
)

func ethereumCallMsg(from common.Address, call Call) ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  from,
		To:    &call.Contract,
		Value: call.Value,
		Data:  call.Data,
	}
}

func lookupPeerOperator(cli *provider.Client) (common.Address, bool) {
	if cli.Chain == nil {
		return common.Address{}, false
	}
	return cli.Chain.Peers.Operator, true
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
