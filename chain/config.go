package chain

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/naoina/toml"
)

func addressOrZero(hex string) common.Address {
	if hex == "" {
		return common.Address{}
	}
	return common.HexToAddress(hex)
}

// fileSpec mirrors the on-disk TOML shape for one chain entry. Concrete
// config-file discovery/merging with CLI flags and wallet decryption are out
// of scope for this module; LoadFile only turns a TOML document
// into validated Chain values.
type fileSpec struct {
	Name        string `toml:"name"`
	ChainID     uint64 `toml:"chainId"`
	HolographID uint32 `toml:"holographId"`
	Endpoint    string `toml:"endpoint"`
	Bridge      string `toml:"bridge"`
	Factory     string `toml:"factory"`
	Operator    string `toml:"operator"`
	LayerZero   string `toml:"layerZeroReceiver"`
}

type fileConfig struct {
	Networks []fileSpec `toml:"networks"`
}

// LoadFile reads a TOML chain-list file (the "networks" table) and returns a
// Registry. Every CLI subcommand's required `--networks` flag names such a
// file; a bare list of network names is not accepted.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("chain: read config %s: %w", path, err)
	}
	var cfg fileConfig
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("chain: parse config %s: %w", path, err)
	}
	chains := make([]*Chain, 0, len(cfg.Networks))
	for _, spec := range cfg.Networks {
		c, err := fromSpec(spec)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}
	return NewRegistry(chains)
}

func fromSpec(s fileSpec) (*Chain, error) {
	peers := PeerAddresses{
		Bridge:            addressOrZero(s.Bridge),
		Factory:           addressOrZero(s.Factory),
		Operator:          addressOrZero(s.Operator),
		LayerZeroReceiver: addressOrZero(s.LayerZero),
	}
	return New(s.Name, s.ChainID, s.HolographID, s.Endpoint, peers)
}
