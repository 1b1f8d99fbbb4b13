package p2p

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// Config describes the gossip transport of a node.
type Config struct {
	ListenAddr string   `yaml:"ListenAddr" env:"P2P_LISTEN_ADDR" env-default:"/ip4/0.0.0.0/tcp/13001" env-description:"Multiaddr the libp2p host listens on"`
	Peers      []string `yaml:"Peers" env:"P2P_PEERS" env-separator:"," env-description:"Multiaddrs (with /p2p/ id) of the other co-validators"`
	// CoValidatorPeers binds every other co-validator index to the peer id it gossips as.
	CoValidatorPeers map[uint64]string `yaml:"CoValidatorPeers" env:"P2P_CO_VALIDATOR_PEERS" env-separator:"," env-description:"Peer id of each other co-validator, as index:peerid"`
	NetworkKey       string            `yaml:"NetworkKey" env:"P2P_NETWORK_KEY" env-description:"Hex encoded secp256k1 libp2p key, generated when empty"`
	PublishTimeout   time.Duration     `yaml:"PublishTimeout" env:"P2P_PUBLISH_TIMEOUT" env-default:"5s" env-description:"Timeout of a single gossip publish"`
	ShareTTL         time.Duration     `yaml:"ShareTTL" env:"P2P_SHARE_TTL" env-default:"2m" env-description:"How long inbound signature shares are buffered"`
}

func (c *Config) privateKey() (crypto.PrivKey, error) {
	if c.NetworkKey == "" {
		sk, _, err := crypto.GenerateSecp256k1Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("could not generate network key: %w", err)
		}
		return sk, nil
	}
	b, err := hexutil.Decode(c.NetworkKey)
	if err != nil {
		return nil, fmt.Errorf("invalid network key: %w", err)
	}
	return crypto.UnmarshalSecp256k1PrivateKey(b)
}

// staticPeers parses the configured peer multiaddrs.
func (c *Config) staticPeers() ([]peer.AddrInfo, error) {
	peers := make([]peer.AddrInfo, 0, len(c.Peers))
	for _, s := range c.Peers {
		addr, err := multiaddr.NewMultiaddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid peer address %q: %w", s, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(addr)
		if err != nil {
			return nil, fmt.Errorf("peer address %q has no peer id: %w", s, err)
		}
		peers = append(peers, *info)
	}
	return peers, nil
}

// peerIndices maps gossip authors to co-validator indices. self is the local host.
func (c *Config) peerIndices(dv *types.DistributedValidator, self peer.ID) (map[peer.ID]uint64, error) {
	indices := map[peer.ID]uint64{self: dv.SelfIndex}
	for _, cv := range dv.CoValidators {
		if cv.Index == dv.SelfIndex {
			continue
		}
		s, ok := c.CoValidatorPeers[cv.Index]
		if !ok {
			return nil, fmt.Errorf("no peer id for co-validator %d", cv.Index)
		}
		id, err := peer.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("invalid peer id of co-validator %d: %w", cv.Index, err)
		}
		if prev, ok := indices[id]; ok {
			return nil, fmt.Errorf("peer %s bound to co-validators %d and %d", id, prev, cv.Index)
		}
		indices[id] = cv.Index
	}
	return indices, nil
}
