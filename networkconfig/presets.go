package networkconfig

import (
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	slotDuration  = 12 * time.Second
	slotsPerEpoch = 32
)

var Mainnet = NewBeaconConfig(
	"mainnet",
	slotDuration,
	slotsPerEpoch,
	phase0.Version{0x00, 0x00, 0x00, 0x00},
	time.Unix(1606824023, 0),
	phase0.Root(hexutil.MustDecode("0x4b363db94e286120d76eb905340fdd4e54bfe9f06bf33ff6cf5ad27f511bfe95")),
)

var Holesky = NewBeaconConfig(
	"holesky",
	slotDuration,
	slotsPerEpoch,
	phase0.Version{0x01, 0x01, 0x70, 0x00},
	time.Unix(1695902400, 0),
	phase0.Root(hexutil.MustDecode("0x9143aa7c615a7f7115e2b6aac319c03529df8242ae705fba9df39b79c59fa8b1")),
)

var Hoodi = NewBeaconConfig(
	"hoodi",
	slotDuration,
	slotsPerEpoch,
	phase0.Version{0x10, 0x00, 0x09, 0x10},
	time.Unix(1742213400, 0),
	phase0.Root(hexutil.MustDecode("0x212f13fc4df078b6cb7db228f1c8307566dcecf900867401a92023d7ba99cb5f")),
)

var Sepolia = NewBeaconConfig(
	"sepolia",
	slotDuration,
	slotsPerEpoch,
	phase0.Version{0x90, 0x00, 0x00, 0x69},
	time.Unix(1655733600, 0),
	phase0.Root(hexutil.MustDecode("0xd8ea171f3c94aea21ebc42a1ed61052acf3f9209c00e4efbaaddac09ed9b8078")),
)

// NewLocalBeaconConfig returns a phase0-only config for local networks and tests.
func NewLocalBeaconConfig(genesisTime time.Time, slotDuration time.Duration, genesisValidatorsRoot phase0.Root) *BeaconConfig {
	return NewBeaconConfig("local-testnet", slotDuration, slotsPerEpoch, phase0.Version{}, genesisTime, genesisValidatorsRoot)
}
