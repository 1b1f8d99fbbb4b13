package testing

import (
	"context"
	"testing"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/signer"
	"github.com/ssvlabs/dvnode/utils/threshold"
)

const TestValidatorIndex = phase0.ValidatorIndex(42)

var (
	TestForkVersion           = phase0.Version{0x01, 0x00, 0x00, 0x00}
	TestGenesisValidatorsRoot = phase0.Root{0xaa}
)

// StaticDomains is a signer.DomainProvider with fixed values.
type StaticDomains struct {
	Version phase0.Version
	Root    phase0.Root
	Err     error
}

func (d *StaticDomains) ForkVersion(context.Context, phase0.Slot) (phase0.Version, error) {
	return d.Version, d.Err
}

func (d *StaticDomains) GenesisValidatorsRoot(context.Context) (phase0.Root, error) {
	return d.Root, d.Err
}

// Cluster is a freshly generated distributed validator and everything needed to sign
// as any of its co-validators.
type Cluster struct {
	Keys         *threshold.KeySet
	Domains      *StaticDomains
	BeaconConfig *networkconfig.BeaconConfig
}

func NewCluster(t *testing.T, threshold, count uint64) *Cluster {
	return NewClusterWithGenesis(t, threshold, count, time.Now())
}

// NewClusterWithGenesis uses a 12 second slot local chain starting at genesisTime.
func NewClusterWithGenesis(t *testing.T, thresholdSize, count uint64, genesisTime time.Time) *Cluster {
	keys, err := threshold.GenerateKeySet(thresholdSize, count)
	require.NoError(t, err)
	return &Cluster{
		Keys:         keys,
		Domains:      &StaticDomains{Version: TestForkVersion, Root: TestGenesisValidatorsRoot},
		BeaconConfig: networkconfig.NewLocalBeaconConfig(genesisTime, 12*time.Second, TestGenesisValidatorsRoot),
	}
}

func (c *Cluster) ValidatorPubKey() phase0.BLSPubKey {
	return c.Keys.ValidatorPubKey()
}

func (c *Cluster) Size() uint64 {
	return uint64(len(c.Keys.Shares))
}

// DV is the distributed validator as seen by co-validator self.
func (c *Cluster) DV(self uint64) *types.DistributedValidator {
	return c.Keys.DistributedValidator(TestValidatorIndex, self)
}

func (c *Cluster) Signer(self uint64) *signer.LocalSigner {
	return signer.NewLocalSigner(c.Keys.Shares[self])
}

func (c *Cluster) Bridge(logger *zap.Logger, self uint64) *signer.Bridge {
	return signer.NewBridge(logger, c.DV(self), c.Signer(self), c.Domains, c.BeaconConfig)
}

// AttestationDuty is a duty of the cluster's validator at slot.
func (c *Cluster) AttestationDuty(slot phase0.Slot, committeeIndex phase0.CommitteeIndex, committeeLength, position uint64) *types.AttestationDuty {
	return &types.AttestationDuty{
		PubKey:                  c.ValidatorPubKey(),
		ValidatorIndex:          TestValidatorIndex,
		CommitteeIndex:          committeeIndex,
		CommitteeLength:         committeeLength,
		CommitteesAtSlot:        1,
		ValidatorCommitteeIndex: position,
		Slot:                    slot,
	}
}

func (c *Cluster) ProposerDuty(slot phase0.Slot) *types.ProposerDuty {
	return &types.ProposerDuty{
		PubKey:         c.ValidatorPubKey(),
		ValidatorIndex: TestValidatorIndex,
		Slot:           slot,
	}
}

// AttestationData is a candidate for the slot voting source -> target.
func AttestationData(slot phase0.Slot, committeeIndex phase0.CommitteeIndex, source, target phase0.Epoch) *phase0.AttestationData {
	return &phase0.AttestationData{
		Slot:            slot,
		Index:           committeeIndex,
		BeaconBlockRoot: phase0.Root{byte(slot), 0x01},
		Source:          &phase0.Checkpoint{Epoch: source, Root: phase0.Root{byte(source), 0x02}},
		Target:          &phase0.Checkpoint{Epoch: target, Root: phase0.Root{byte(target), 0x03}},
	}
}

// Block is an empty phase0 block candidate.
func Block(slot phase0.Slot, proposer phase0.ValidatorIndex, randaoReveal phase0.BLSSignature, graffiti [32]byte) *phase0.BeaconBlock {
	return &phase0.BeaconBlock{
		Slot:          slot,
		ProposerIndex: proposer,
		ParentRoot:    phase0.Root{byte(slot), 0x04},
		StateRoot:     phase0.Root{byte(slot), 0x05},
		Body: &phase0.BeaconBlockBody{
			RANDAOReveal:      randaoReveal,
			ETH1Data:          &phase0.ETH1Data{BlockHash: make([]byte, 32)},
			Graffiti:          graffiti,
			ProposerSlashings: []*phase0.ProposerSlashing{},
			AttesterSlashings: []*phase0.AttesterSlashing{},
			Attestations:      []*phase0.Attestation{},
			Deposits:          []*phase0.Deposit{},
			VoluntaryExits:    []*phase0.SignedVoluntaryExit{},
		},
	}
}
