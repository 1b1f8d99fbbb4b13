package signer

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	ssz "github.com/ferranbt/fastssz"
	spectypes "github.com/ssvlabs/ssv-spec/types"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/protocol/types"
)

// Bridge turns decided objects into this co-validator's signature shares.
type Bridge struct {
	logger       *zap.Logger
	dv           *types.DistributedValidator
	signer       RemoteSigner
	domains      DomainProvider
	beaconConfig *networkconfig.BeaconConfig
}

func NewBridge(
	logger *zap.Logger,
	dv *types.DistributedValidator,
	signer RemoteSigner,
	domains DomainProvider,
	beaconConfig *networkconfig.BeaconConfig,
) *Bridge {
	return &Bridge{
		logger:       logger.Named(logging.NameSigner),
		dv:           dv,
		signer:       signer,
		domains:      domains,
		beaconConfig: beaconConfig,
	}
}

// SigningRoot returns the domain separated root of obj. The fork version is the one
// active at slot.
func (b *Bridge) SigningRoot(ctx context.Context, kind types.DutyKind, slot phase0.Slot, obj ssz.HashRoot) (phase0.Root, error) {
	domainType, err := DomainType(kind)
	if err != nil {
		return phase0.Root{}, err
	}
	forkVersion, err := b.domains.ForkVersion(ctx, slot)
	if err != nil {
		return phase0.Root{}, fmt.Errorf("%w: get fork version: %v", types.ErrSigningUnavailable, err)
	}
	genesisValidatorsRoot, err := b.domains.GenesisValidatorsRoot(ctx)
	if err != nil {
		return phase0.Root{}, fmt.Errorf("%w: get genesis validators root: %v", types.ErrSigningUnavailable, err)
	}
	domain, err := ComputeDomain(domainType, forkVersion, genesisValidatorsRoot)
	if err != nil {
		return phase0.Root{}, err
	}
	root, err := spectypes.ComputeETHSigningRoot(obj, domain)
	if err != nil {
		return phase0.Root{}, fmt.Errorf("could not compute signing root: %w", err)
	}
	return root, nil
}

// AttestationSigningRoot is the root an attestation is signed over. The domain uses the
// fork of the target epoch.
func (b *Bridge) AttestationSigningRoot(ctx context.Context, data *phase0.AttestationData) (phase0.Root, error) {
	if data == nil || data.Target == nil {
		return phase0.Root{}, fmt.Errorf("incomplete attestation data")
	}
	return b.SigningRoot(ctx, types.KindAttestation, b.beaconConfig.FirstSlotAtEpoch(data.Target.Epoch), data)
}

func (b *Bridge) BlockSigningRoot(ctx context.Context, block *phase0.BeaconBlock) (phase0.Root, error) {
	if block == nil {
		return phase0.Root{}, fmt.Errorf("block is nil")
	}
	return b.SigningRoot(ctx, types.KindProposal, block.Slot, block)
}

func (b *Bridge) RandaoSigningRoot(ctx context.Context, epoch phase0.Epoch) (phase0.Root, error) {
	return b.SigningRoot(ctx, types.KindRandao, b.beaconConfig.FirstSlotAtEpoch(epoch), spectypes.SSZUint64(epoch))
}

// SignAttestation signs the decided attestation data. The caller must have recorded it
// in the slashing protection store.
func (b *Bridge) SignAttestation(ctx context.Context, duty *types.AttestationDuty, data *phase0.AttestationData) (*types.PartialSignature, error) {
	if err := b.checkDuty(duty); err != nil {
		return nil, err
	}
	root, err := b.AttestationSigningRoot(ctx, data)
	if err != nil {
		return nil, err
	}
	object, err := data.MarshalSSZ()
	if err != nil {
		return nil, fmt.Errorf("could not encode attestation data: %w", err)
	}

	share, err := b.sign(ctx, types.KindAttestation, data.Slot, root, object)
	if err != nil {
		return nil, err
	}
	share.CommitteeLength = duty.CommitteeLength
	share.ValidatorCommitteeIndex = duty.ValidatorCommitteeIndex
	return share, nil
}

// SignBlock signs the decided block. The caller must have recorded it in the slashing
// protection store.
func (b *Bridge) SignBlock(ctx context.Context, duty *types.ProposerDuty, block *phase0.BeaconBlock) (*types.PartialSignature, error) {
	if err := b.checkDuty(duty); err != nil {
		return nil, err
	}
	root, err := b.BlockSigningRoot(ctx, block)
	if err != nil {
		return nil, err
	}
	object, err := block.MarshalSSZ()
	if err != nil {
		return nil, fmt.Errorf("could not encode block: %w", err)
	}
	return b.sign(ctx, types.KindProposal, block.Slot, root, object)
}

// SignRandao signs the randao reveal of the epoch. Randao reveals are not slashable.
func (b *Bridge) SignRandao(ctx context.Context, duty *types.ProposerDuty, epoch phase0.Epoch) (*types.PartialSignature, error) {
	if err := b.checkDuty(duty); err != nil {
		return nil, err
	}
	root, err := b.RandaoSigningRoot(ctx, epoch)
	if err != nil {
		return nil, err
	}
	return b.sign(ctx, types.KindRandao, duty.Slot, root, ssz.MarshalUint64(nil, uint64(epoch)))
}

func (b *Bridge) checkDuty(duty types.Duty) error {
	if duty.ValidatorPubKey() != b.dv.Identity.PubKey {
		return fmt.Errorf("duty belongs to validator %x, not %x", duty.ValidatorPubKey(), b.dv.Identity.PubKey)
	}
	return nil
}

func (b *Bridge) sign(ctx context.Context, kind types.DutyKind, slot phase0.Slot, root phase0.Root, object []byte) (*types.PartialSignature, error) {
	self := b.dv.Self()
	if self == nil {
		return nil, fmt.Errorf("self index %d is not a co-validator", b.dv.SelfIndex)
	}

	sig, err := b.signer.Sign(ctx, self.SharePubKey, root)
	if err != nil {
		b.logger.Warn("signing oracle failed",
			fields.DutyKind(kind),
			fields.Slot(slot),
			fields.Root(root),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", types.ErrSigningUnavailable, err)
	}

	b.logger.Debug("signed share",
		fields.DutyKind(kind),
		fields.Slot(slot),
		fields.Root(root),
		fields.Signer(self.Index))
	return &types.PartialSignature{
		Kind:            kind,
		ValidatorPubKey: b.dv.Identity.PubKey,
		Slot:            slot,
		SigningRoot:     root,
		Signer:          self.Index,
		Signature:       sig,
		Object:          object,
	}, nil
}
