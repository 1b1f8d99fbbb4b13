package signer

import (
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	spectypes "github.com/ssvlabs/ssv-spec/types"

	"github.com/ssvlabs/dvnode/protocol/types"
)

// DomainType returns the beacon chain domain type a kind of object is signed under.
func DomainType(kind types.DutyKind) (phase0.DomainType, error) {
	switch kind {
	case types.KindAttestation:
		return spectypes.DomainAttester, nil
	case types.KindProposal:
		return spectypes.DomainProposer, nil
	case types.KindRandao:
		return spectypes.DomainRandao, nil
	default:
		return phase0.DomainType{}, fmt.Errorf("no domain for kind %s", kind)
	}
}

// ComputeDomain returns the domain type followed by the first 28 bytes of the fork data root.
func ComputeDomain(domainType phase0.DomainType, forkVersion phase0.Version, genesisValidatorsRoot phase0.Root) (phase0.Domain, error) {
	forkData := &phase0.ForkData{
		CurrentVersion:        forkVersion,
		GenesisValidatorsRoot: genesisValidatorsRoot,
	}
	root, err := forkData.HashTreeRoot()
	if err != nil {
		return phase0.Domain{}, fmt.Errorf("failed to calculate signature domain, err: %w", err)
	}

	var domain phase0.Domain
	copy(domain[:], domainType[:])
	copy(domain[4:], root[:])
	return domain, nil
}
