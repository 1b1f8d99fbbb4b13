package signer

import (
	"context"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// RemoteSigner signs roots with a co-validator key share. It holds no slashing
// protection of its own: callers must record the signed object before asking for a signature.
type RemoteSigner interface {
	Sign(ctx context.Context, sharePubKey phase0.BLSPubKey, root phase0.Root) (phase0.BLSSignature, error)
}

// DomainProvider resolves what signatures are domain separated with.
type DomainProvider interface {
	ForkVersion(ctx context.Context, slot phase0.Slot) (phase0.Version, error)
	GenesisValidatorsRoot(ctx context.Context) (phase0.Root, error)
}
