package signer

import (
	"context"
	"fmt"
	"sync"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/herumi/bls-eth-go-binary/bls"

	"github.com/ssvlabs/dvnode/protocol/types"
)

var _ RemoteSigner = (*LocalSigner)(nil)

// LocalSigner keeps key shares in memory.
type LocalSigner struct {
	mu     sync.RWMutex
	shares map[phase0.BLSPubKey]*bls.SecretKey
}

func NewLocalSigner(shares ...*bls.SecretKey) *LocalSigner {
	types.InitBLS()

	s := &LocalSigner{shares: make(map[phase0.BLSPubKey]*bls.SecretKey, len(shares))}
	for _, share := range shares {
		s.AddShare(share)
	}
	return s
}

// AddShare adds a key share and returns its public key.
func (s *LocalSigner) AddShare(share *bls.SecretKey) phase0.BLSPubKey {
	var pk phase0.BLSPubKey
	copy(pk[:], share.GetPublicKey().Serialize())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[pk] = share
	return pk
}

func (s *LocalSigner) Sign(ctx context.Context, sharePubKey phase0.BLSPubKey, root phase0.Root) (phase0.BLSSignature, error) {
	if err := ctx.Err(); err != nil {
		return phase0.BLSSignature{}, err
	}

	s.mu.RLock()
	share, ok := s.shares[sharePubKey]
	s.mu.RUnlock()
	if !ok {
		return phase0.BLSSignature{}, fmt.Errorf("unknown share %x", sharePubKey)
	}

	var sig phase0.BLSSignature
	copy(sig[:], share.SignByte(root[:]).Serialize())
	return sig, nil
}
