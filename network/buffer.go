package network

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/jellydator/ttlcache/v3"

	"github.com/ssvlabs/dvnode/protocol/types"
)

type bufferKey struct {
	kind types.DutyKind
	root phase0.Root
}

type shareSet struct {
	mu        sync.Mutex
	firstSeen time.Time
	shares    map[uint64]*types.PartialSignature
}

// ShareBuffer keeps inbound signature shares of one distributed validator grouped by
// kind and signing root. A root's buffer expires ttl after its first share arrived.
type ShareBuffer struct {
	dv    *types.DistributedValidator
	cache *ttlcache.Cache[bufferKey, *shareSet]
}

func NewShareBuffer(dv *types.DistributedValidator, ttl time.Duration) *ShareBuffer {
	if ttl == 0 {
		ttl = DefaultShareTTL
	}
	return &ShareBuffer{
		dv: dv,
		cache: ttlcache.New(
			ttlcache.WithTTL[bufferKey, *shareSet](ttl),
			ttlcache.WithDisableTouchOnHit[bufferKey, *shareSet](),
		),
	}
}

// Start evicts expired buffers until ctx is done.
func (b *ShareBuffer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		b.cache.Stop()
	}()
	b.cache.Start()
}

// Add buffers a share. A share must verify under its signer's share key, so a forged
// share never takes the place of the signer's real one. A second share of the same
// signer for the same root is ignored.
func (b *ShareBuffer) Add(share *types.PartialSignature) (added bool, err error) {
	if err := share.Validate(); err != nil {
		return false, err
	}
	if share.ValidatorPubKey != b.dv.Identity.PubKey {
		return false, fmt.Errorf("share of unknown validator %x", share.ValidatorPubKey)
	}
	if _, ok := b.dv.CoValidator(share.Signer); !ok {
		return false, fmt.Errorf("signer %d is not a co-validator", share.Signer)
	}

	key := bufferKey{kind: share.Kind, root: share.SigningRoot}
	if item := b.cache.Get(key); item != nil && item.Value().has(share.Signer) {
		return false, nil
	}
	if err := b.dv.VerifyShare(share); err != nil {
		return false, fmt.Errorf("invalid share: %w", err)
	}

	item, _ := b.cache.GetOrSet(key, &shareSet{
		firstSeen: time.Now(),
		shares:    make(map[uint64]*types.PartialSignature),
	})
	set := item.Value()

	set.mu.Lock()
	defer set.mu.Unlock()
	if _, ok := set.shares[share.Signer]; ok {
		return false, nil
	}
	set.shares[share.Signer] = share
	return true, nil
}

func (s *shareSet) has(signer uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.shares[signer]
	return ok
}

func (b *ShareBuffer) Collect(kind types.DutyKind, signingRoot phase0.Root) []*types.PartialSignature {
	item := b.cache.Get(bufferKey{kind: kind, root: signingRoot})
	if item == nil {
		return nil
	}
	set := item.Value()

	set.mu.Lock()
	shares := make([]*types.PartialSignature, 0, len(set.shares))
	for _, share := range set.shares {
		shares = append(shares, share)
	}
	set.mu.Unlock()

	sort.Slice(shares, func(i, j int) bool { return shares[i].Signer < shares[j].Signer })
	return shares
}

func (b *ShareBuffer) Pending(kind types.DutyKind) []PendingRoot {
	var pending []PendingRoot
	now := time.Now()
	for key, item := range b.cache.Items() {
		if key.kind != kind || item.ExpiresAt().Before(now) {
			continue
		}
		set := item.Value()
		set.mu.Lock()
		pending = append(pending, PendingRoot{
			Kind:        key.kind,
			SigningRoot: key.root,
			FirstSeen:   set.firstSeen,
			Shares:      len(set.shares),
		})
		set.mu.Unlock()
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].FirstSeen.Before(pending[j].FirstSeen) })
	return pending
}

func (b *ShareBuffer) Discard(kind types.DutyKind, signingRoot phase0.Root) {
	b.cache.Delete(bufferKey{kind: kind, root: signingRoot})
}
