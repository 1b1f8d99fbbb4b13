package combiner

import (
	"context"
	"fmt"
	"time"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/jellydator/ttlcache/v3"
	"github.com/prysmaticlabs/prysm/v4/async/event"
)

// Sink receives combined objects of the kinds it handles.
type Sink interface {
	Deliver(ctx context.Context, obj *Combined) error
}

// BeaconSubmitter is the part of the beacon node combined objects are submitted to.
type BeaconSubmitter interface {
	SubmitAttestation(ctx context.Context, attestation *phase0.Attestation) error
	SubmitBlock(ctx context.Context, block *phase0.SignedBeaconBlock) error
}

// BeaconSink submits attestations and blocks to the beacon node.
type BeaconSink struct {
	beacon BeaconSubmitter
}

func NewBeaconSink(beacon BeaconSubmitter) *BeaconSink {
	return &BeaconSink{beacon: beacon}
}

func (s *BeaconSink) Deliver(ctx context.Context, obj *Combined) error {
	switch {
	case obj.Attestation != nil:
		return s.beacon.SubmitAttestation(ctx, obj.Attestation)
	case obj.Block != nil:
		return s.beacon.SubmitBlock(ctx, obj.Block)
	default:
		return fmt.Errorf("nothing to submit for %s", obj.Signature.Kind)
	}
}

// defaultRandaoRetention keeps reveals around for late subscribers, e.g. a second proposal
// of the validator within the same epoch.
const defaultRandaoRetention = 15 * time.Minute

// RandaoFeed publishes combined randao reveals to waiting proposers.
type RandaoFeed struct {
	feed   *event.Feed
	recent *ttlcache.Cache[phase0.Epoch, phase0.BLSSignature]
}

func NewRandaoFeed() *RandaoFeed {
	return &RandaoFeed{
		feed:   &event.Feed{},
		recent: ttlcache.New(ttlcache.WithTTL[phase0.Epoch, phase0.BLSSignature](defaultRandaoRetention)),
	}
}

func (f *RandaoFeed) Deliver(_ context.Context, obj *Combined) error {
	if obj.Randao == nil {
		return fmt.Errorf("not a randao reveal")
	}
	f.recent.DeleteExpired()
	f.recent.Set(obj.Randao.Epoch, obj.Randao.Signature, ttlcache.DefaultTTL)
	f.feed.Send(*obj.Randao)
	return nil
}

// Await blocks until the reveal of the epoch is combined or ctx is done.
func (f *RandaoFeed) Await(ctx context.Context, epoch phase0.Epoch) (phase0.BLSSignature, error) {
	ch := make(chan RandaoReveal, 8)
	sub := f.feed.Subscribe(ch)
	defer sub.Unsubscribe()

	if item := f.recent.Get(epoch); item != nil {
		return item.Value(), nil
	}
	for {
		select {
		case reveal := <-ch:
			if reveal.Epoch == epoch {
				return reveal.Signature, nil
			}
		case err := <-sub.Err():
			return phase0.BLSSignature{}, fmt.Errorf("randao subscription closed: %w", err)
		case <-ctx.Done():
			return phase0.BLSSignature{}, fmt.Errorf("randao reveal of epoch %d not combined: %w", epoch, ctx.Err())
		}
	}
}
