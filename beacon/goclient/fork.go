package goclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/patrickmn/go-cache"
)

func (gc *GoClient) genesis(ctx context.Context) (*apiv1.Genesis, error) {
	if cached, ok := gc.cache.Get(genesisCacheKey); ok {
		return cached.(*apiv1.Genesis), nil
	}

	ctx, cancel := context.WithTimeout(ctx, gc.commonTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.Genesis(ctx, &api.GenesisOpts{})
	recordRequest(ctx, gc.log, "Genesis", gc.client.Address(), http.MethodGet, time.Since(start), err)
	if err != nil {
		return nil, errClient(fmt.Errorf("fetch genesis: %w", err), gc.client.Address(), "Genesis")
	}
	if resp == nil || resp.Data == nil {
		return nil, errClient(errNilResponse, gc.client.Address(), "Genesis")
	}

	gc.cache.Set(genesisCacheKey, resp.Data, cache.NoExpiration)
	return resp.Data, nil
}

func (gc *GoClient) GenesisValidatorsRoot(ctx context.Context) (phase0.Root, error) {
	genesis, err := gc.genesis(ctx)
	if err != nil {
		return phase0.Root{}, err
	}
	return genesis.GenesisValidatorsRoot, nil
}

func (gc *GoClient) forkSchedule(ctx context.Context) ([]*phase0.Fork, error) {
	if cached, ok := gc.cache.Get(forkScheduleCacheKey); ok {
		return cached.([]*phase0.Fork), nil
	}

	ctx, cancel := context.WithTimeout(ctx, gc.commonTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.ForkSchedule(ctx, &api.ForkScheduleOpts{})
	recordRequest(ctx, gc.log, "ForkSchedule", gc.client.Address(), http.MethodGet, time.Since(start), err)
	if err != nil {
		return nil, errClient(fmt.Errorf("fetch fork schedule: %w", err), gc.client.Address(), "ForkSchedule")
	}
	if resp == nil || resp.Data == nil {
		return nil, errClient(errNilResponse, gc.client.Address(), "ForkSchedule")
	}

	gc.cache.Set(forkScheduleCacheKey, resp.Data, forkScheduleTTL)
	return resp.Data, nil
}

// ForkVersion returns the current version of the latest fork scheduled at or before the
// slot's epoch.
func (gc *GoClient) ForkVersion(ctx context.Context, slot phase0.Slot) (phase0.Version, error) {
	schedule, err := gc.forkSchedule(ctx)
	if err != nil {
		return phase0.Version{}, err
	}

	epoch := gc.beaconConfig.EstimatedEpochAtSlot(slot)
	var forkAtEpoch *phase0.Fork
	for _, fork := range schedule {
		if fork.Epoch <= epoch && (forkAtEpoch == nil || fork.Epoch >= forkAtEpoch.Epoch) {
			forkAtEpoch = fork
		}
	}
	if forkAtEpoch == nil {
		return phase0.Version{}, fmt.Errorf("could not find fork at epoch %d", epoch)
	}
	return forkAtEpoch.CurrentVersion, nil
}
