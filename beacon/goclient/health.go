package goclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	eth2api "github.com/attestantio/go-eth2-client/api"
	"go.uber.org/zap"
)

// Healthy returns nil when the beacon node is reachable, synced within the tolerance and
// not optimistic.
func (gc *GoClient) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, gc.commonTimeout)
	defer cancel()

	start := time.Now()
	resp, err := gc.client.NodeSyncing(ctx, &eth2api.NodeSyncingOpts{})
	recordRequest(ctx, gc.log, "NodeSyncing", gc.client.Address(), http.MethodGet, time.Since(start), err)
	if err != nil {
		gc.log.Error(clResponseErrMsg, zap.String("api", "NodeSyncing"), zap.Error(err))
		return fmt.Errorf("failed to obtain node syncing status: %w", err)
	}
	if resp == nil || resp.Data == nil {
		return errClient(errNilResponse, gc.client.Address(), "NodeSyncing")
	}

	syncState := resp.Data
	if syncState.IsSyncing && syncState.SyncDistance > gc.syncDistanceTolerance {
		gc.log.Error("Consensus client is not synced", zap.Uint64("sync_distance", uint64(syncState.SyncDistance)))
		return errSyncing
	}
	if syncState.IsOptimistic {
		gc.log.Error("Consensus client is in optimistic mode")
		return errOptimistic
	}
	return nil
}
