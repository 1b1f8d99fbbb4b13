package goclient

import (
	"context"
	"fmt"
	"time"

	eth2client "github.com/attestantio/go-eth2-client"
	eth2clienthttp "github.com/attestantio/go-eth2-client/http"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/beacon"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/networkconfig"
)

const (
	// Client timeouts.
	DefaultCommonTimeout = time.Second * 5  // For dialing and most requests.
	DefaultLongTimeout   = time.Second * 60 // For long requests.

	clResponseErrMsg = "Consensus client returned an error"

	genesisCacheKey      = "genesis"
	forkScheduleCacheKey = "fork_schedule"
	forkScheduleTTL      = time.Hour
)

// Client defines all go-eth2-client interfaces used by the node.
type Client interface {
	Address() string

	eth2client.GenesisProvider
	eth2client.NodeSyncingProvider
	eth2client.ForkScheduleProvider
	eth2client.AttesterDutiesProvider
	eth2client.ProposerDutiesProvider
	eth2client.AttestationDataProvider
	eth2client.AttestationsSubmitter
	eth2client.ProposalProvider
	eth2client.ProposalSubmitter
}

var _ beacon.BeaconNode = (*GoClient)(nil)

// GoClient implements beacon.BeaconNode over the standard beacon node API.
type GoClient struct {
	log          *zap.Logger
	beaconConfig *networkconfig.BeaconConfig
	client       Client

	commonTimeout         time.Duration
	longTimeout           time.Duration
	syncDistanceTolerance phase0.Slot

	// cache holds genesis (forever) and the fork schedule (for an hour).
	cache *cache.Cache

	// attestationReqInflight prevents duplicate attestation data requests.
	attestationReqInflight attestationDataGroup
}

// New connects to the beacon node at opt.BeaconNodeAddr.
func New(ctx context.Context, logger *zap.Logger, opt Options, beaconConfig *networkconfig.BeaconConfig) (*GoClient, error) {
	if opt.BeaconNodeAddr == "" {
		return nil, fmt.Errorf("no beacon node address provided")
	}
	logger = logger.Named(logging.NameBeaconClient)
	logger.Info("consensus client: connecting", fields.Address(opt.BeaconNodeAddr), fields.Name(beaconConfig.NetworkName()))

	commonTimeout := opt.CommonTimeout
	if commonTimeout == 0 {
		commonTimeout = DefaultCommonTimeout
	}

	httpClient, err := eth2clienthttp.New(
		ctx,
		// WithAddress supplies the address of the beacon node, in host:port format.
		eth2clienthttp.WithAddress(opt.BeaconNodeAddr),
		// LogLevel supplies the level of logging to carry out.
		eth2clienthttp.WithLogLevel(zerolog.DebugLevel),
		eth2clienthttp.WithTimeout(commonTimeout),
	)
	if err != nil {
		logger.Error("Consensus http client initialization failed",
			fields.Address(opt.BeaconNodeAddr),
			zap.Error(err),
		)
		return nil, fmt.Errorf("create http client: %w", err)
	}

	gc := NewWithClient(logger, httpClient.(*eth2clienthttp.Service), opt, beaconConfig)
	if err := gc.assertSameNetwork(ctx); err != nil {
		return nil, err
	}
	return gc, nil
}

// NewWithClient wraps an already connected client.
func NewWithClient(logger *zap.Logger, client Client, opt Options, beaconConfig *networkconfig.BeaconConfig) *GoClient {
	commonTimeout := opt.CommonTimeout
	if commonTimeout == 0 {
		commonTimeout = DefaultCommonTimeout
	}
	longTimeout := opt.LongTimeout
	if longTimeout == 0 {
		longTimeout = DefaultLongTimeout
	}
	return &GoClient{
		log:                   logger,
		beaconConfig:          beaconConfig,
		client:                client,
		commonTimeout:         commonTimeout,
		longTimeout:           longTimeout,
		syncDistanceTolerance: phase0.Slot(opt.SyncDistanceTolerance),
		cache:                 cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

// assertSameNetwork checks the node serves the configured network.
func (gc *GoClient) assertSameNetwork(ctx context.Context) error {
	genesis, err := gc.genesis(ctx)
	if err != nil {
		return err
	}
	if genesis.GenesisForkVersion != gc.beaconConfig.GenesisForkVersion() {
		return fmt.Errorf("genesis fork version mismatch, expected %x, got %x",
			gc.beaconConfig.GenesisForkVersion(), genesis.GenesisForkVersion)
	}
	if genesis.GenesisValidatorsRoot != gc.beaconConfig.GenesisValidatorsRoot() {
		return fmt.Errorf("genesis validators root mismatch, expected %x, got %x",
			gc.beaconConfig.GenesisValidatorsRoot(), genesis.GenesisValidatorsRoot)
	}
	gc.log.Info("consensus client connected", fields.Address(gc.client.Address()))
	return nil
}
