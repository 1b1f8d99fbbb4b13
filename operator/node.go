// Package operator wires the components serving one distributed validator into a node.
package operator

import (
	"context"
	"fmt"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ssvlabs/dvnode/beacon"
	"github.com/ssvlabs/dvnode/combiner"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/network"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/operator/duties"
	"github.com/ssvlabs/dvnode/operator/slotticker"
	"github.com/ssvlabs/dvnode/protocol/qbft"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/signer"
	"github.com/ssvlabs/dvnode/slashingprotection"
)

// Options contains options to create the node
type Options struct {
	DV            *types.DistributedValidator
	BeaconNode    beacon.BeaconNode
	BeaconConfig  *networkconfig.BeaconConfig
	Transport     network.Transport
	Signer        signer.RemoteSigner
	SlashingStore *slashingprotection.Store

	Consensus           qbft.Config
	Combiner            combiner.LoopOptions
	MaxConcurrentDuties int
	// SlotTickerProvider defaults to a ticker over BeaconConfig.
	SlotTickerProvider slotticker.Provider
}

// Node serves the duties of one distributed validator.
type Node struct {
	logger       *zap.Logger
	dv           *types.DistributedValidator
	store        *slashingprotection.Store
	bridge       *signer.Bridge
	controller   *qbft.Controller
	orchestrator *duties.Orchestrator
	scheduler    *duties.Scheduler
	loops        []*combiner.Loop
}

// New is the constructor of Node. It installs the consensus controller as the
// transport's consensus router.
func New(logger *zap.Logger, opts Options) (*Node, error) {
	if opts.DV == nil {
		return nil, fmt.Errorf("missing distributed validator")
	}
	if err := opts.DV.Validate(); err != nil {
		return nil, fmt.Errorf("invalid distributed validator: %w", err)
	}
	if opts.SlashingStore == nil {
		return nil, fmt.Errorf("missing slashing protection store")
	}
	dv := opts.DV
	logger = logger.Named(logging.NameNode).With(fields.Validator(dv.Identity.PubKey), zap.Uint64("self", dv.SelfIndex))

	bridge := signer.NewBridge(logger, dv, opts.Signer, opts.BeaconNode, opts.BeaconConfig)
	check := qbft.NewValueCheck(opts.SlashingStore, bridge)
	controller := qbft.NewController(logger, dv, opts.Transport, opts.BeaconNode, check, opts.Consensus)
	opts.Transport.UseConsensusRouter(controller)

	randao := combiner.NewRandaoFeed()
	orchestrator := duties.NewOrchestrator(logger, duties.OrchestratorOptions{
		DV:           dv,
		BeaconConfig: opts.BeaconConfig,
		Engine:       controller,
		Validity:     check,
		Store:        opts.SlashingStore,
		Signer:       bridge,
		Transport:    opts.Transport,
		Randao:       randao,
	})

	beaconSink := combiner.NewBeaconSink(opts.BeaconNode)
	loops := []*combiner.Loop{
		combiner.NewLoop(logger, types.KindAttestation, dv, opts.Transport, bridge, beaconSink, opts.Combiner),
		combiner.NewLoop(logger, types.KindProposal, dv, opts.Transport, bridge, beaconSink, opts.Combiner),
		combiner.NewLoop(logger, types.KindRandao, dv, opts.Transport, bridge, randao, opts.Combiner),
	}

	tickerProvider := opts.SlotTickerProvider
	if tickerProvider == nil {
		tickerProvider = func() slotticker.SlotTicker {
			return slotticker.New(slotticker.Config{
				SlotDuration: opts.BeaconConfig.SlotDuration(),
				GenesisTime:  opts.BeaconConfig.GenesisTime(),
			})
		}
	}
	scheduler := duties.NewScheduler(logger, &duties.SchedulerOptions{
		BeaconNode:          opts.BeaconNode,
		BeaconConfig:        opts.BeaconConfig,
		Indices:             []phase0.ValidatorIndex{dv.Identity.Index},
		Executor:            orchestrator,
		SlotTickerProvider:  tickerProvider,
		MaxConcurrentDuties: opts.MaxConcurrentDuties,
	})

	return &Node{
		logger:       logger,
		dv:           dv,
		store:        opts.SlashingStore,
		bridge:       bridge,
		controller:   controller,
		orchestrator: orchestrator,
		scheduler:    scheduler,
		loops:        loops,
	}, nil
}

// Start runs the scheduler and the combination loops until ctx is done or one of them
// fails.
func (n *Node) Start(ctx context.Context) error {
	n.logger.Info("all required services are ready. node is running",
		fields.ValidatorIndex(n.dv.Identity.Index),
		zap.Uint64("threshold", n.dv.Threshold),
		fields.Count(len(n.dv.CoValidators)))

	g, ctx := errgroup.WithContext(ctx)
	for _, loop := range n.loops {
		g.Go(func() error {
			return loop.Run(ctx)
		})
	}
	g.Go(func() error {
		return n.scheduler.Run(ctx)
	})
	return g.Wait()
}

// Orchestrator serves duties outside of the schedule, e.g. a duty changed by a reorg.
func (n *Node) Orchestrator() *duties.Orchestrator {
	return n.orchestrator
}

func (n *Node) SlashingStore() *slashingprotection.Store {
	return n.store
}

func (n *Node) Bridge() *signer.Bridge {
	return n.bridge
}
