package operator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/api/handlers"
	apiserver "github.com/ssvlabs/dvnode/api/server"
	"github.com/ssvlabs/dvnode/beacon/goclient"
	globalconfig "github.com/ssvlabs/dvnode/cli/config"
	"github.com/ssvlabs/dvnode/combiner"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/network/p2p"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/observability"
	"github.com/ssvlabs/dvnode/operator"
	"github.com/ssvlabs/dvnode/operator/keystore"
	"github.com/ssvlabs/dvnode/protocol/qbft"
	"github.com/ssvlabs/dvnode/signer"
	"github.com/ssvlabs/dvnode/slashingprotection"
	"github.com/ssvlabs/dvnode/storage"
	"github.com/ssvlabs/dvnode/storage/basedb"
)

const shutdownTimeout = 10 * time.Second

type ValidatorOptions struct {
	ShareFile    string `yaml:"ShareFile" env:"SHARE_FILE" env-description:"Path to this co-validator's share file"`
	PasswordFile string `yaml:"PasswordFile" env:"SHARE_PASSWORD_FILE" env-description:"Path to the password of the share keystore"`
}

type config struct {
	globalconfig.GlobalConfig `yaml:"global"`
	DBOptions                 basedb.Options   `yaml:"db"`
	ConsensusClient           goclient.Options `yaml:"eth2"`
	P2P                       p2p.Config       `yaml:"p2p"`
	Validator                 ValidatorOptions `yaml:"validator"`

	NetworkName         string        `yaml:"Network" env:"NETWORK" env-default:"mainnet" env-description:"Beacon network the validator is on"`
	APIPort             int           `yaml:"APIPort" env:"API_PORT" env-description:"Port to listen on for the node API, 0 to disable"`
	EnableMetrics       bool          `yaml:"EnableMetrics" env:"ENABLE_METRICS" env-default:"true" env-description:"Whether to serve metrics on the API port"`
	RoundBudget         uint64        `yaml:"RoundBudget" env:"ROUND_BUDGET" env-description:"Consensus rounds per instance, 0 for the default"`
	MaxConcurrentDuties int           `yaml:"MaxConcurrentDuties" env:"MAX_CONCURRENT_DUTIES" env-description:"Duties executed concurrently, 0 for the default"`
	StaleShareAlarm     time.Duration `yaml:"StaleShareAlarm" env:"STALE_SHARE_ALARM" env-default:"1m" env-description:"How long a signing root may lack a quorum of shares before it is reported"`
}

var cfg config

var globalArgs globalconfig.Args

var StartNodeCmd = &cobra.Command{
	Use:   "start-node",
	Short: "Starts a co-validator of a distributed validator",
	Run: func(cmd *cobra.Command, args []string) {
		logger, err := setupGlobal()
		if err != nil {
			log.Fatal("could not create logger ", err)
		}
		defer logging.CapturePanic(logger)

		if err := startNode(cmd.Context(), logger, cmd.Parent().Short, cmd.Parent().Version); err != nil {
			logger.Fatal("node stopped with error", zap.Error(err))
		}
		logger.Info("node stopped")
	},
}

func init() {
	globalconfig.ProcessArgs(&cfg, &globalArgs, StartNodeCmd)
}

func setupGlobal() (*zap.Logger, error) {
	if globalArgs.ConfigPath != "" {
		if err := cleanenv.ReadConfig(globalArgs.ConfigPath, &cfg); err != nil {
			return nil, fmt.Errorf("could not read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("could not read env config: %w", err)
	}

	var fileOpts *logging.LogFileOptions
	if cfg.LogFilePath != "" {
		fileOpts = &logging.LogFileOptions{FilePath: cfg.LogFilePath}
	}
	if err := logging.SetGlobalLogger(cfg.LogLevel, cfg.LogLevelFormat, cfg.LogFormat, fileOpts); err != nil {
		return nil, fmt.Errorf("logging.SetGlobalLogger: %w", err)
	}

	return zap.L(), nil
}

func setupDB(logger *zap.Logger, beaconConfig *networkconfig.BeaconConfig) (basedb.Database, error) {
	db, err := storage.Open(logger, cfg.DBOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := verifyNetwork(db, beaconConfig); err != nil {
		return nil, multierr.Append(err, db.Close())
	}
	return db, nil
}

func startNode(ctx context.Context, logger *zap.Logger, appName, version string) (err error) {
	logger.Info("starting dvnode", zap.String("version", version))

	beaconConfig, err := networkconfig.GetBeaconConfigByName(cfg.NetworkName)
	if err != nil {
		return err
	}
	logger.Info("using beacon network", fields.Name(beaconConfig.NetworkName()))

	var observabilityOptions []observability.Option
	if cfg.EnableMetrics {
		observabilityOptions = append(observabilityOptions, observability.WithMetrics())
	}
	shutdownObservability, err := observability.Initialize(appName, version, observabilityOptions...)
	if err != nil {
		return fmt.Errorf("could not initialize observability: %w", err)
	}

	cfg.DBOptions.Ctx = ctx
	db, err := setupDB(logger, beaconConfig)
	if err != nil {
		return err
	}
	store := slashingprotection.New(logger, db)

	dv, share, err := keystore.Load(cfg.Validator.ShareFile, cfg.Validator.PasswordFile)
	if err != nil {
		return multierr.Append(fmt.Errorf("could not load share: %w", err), db.Close())
	}
	logger = logger.With(fields.Validator(dv.Identity.PubKey))

	consensusClient, err := goclient.New(ctx, logger, cfg.ConsensusClient, beaconConfig)
	if err != nil {
		return multierr.Append(fmt.Errorf("could not create beacon client: %w", err), db.Close())
	}

	p2pNetwork, err := p2p.New(logger, &cfg.P2P, dv)
	if err != nil {
		return multierr.Append(err, db.Close())
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Combine(err, p2pNetwork.Close(), db.Close(), shutdownObservability(shutdownCtx))
	}()
	if err := p2pNetwork.Start(ctx); err != nil {
		return fmt.Errorf("could not start p2p network: %w", err)
	}

	consensus := qbft.Config{RoundBudget: cfg.RoundBudget}
	copy(consensus.Graffiti[:], cfg.ConsensusClient.Graffiti)

	node, err := operator.New(logger, operator.Options{
		DV:                  dv,
		BeaconNode:          consensusClient,
		BeaconConfig:        beaconConfig,
		Transport:           p2pNetwork,
		Signer:              signer.NewLocalSigner(share),
		SlashingStore:       store,
		Consensus:           consensus,
		Combiner:            combiner.LoopOptions{StaleAfter: cfg.StaleShareAlarm},
		MaxConcurrentDuties: cfg.MaxConcurrentDuties,
	})
	if err != nil {
		return err
	}

	if cfg.APIPort > 0 {
		var listenAddresses []string
		if addrs, err := p2pNetwork.Addrs(); err == nil {
			for _, addr := range addrs {
				listenAddresses = append(listenAddresses, addr.String())
			}
		}
		apiServer := apiserver.New(
			logger,
			fmt.Sprintf(":%d", cfg.APIPort),
			&handlers.Node{
				BeaconNode:      consensusClient,
				Network:         p2pNetwork,
				CoValidators:    len(dv.CoValidators),
				ListenAddresses: listenAddresses,
			},
			&handlers.SlashingProtection{
				Store:                 store,
				GenesisValidatorsRoot: beaconConfig.GenesisValidatorsRoot(),
			},
			cfg.EnableMetrics,
		)
		go func() {
			if err := apiServer.Run(ctx); err != nil {
				logger.Error("API server stopped", zap.Error(err))
			}
		}()
	}

	if err := node.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
