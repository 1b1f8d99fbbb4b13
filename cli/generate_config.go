package cli

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ssvlabs/dvnode/networkconfig"
)

const (
	defaultOutputPath     = "./config/config.local.yaml"
	defaultLogLevel       = "info"
	defaultDBEngine       = "badger"
	defaultDBPath         = "./data/db"
	defaultNetwork        = "holesky"
	defaultListenAddr     = "/ip4/0.0.0.0/tcp/13001"
	sliceSeparator        = ","
	configFilePermissions = 0o644
)

var (
	outputPath        string
	logLevel          string
	dbEngine          string
	dbPath            string
	networkName       string
	consensusClient   string
	shareFile         string
	passwordFile      string
	p2pListenAddr     string
	p2pPeers          string
	coValidatorPeers  string
	apiPort           int
	enableMetrics     bool
	roundBudget       uint64
	maxConcurrentDuty int
)

// NodeConfig is the YAML skeleton read by start-node.
type NodeConfig struct {
	Global struct {
		LogLevel string `yaml:"LogLevel,omitempty"`
	} `yaml:"global,omitempty"`
	DB struct {
		Engine string `yaml:"Engine,omitempty"`
		Path   string `yaml:"Path,omitempty"`
	} `yaml:"db,omitempty"`
	ConsensusClient struct {
		Address string `yaml:"BeaconNodeAddr,omitempty"`
	} `yaml:"eth2,omitempty"`
	P2P struct {
		ListenAddr       string            `yaml:"ListenAddr,omitempty"`
		Peers            []string          `yaml:"Peers,omitempty"`
		CoValidatorPeers map[uint64]string `yaml:"CoValidatorPeers,omitempty"`
	} `yaml:"p2p,omitempty"`
	Validator struct {
		ShareFile    string `yaml:"ShareFile,omitempty"`
		PasswordFile string `yaml:"PasswordFile,omitempty"`
	} `yaml:"validator,omitempty"`
	Network             string `yaml:"Network,omitempty"`
	APIPort             int    `yaml:"APIPort,omitempty"`
	EnableMetrics       bool   `yaml:"EnableMetrics,omitempty"`
	RoundBudget         uint64 `yaml:"RoundBudget,omitempty"`
	MaxConcurrentDuties int    `yaml:"MaxConcurrentDuties,omitempty"`
}

func buildNodeConfig() (*NodeConfig, error) {
	if _, err := networkconfig.GetBeaconConfigByName(networkName); err != nil {
		return nil, fmt.Errorf("%w, supported: %s", err, strings.Join(networkconfig.SupportedNames(), sliceSeparator))
	}

	var config NodeConfig
	config.Global.LogLevel = logLevel
	config.DB.Engine = dbEngine
	config.DB.Path = dbPath
	config.ConsensusClient.Address = consensusClient
	config.P2P.ListenAddr = p2pListenAddr
	if p2pPeers != "" {
		config.P2P.Peers = strings.Split(p2pPeers, sliceSeparator)
	}
	if coValidatorPeers != "" {
		peers, err := parseCoValidatorPeers(coValidatorPeers)
		if err != nil {
			return nil, err
		}
		config.P2P.CoValidatorPeers = peers
	}
	config.Validator.ShareFile = shareFile
	config.Validator.PasswordFile = passwordFile
	config.Network = networkName
	config.APIPort = apiPort
	config.EnableMetrics = enableMetrics
	config.RoundBudget = roundBudget
	config.MaxConcurrentDuties = maxConcurrentDuty
	return &config, nil
}

// parseCoValidatorPeers parses "index:peerid" pairs.
func parseCoValidatorPeers(value string) (map[uint64]string, error) {
	peers := make(map[uint64]string)
	for _, pair := range strings.Split(value, sliceSeparator) {
		index, id, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid co-validator peer %q, expected index:peerid", pair)
		}
		i, err := strconv.ParseUint(index, 10, 64)
		if err != nil || i == 0 {
			return nil, fmt.Errorf("invalid co-validator index in %q", pair)
		}
		peers[i] = id
	}
	return peers, nil
}

// generateConfigCmd is the command to generate a node config.
var generateConfigCmd = &cobra.Command{
	Use:   "generate-config",
	Short: "generates a dvnode config",
	Run: func(cmd *cobra.Command, args []string) {
		config, err := buildNodeConfig()
		if err != nil {
			log.Fatalf("Invalid config: %v", err)
		}

		data, err := yaml.Marshal(config)
		if err != nil {
			log.Fatalf("Failed to marshal YAML: %v", err)
		}

		err = os.WriteFile(outputPath, data, configFilePermissions)
		if err != nil {
			log.Fatalf("Failed to write file: %v", err)
		}

		log.Printf("Saved config into '%s':", outputPath)
		fmt.Println(string(data))
	},
}

func init() {
	generateConfigCmd.Flags().StringVarP(&outputPath, "output-path", "o", defaultOutputPath, "Output path for generated config")
	generateConfigCmd.Flags().StringVar(&logLevel, "log-level", defaultLogLevel, "Log level")
	generateConfigCmd.Flags().StringVar(&dbEngine, "db-engine", defaultDBEngine, "DB engine (badger or pebble)")
	generateConfigCmd.Flags().StringVar(&dbPath, "db-path", defaultDBPath, "DB path")
	generateConfigCmd.Flags().StringVar(&networkName, "network", defaultNetwork, "Beacon network name")
	generateConfigCmd.Flags().StringVar(&consensusClient, "consensus-client", "", "Consensus client (required)")
	_ = generateConfigCmd.MarkFlagRequired("consensus-client")
	generateConfigCmd.Flags().StringVar(&shareFile, "share-file", "", "Share file of this co-validator (required)")
	_ = generateConfigCmd.MarkFlagRequired("share-file")
	generateConfigCmd.Flags().StringVar(&passwordFile, "password-file", "", "Password file of the share keystore (required)")
	_ = generateConfigCmd.MarkFlagRequired("password-file")
	generateConfigCmd.Flags().StringVar(&p2pListenAddr, "p2p-listen-addr", defaultListenAddr, "libp2p listen multiaddr")
	generateConfigCmd.Flags().StringVar(&p2pPeers, "p2p-peers", "", "Co-validator multiaddrs (comma-separated)")
	generateConfigCmd.Flags().StringVar(&coValidatorPeers, "p2p-co-validator-peers", "", "Peer id of each other co-validator, as index:peerid (comma-separated)")
	generateConfigCmd.Flags().IntVar(&apiPort, "api-port", 0, "API port")
	generateConfigCmd.Flags().BoolVar(&enableMetrics, "enable-metrics", false, "Serve /metrics on the API port")
	generateConfigCmd.Flags().Uint64Var(&roundBudget, "round-budget", 0, "Consensus rounds per instance, 0 for the default")
	generateConfigCmd.Flags().IntVar(&maxConcurrentDuty, "max-concurrent-duties", 0, "Duties executed concurrently, 0 for the default")

	RootCmd.AddCommand(generateConfigCmd)
}
