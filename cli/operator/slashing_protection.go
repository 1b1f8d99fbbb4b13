package operator

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/aquasecurity/table"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/cli/flags"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/networkconfig"
	"github.com/ssvlabs/dvnode/slashingprotection"
)

// Flag names.
const (
	networkConfigNameFlag = "network-config-name"
	dbPathFlag            = "db-path"
	dbEngineFlag          = "db-engine"
	configPathFlag        = "config-path"
	fileFlag              = "file"
	pubKeysFlag           = "pubkeys"
)

const interchangeFilePermissions = 0o600

var ExportSlashingProtectionCmd = &cobra.Command{
	Use:   "export-slashing-protection",
	Short: "Exports the signing history as an EIP-3076 interchange file",
	Run: func(cmd *cobra.Command, args []string) {
		logger, store, beaconConfig, closeDB := openSlashingProtection(cmd, logging.NameExportSlashingDB)
		defer closeDB()

		file, err := cmd.Flags().GetString(fileFlag)
		if err != nil {
			logger.Fatal("failed to get file flag value", zap.Error(err))
		}
		rawPubKeys, err := cmd.Flags().GetString(pubKeysFlag)
		if err != nil {
			logger.Fatal("failed to get pubkeys flag value", zap.Error(err))
		}
		pubKeys, err := parsePubKeys(rawPubKeys)
		if err != nil {
			logger.Fatal("invalid pubkeys", zap.Error(err))
		}

		ic, err := exportSlashingProtection(store, beaconConfig.GenesisValidatorsRoot(), file, pubKeys)
		if err != nil {
			logger.Fatal("failed to export slashing protection", zap.Error(err))
		}
		logger.Info("exported slashing protection", zap.String("file", file), fields.Count(len(ic.Data)))
	},
}

var ImportSlashingProtectionCmd = &cobra.Command{
	Use:   "import-slashing-protection",
	Short: "Merges an EIP-3076 interchange file into the signing history",
	Run: func(cmd *cobra.Command, args []string) {
		logger, store, beaconConfig, closeDB := openSlashingProtection(cmd, logging.NameImportSlashingDB)
		defer closeDB()

		file, err := cmd.Flags().GetString(fileFlag)
		if err != nil {
			logger.Fatal("failed to get file flag value", zap.Error(err))
		}

		summary, err := importSlashingProtection(store, beaconConfig.GenesisValidatorsRoot(), file)
		if summary != nil {
			logger.Info("imported slashing protection",
				zap.Int("validators", summary.Validators),
				zap.Int("imported", summary.Imported),
				zap.Int("duplicates", summary.Duplicates),
				zap.Int("below_minimum", summary.BelowMinimum))
		}
		if err != nil {
			logger.Fatal("failed to import slashing protection", zap.Error(err))
		}
	},
}

var InspectSlashingProtectionCmd = &cobra.Command{
	Use:   "inspect-slashing-protection",
	Short: "Prints a summary of the signing history of every validator",
	Run: func(cmd *cobra.Command, args []string) {
		logger, store, _, closeDB := openSlashingProtection(cmd, logging.NameInspectSlashingDB)
		defer closeDB()

		if err := inspectSlashingProtection(store, cmd.OutOrStdout()); err != nil {
			logger.Fatal("failed to inspect slashing protection", zap.Error(err))
		}
	},
}

// openSlashingProtection opens the node database named by the flags or the node config.
func openSlashingProtection(cmd *cobra.Command, name string) (*zap.Logger, *slashingprotection.Store, *networkconfig.BeaconConfig, func()) {
	if err := logging.SetGlobalLogger("info", "capital", "console", nil); err != nil {
		log.Fatal(err)
	}
	logger := zap.L().Named(name)

	configPath, err := cmd.Flags().GetString(configPathFlag)
	if err != nil {
		logger.Fatal("failed to get config path flag value", zap.Error(err))
	}
	if configPath != "" {
		if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
			logger.Fatal("failed to read config", zap.Error(err))
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		logger.Fatal("failed to read env config", zap.Error(err))
	}

	if networkName, _ := cmd.Flags().GetString(networkConfigNameFlag); networkName != "" {
		cfg.NetworkName = networkName
	}
	if dbPath, _ := cmd.Flags().GetString(dbPathFlag); dbPath != "" {
		cfg.DBOptions.Path = dbPath
	}
	if dbEngine, _ := cmd.Flags().GetString(dbEngineFlag); dbEngine != "" {
		cfg.DBOptions.Engine = dbEngine
	}
	// No background collection for a one-shot command.
	cfg.DBOptions.GCInterval = 0

	beaconConfig, err := networkconfig.GetBeaconConfigByName(cfg.NetworkName)
	if err != nil {
		logger.Fatal("failed to get network config", zap.Error(err))
	}

	cfg.DBOptions.Ctx = cmd.Context()
	db, err := setupDB(logger, beaconConfig)
	if err != nil {
		logger.Fatal("failed to open db", zap.Error(err), zap.String("path", cfg.DBOptions.Path))
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close db", zap.Error(err))
		}
	}
	return logger, slashingprotection.New(logger, db), beaconConfig, closeDB
}

func parsePubKeys(raw string) ([]phase0.BLSPubKey, error) {
	if raw == "" {
		return nil, nil
	}
	var pubKeys []phase0.BLSPubKey
	for _, s := range strings.Split(raw, ",") {
		pubKey, err := slashingprotection.PubKeyFromHex(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		pubKeys = append(pubKeys, pubKey)
	}
	return pubKeys, nil
}

func exportSlashingProtection(
	store *slashingprotection.Store,
	genesisValidatorsRoot phase0.Root,
	file string,
	pubKeys []phase0.BLSPubKey,
) (*slashingprotection.Interchange, error) {
	ic, err := store.Export(genesisValidatorsRoot, pubKeys...)
	if err != nil {
		return nil, err
	}
	data, err := json.MarshalIndent(ic, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("could not encode interchange: %w", err)
	}
	if err := os.WriteFile(file, data, interchangeFilePermissions); err != nil {
		return nil, fmt.Errorf("could not write interchange file: %w", err)
	}
	return ic, nil
}

func importSlashingProtection(
	store *slashingprotection.Store,
	genesisValidatorsRoot phase0.Root,
	file string,
) (*slashingprotection.ImportSummary, error) {
	// nolint: gosec
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("could not read interchange file: %w", err)
	}
	var ic slashingprotection.Interchange
	if err := json.Unmarshal(data, &ic); err != nil {
		return nil, fmt.Errorf("could not parse interchange file: %w", err)
	}
	return store.Import(&ic, genesisValidatorsRoot)
}

// pubKeyHexLen is the length of a 0x prefixed hex BLS public key.
const pubKeyHexLen = 2 + 2*len(phase0.BLSPubKey{})

func inspectSlashingProtection(store *slashingprotection.Store, w io.Writer) error {
	pubKeys, err := store.PubKeys()
	if err != nil {
		return err
	}

	t := table.New(w)
	// Public keys are printed whole so they can be copied back into --pubkeys.
	t.SetColumnMaxWidth(pubKeyHexLen)
	t.SetHeaders("Validator", "Blocks", "Last Slot", "Attestations", "Last Source", "Last Target")
	var errs error
	for _, pubKey := range pubKeys {
		record, err := store.Record(pubKey)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("validator %s: %w", hexutil.Encode(pubKey[:]), err))
			continue
		}
		lastSlot, lastSource, lastTarget := "-", "-", "-"
		if n := len(record.SignedBlocks); n > 0 {
			lastSlot = strconv.FormatUint(uint64(record.SignedBlocks[n-1].Slot), 10)
		}
		if n := len(record.SignedAttestations); n > 0 {
			last := record.SignedAttestations[n-1]
			lastSource = strconv.FormatUint(uint64(last.SourceEpoch), 10)
			lastTarget = strconv.FormatUint(uint64(last.TargetEpoch), 10)
		}
		t.AddRow(
			hexutil.Encode(pubKey[:]),
			strconv.Itoa(len(record.SignedBlocks)),
			lastSlot,
			strconv.Itoa(len(record.SignedAttestations)),
			lastSource,
			lastTarget,
		)
	}
	t.Render()
	return errs
}

func addSlashingProtectionFlags(c *cobra.Command, withFile bool) {
	flags.AddPersistentStringFlag(c, configPathFlag, "", "Path to the node config file", false)
	flags.AddPersistentStringFlag(c, networkConfigNameFlag, "", "Network config name, overrides the config file", false)
	flags.AddPersistentStringFlag(c, dbPathFlag, "", "Path of the node database, overrides the config file", false)
	flags.AddPersistentStringFlag(c, dbEngineFlag, "", "Engine of the node database, overrides the config file", false)
	if withFile {
		flags.AddPersistentStringFlag(c, fileFlag, "", "Path of the interchange file", true)
	}
}

func init() {
	addSlashingProtectionFlags(ExportSlashingProtectionCmd, true)
	flags.AddPersistentStringFlag(ExportSlashingProtectionCmd, pubKeysFlag, "", "Comma separated validator pubkeys to export, all when empty", false)
	addSlashingProtectionFlags(ImportSlashingProtectionCmd, true)
	addSlashingProtectionFlags(InspectSlashingProtectionCmd, false)
}
