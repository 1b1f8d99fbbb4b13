package cli

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/herumi/bls-eth-go-binary/bls"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/cli/flags"
	"github.com/ssvlabs/dvnode/logging"
	"github.com/ssvlabs/dvnode/logging/fields"
	"github.com/ssvlabs/dvnode/operator/keystore"
	"github.com/ssvlabs/dvnode/protocol/types"
	"github.com/ssvlabs/dvnode/utils/threshold"
)

// createThresholdCmd splits a validator key into encrypted share files, one per co-validator.
var createThresholdCmd = &cobra.Command{
	Use:   "create-threshold",
	Short: "Splits a validator key into co-validator share files. For testing usage only",
	Run: func(cmd *cobra.Command, args []string) {
		if err := logging.SetGlobalLogger("debug", "capital", "console", nil); err != nil {
			log.Fatal(err)
		}
		logger := zap.L().Named(logging.NameCreateThreshold)

		privKey, err := flags.GetPrivKeyFlagValue(cmd)
		if err != nil {
			logger.Fatal("failed to get private key flag value", zap.Error(err))
		}
		keysCount, err := flags.GetKeysCountFlagValue(cmd)
		if err != nil {
			logger.Fatal("failed to get keys count flag value", zap.Error(err))
		}
		quorum, err := flags.GetThresholdFlagValue(cmd)
		if err != nil {
			logger.Fatal("failed to get threshold flag value", zap.Error(err))
		}
		validatorIndex, err := flags.GetValidatorIndexFlagValue(cmd)
		if err != nil {
			logger.Fatal("failed to get validator index flag value", zap.Error(err))
		}
		outputDir, err := flags.GetOutputDirFlagValue(cmd)
		if err != nil {
			logger.Fatal("failed to get output dir flag value", zap.Error(err))
		}
		passwordFile, err := flags.GetPasswordFileFlagValue(cmd)
		if err != nil {
			logger.Fatal("failed to get password file flag value", zap.Error(err))
		}

		// nolint: gosec
		password, err := os.ReadFile(passwordFile)
		if err != nil {
			logger.Fatal("could not read password file", zap.Error(err))
		}

		paths, err := createThreshold(privKey, quorum, keysCount, phase0.ValidatorIndex(validatorIndex), outputDir, strings.TrimSpace(string(password)))
		if err != nil {
			logger.Fatal("failed to create threshold shares", zap.Error(err))
		}
		for _, path := range paths {
			logger.Info("share file written", zap.String("path", path))
		}
	},
}

// createThreshold splits privKey, or a fresh key when it is empty, and writes the share
// file of every co-validator into outputDir.
func createThreshold(
	privKey string,
	quorum, count uint64,
	validatorIndex phase0.ValidatorIndex,
	outputDir string,
	password string,
) ([]string, error) {
	var ks *threshold.KeySet
	var err error
	if privKey == "" {
		ks, err = threshold.GenerateKeySet(quorum, count)
	} else {
		types.InitBLS()
		baseKey := &bls.SecretKey{}
		if err := baseKey.SetHexString(strings.TrimPrefix(privKey, "0x")); err != nil {
			return nil, fmt.Errorf("failed to set hex private key: %w", err)
		}
		ks, err = threshold.SplitKeySet(baseKey, quorum, count)
	}
	if err != nil {
		return nil, err
	}

	zap.L().Info("generating threshold keys",
		fields.Validator(ks.ValidatorPubKey()),
		zap.Uint64("threshold", quorum),
		fields.Count(int(count)))

	paths := make([]string, 0, count)
	for i := uint64(1); i <= count; i++ {
		f, err := keystore.FromKeySet(ks, validatorIndex, i, password)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(outputDir, fmt.Sprintf("share-%d.json", i))
		if err := f.Save(path); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func init() {
	flags.AddPrivKeyFlag(createThresholdCmd)
	flags.AddKeysCountFlag(createThresholdCmd)
	flags.AddThresholdFlag(createThresholdCmd)
	flags.AddValidatorIndexFlag(createThresholdCmd)
	flags.AddOutputDirFlag(createThresholdCmd)
	flags.AddPasswordFileFlag(createThresholdCmd)

	RootCmd.AddCommand(createThresholdCmd)
}
