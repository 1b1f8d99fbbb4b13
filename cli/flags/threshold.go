package flags

import (
	"github.com/spf13/cobra"
)

// Flag names.
const (
	privKeyFlag        = "private-key"
	keysCountFlag      = "count"
	thresholdFlag      = "threshold"
	validatorIndexFlag = "validator-index"
	outputDirFlag      = "output-dir"
	passwordFileFlag   = "password-file"
)

// AddPrivKeyFlag adds the private key flag to the command
func AddPrivKeyFlag(c *cobra.Command) {
	AddPersistentStringFlag(c, privKeyFlag, "", "Hex encoded validator private key, generated when empty", false)
}

// GetPrivKeyFlagValue gets the private key flag from the command
func GetPrivKeyFlagValue(c *cobra.Command) (string, error) {
	return c.Flags().GetString(privKeyFlag)
}

// AddKeysCountFlag adds the keys count flag to the command
func AddKeysCountFlag(c *cobra.Command) {
	AddPersistentUint64Flag(c, keysCountFlag, 4, "Count of threshold keys to be generated", false)
}

// GetKeysCountFlagValue gets the keys count flag from the command
func GetKeysCountFlagValue(c *cobra.Command) (uint64, error) {
	return c.Flags().GetUint64(keysCountFlag)
}

// AddThresholdFlag adds the threshold flag to the command
func AddThresholdFlag(c *cobra.Command) {
	AddPersistentUint64Flag(c, thresholdFlag, 3, "Number of shares needed to reconstruct a signature", false)
}

// GetThresholdFlagValue gets the threshold flag from the command
func GetThresholdFlagValue(c *cobra.Command) (uint64, error) {
	return c.Flags().GetUint64(thresholdFlag)
}

// AddValidatorIndexFlag adds the validator index flag to the command
func AddValidatorIndexFlag(c *cobra.Command) {
	AddPersistentUint64Flag(c, validatorIndexFlag, 0, "Beacon chain index of the validator", true)
}

// GetValidatorIndexFlagValue gets the validator index flag from the command
func GetValidatorIndexFlagValue(c *cobra.Command) (uint64, error) {
	return c.Flags().GetUint64(validatorIndexFlag)
}

// AddOutputDirFlag adds the output directory flag to the command
func AddOutputDirFlag(c *cobra.Command) {
	AddPersistentStringFlag(c, outputDirFlag, "./shares", "Directory the share files are written to", false)
}

// GetOutputDirFlagValue gets the output directory flag from the command
func GetOutputDirFlagValue(c *cobra.Command) (string, error) {
	return c.Flags().GetString(outputDirFlag)
}

// AddPasswordFileFlag adds the password file flag to the command
func AddPasswordFileFlag(c *cobra.Command) {
	AddPersistentStringFlag(c, passwordFileFlag, "", "File holding the password the share keystores are encrypted with", true)
}

// GetPasswordFileFlagValue gets the password file flag from the command
func GetPasswordFileFlagValue(c *cobra.Command) (string, error) {
	return c.Flags().GetString(passwordFileFlag)
}
