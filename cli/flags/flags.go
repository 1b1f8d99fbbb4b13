package flags

import (
	"github.com/spf13/cobra"
)

const requiredSuffix = " (required)"

// AddPersistentStringFlag adds a string flag that is inherited by subcommands.
func AddPersistentStringFlag(c *cobra.Command, flag, value, description string, isRequired bool) {
	c.PersistentFlags().String(flag, value, describe(description, isRequired))
	if isRequired {
		_ = c.MarkPersistentFlagRequired(flag)
	}
}

// AddPersistentUint64Flag adds a uint64 flag that is inherited by subcommands.
func AddPersistentUint64Flag(c *cobra.Command, flag string, value uint64, description string, isRequired bool) {
	c.PersistentFlags().Uint64(flag, value, describe(description, isRequired))
	if isRequired {
		_ = c.MarkPersistentFlagRequired(flag)
	}
}

func describe(description string, isRequired bool) string {
	if isRequired {
		return description + requiredSuffix
	}
	return description
}
