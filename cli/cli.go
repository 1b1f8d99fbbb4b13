package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ssvlabs/dvnode/cli/operator"
)

// RootCmd represents the root command of the dvnode CLI
var RootCmd = &cobra.Command{
	Use:   "dvnode",
	Short: "dvnode",
	Long:  `dvnode runs one co-validator of a distributed Ethereum validator.`,
}

// Execute executes the root command. The command context is cancelled on SIGINT or SIGTERM.
func Execute(appName, version string) {
	RootCmd.Short = appName
	RootCmd.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal("failed to execute root command", zap.Error(err))
	}
}

func init() {
	RootCmd.AddCommand(operator.StartNodeCmd)
	RootCmd.AddCommand(operator.ExportSlashingProtectionCmd)
	RootCmd.AddCommand(operator.ImportSlashingProtectionCmd)
	RootCmd.AddCommand(operator.InspectSlashingProtectionCmd)
}
