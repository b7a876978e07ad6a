// Command hammersbald is a small operational CLI over the embedded store:
// put/get individual records, inspect directory stats, and rebuild the
// table from the data log.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		storePath  string
		configPath string
		verbose    bool
	)

	root := &cobra.Command{
		Use:           "hammersbald",
		Short:         "Operate on a Hammersbald embedded key/value store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&storePath, "store", "", "store basename (shared by <name>.dat/.tbl/.log)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional JWCC config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	newLogger := func() (*zap.Logger, error) {
		if verbose {
			return zap.NewDevelopment()
		}
		cfg := zap.NewProductionConfig()
		cfg.DisableStacktrace = true
		return cfg.Build()
	}

	requireStore := func() error {
		if storePath == "" {
			return fmt.Errorf("--store is required")
		}
		return nil
	}

	root.AddCommand(newPutCmd(&storePath, &configPath, requireStore, newLogger))
	root.AddCommand(newGetCmd(&storePath, &configPath, requireStore, newLogger))
	root.AddCommand(newGetAtCmd(&storePath, &configPath, requireStore, newLogger))
	root.AddCommand(newStatCmd(&storePath, &configPath, requireStore, newLogger))
	root.AddCommand(newRebuildCmd(&storePath, &configPath, requireStore, newLogger))
	root.AddCommand(newConfigCmd(&configPath))
	root.AddCommand(newMetricsCmd(&storePath, &configPath, requireStore, newLogger))

	return root
}
