package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatCmd(storePath, configPath *string, requireStore requireStoreFunc, newLogger loggerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stat",
		Short: "Print the hash directory's level/split and file sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, log, err := openEngine(*storePath, *configPath, requireStore, newLogger)
			if err != nil {
				return err
			}
			defer func() {
				e.Shutdown()
				log.Sync()
			}()

			stats, err := e.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("level=%d split=%d buckets=%d data_size=%d table_size=%d\n",
				stats.Level, stats.Split, stats.BucketCount, stats.DataSize, stats.TableSize)
			return nil
		},
	}
}
