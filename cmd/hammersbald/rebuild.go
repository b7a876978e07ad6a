package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hammersbald/hammersbald/internal/engine"
	"github.com/hammersbald/hammersbald/internal/rebuild"
)

func newRebuildCmd(storePath, configPath *string, requireStore requireStoreFunc, newLogger loggerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Delete the table file and reconstruct it by replaying the data log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireStore(); err != nil {
				return err
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg := engine.DefaultConfig()
			if *configPath != "" {
				cfg, err = engine.LoadConfigFile(*configPath)
				if err != nil {
					return err
				}
			}

			result, err := rebuild.Run(*storePath, cfg.CachePages, cfg.BucketFillTarget)
			if err != nil {
				return err
			}
			fmt.Printf("walked=%d reindexed=%d\n", result.RecordsWalked, result.KeysReindexed)
			return nil
		},
	}
}
