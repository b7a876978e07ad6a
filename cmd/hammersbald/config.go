package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hammersbald/hammersbald/internal/engine"
)

func newConfigCmd(configPath *string) *cobra.Command {
	config := &cobra.Command{
		Use:   "config",
		Short: "Inspect or write a Hammersbald JWCC config file",
	}

	var cachePages, bucketFillTarget int
	var syncOnBatch bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the given tunables, defaulting unset ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if *configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg := engine.Config{CachePages: cachePages, BucketFillTarget: bucketFillTarget}
			if cmd.Flags().Changed("sync-on-batch") {
				cfg.SyncOnBatch = &syncOnBatch
			}
			cfg = cfg.WithDefaults()
			if err := engine.SaveConfigFile(*configPath, cfg); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", *configPath)
			return nil
		},
	}
	initCmd.Flags().IntVar(&cachePages, "cache-pages", 0, "PageCache capacity in pages (0 = default)")
	initCmd.Flags().IntVar(&bucketFillTarget, "bucket-fill-target", 0, "split-trigger occupancy threshold (0 = default)")
	initCmd.Flags().BoolVar(&syncOnBatch, "sync-on-batch", true, "flush to durable media before erasing the write-ahead log each batch")
	config.AddCommand(initCmd)

	config.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config (file overlaid on defaults, or defaults alone)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := engine.DefaultConfig()
			if *configPath != "" {
				var err error
				cfg, err = engine.LoadConfigFile(*configPath)
				if err != nil {
					return err
				}
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	})

	return config
}
