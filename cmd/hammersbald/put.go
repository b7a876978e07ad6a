package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPutCmd(storePath, configPath *string, requireStore requireStoreFunc, newLogger loggerFunc) *cobra.Command {
	var unkeyed bool

	cmd := &cobra.Command{
		Use:   "put <key> <value>",
		Short: "Insert a key/value record and commit a batch",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, log, err := openEngine(*storePath, *configPath, requireStore, newLogger)
			if err != nil {
				return err
			}
			defer func() {
				e.Shutdown()
				log.Sync()
			}()

			var (
				key     []byte
				payload []byte
			)
			if unkeyed {
				if len(args) != 1 {
					return fmt.Errorf("put --unkeyed takes exactly one argument (the value)")
				}
				payload = []byte(args[0])
				ref, err := e.PutUnkeyed(payload)
				if err != nil {
					return err
				}
				if err := e.Batch(); err != nil {
					return err
				}
				fmt.Printf("pref=%d\n", ref)
				return nil
			}

			if len(args) != 2 {
				return fmt.Errorf("put takes exactly two arguments (key and value)")
			}
			key, payload = []byte(args[0]), []byte(args[1])
			ref, err := e.Put(key, payload)
			if err != nil {
				return err
			}
			if err := e.Batch(); err != nil {
				return err
			}
			log.Debug("put", zap.ByteString("key", key), zap.Uint64("pref", uint64(ref)))
			fmt.Printf("pref=%d\n", ref)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unkeyed, "unkeyed", false, "store the value with no key, addressable only by the printed pref")
	return cmd
}
