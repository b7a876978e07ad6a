package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd(storePath, configPath *string, requireStore requireStoreFunc, newLogger loggerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Look up the current value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, log, err := openEngine(*storePath, *configPath, requireStore, newLogger)
			if err != nil {
				return err
			}
			defer func() {
				e.Shutdown()
				log.Sync()
			}()

			_, value, ok, err := e.Get([]byte(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("key not found")
			}
			fmt.Println(string(value))
			return nil
		},
	}
}

func newGetAtCmd(storePath, configPath *string, requireStore requireStoreFunc, newLogger loggerFunc) *cobra.Command {
	var pref uint64

	cmd := &cobra.Command{
		Use:   "get-at",
		Short: "Read the application record at a given byte offset (pref)",
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

			key, value, err := e.GetAt(pref)
			if err != nil {
				return err
			}
			fmt.Printf("key=%q value=%q\n", key, value)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&pref, "pref", 0, "byte offset into the data log")
	cmd.MarkFlagRequired("pref")
	return cmd
}
