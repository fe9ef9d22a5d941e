package kv

import (
	"github.com/kvfile/skv"
	"github.com/kvfile/skv/cmd/util"
	"github.com/spf13/cobra"
)

var (
	activeStore *skv.Store
	storeID     string

	// KeyValueCommands represents the KV command group
	KeyValueCommands = &cobra.Command{
		Use:               "kv",
		Short:             "Perform key-value store operations",
		PersistentPreRunE: setupStore,
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	KeyValueCommands.PersistentFlags().StringVar(&storeID, "store", "default", util.WrapString("identifier of the store to operate on"))

	KeyValueCommands.AddCommand(setCmd)
	KeyValueCommands.AddCommand(getCmd)
	KeyValueCommands.AddCommand(delCmd)
	KeyValueCommands.AddCommand(hasCmd)
	KeyValueCommands.AddCommand(countCmd)
	KeyValueCommands.AddCommand(keysCmd)
	KeyValueCommands.AddCommand(trimCmd)
	KeyValueCommands.AddCommand(syncCmd)
	KeyValueCommands.AddCommand(rekeyCmd)
}

// setupStore initializes the process registry and opens the store named
// by --store under the resolved root directory.
func setupStore(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	root := util.RootDir()
	if err := skv.Initialize(root); err != nil {
		return err
	}

	s, err := skv.Open(storeID, skv.Options{CryptKey: util.CryptKey()})
	if err != nil {
		return err
	}
	activeStore = s
	return nil
}
