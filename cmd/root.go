package cmd

import (
	"fmt"
	"os"

	"github.com/kvfile/skv/cmd/kv"
	"github.com/kvfile/skv/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "1.0.0"
)

var (
	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "skv",
		Short: "embedded key-value store",
		Long: fmt.Sprintf(`skv (v%s)

An embedded, persistent, crash-safe key-value store backed by a
memory-mapped append log.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of skv",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("skv v%s\n", Version)
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitConfig)

	RootCmd.AddCommand(kv.KeyValueCommands)
	RootCmd.AddCommand(versionCmd)

	key := "root"
	RootCmd.PersistentFlags().String(key, "", util.WrapString("root directory the store is initialized under"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
