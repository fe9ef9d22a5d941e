package kv

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the string value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := activeStore.SetString(args[0], args[1]); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the string value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, ok, err := activeStore.GetString(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, value=%s\n", args[0], ok, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := activeStore.Delete(args[0]); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	hasCmd = &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := activeStore.Has(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", args[0], found)
			return nil
		},
	}
	countCmd = &cobra.Command{
		Use:   "count",
		Short: "Prints the number of live keys in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := activeStore.Count()
			if err != nil {
				return err
			}
			fmt.Println(n)
			return nil
		},
	}
	keysCmd = &cobra.Command{
		Use:   "keys",
		Short: "Lists every live key in the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := activeStore.AllKeys()
			if err != nil {
				return err
			}
			fmt.Println(strings.Join(keys, "\n"))
			return nil
		},
	}
	trimCmd = &cobra.Command{
		Use:   "trim",
		Short: "Compacts the store and shrinks its backing file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := activeStore.Trim(); err != nil {
				return err
			}
			fmt.Println("trim successfully")
			return nil
		},
	}
	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Flushes the store's mapped files to disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			durable, _ := cmd.Flags().GetBool("durable")
			if err := activeStore.Sync(durable); err != nil {
				return err
			}
			fmt.Println("sync successfully")
			return nil
		},
	}
	rekeyCmd = &cobra.Command{
		Use:   "rekey [newKey]",
		Short: "Rotates the store's encryption key (empty string disables encryption)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var newKey []byte
			if args[0] != "" {
				newKey = []byte(args[0])
			}
			if err := activeStore.ReKey(newKey); err != nil {
				return err
			}
			fmt.Println("rekey successfully")
			return nil
		},
	}
)

func init() {
	syncCmd.Flags().Bool("durable", true, "block until the flush reaches stable storage")
}
