// Command skv is the command-line interface for the skv embedded
// key-value store.
package main

import "github.com/kvfile/skv/cmd"

func main() {
	cmd.Execute()
}
