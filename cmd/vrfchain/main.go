// Command vrfchain creates, extends, verifies, and stores VRF signature chain tokens.
package main

import (
	"os"

	"github.com/codahale/vrfchain/cmd/vrfchain/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
