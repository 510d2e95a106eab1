// Command streamlike drives the ring buffer / prefetch / HTTP range-seek
// pipeline from the shell, the way the Docker Model Runner CLI drives its
// own backends through a cobra root command.
package main

import (
	"fmt"
	"os"

	"github.com/ozars/libstreamlike/cmd/streamlike/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
