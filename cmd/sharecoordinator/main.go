// Command sharecoordinator runs a standalone Share coordinator
// process: it owns a Source of Truth and a command channel, and
// serves pkg/rpc over a Unix domain socket so proxies in sibling
// processes can reach it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
)

// version is set at release build time via -ldflags; "dev" otherwise.
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "sharecoordinator",
		Short: "Run a Share coordinator process",
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults are used if omitted)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logJSON, "log-json", true, "emit logs as JSON instead of console-formatted text")

	root.AddCommand(newRunCommand())
	root.AddCommand(newStatusCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
