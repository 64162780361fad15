// Package cli wires the bridge's commands. All state is constructed at
// startup and passed down explicitly; there are no package-level singletons
// beyond the cobra command tree itself.
package cli

import (
	"github.com/spf13/cobra"
)

const version = "0.1.0"

var (
	cfgFile  string
	logLevel string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitebridge",
	Short: "sitebridge - local tool-call bridge for agent workflows",
	Long: `sitebridge receives named tool invocations from an agent process over
stdio JSON-RPC and dispatches each to a security-gated command inside a
project-owned container, or proxies it to a remote MCP server over HTTP.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); defaults and environment apply when unset")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)
}

// GetRootCmd returns the root command for testing
func GetRootCmd() *cobra.Command {
	return rootCmd
}
