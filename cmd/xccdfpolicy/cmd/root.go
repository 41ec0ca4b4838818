// Package cmd provides the CLI commands for xccdfpolicy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oscap-go/xccdfpolicy/internal/config"
)

var cfgFile string
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "xccdfpolicy",
	Short: "Evaluate an XCCDF Benchmark against a Profile",
	Long: `xccdfpolicy drives the xccdfpolicy evaluation core against a
YAML-fixture Benchmark and Profile, for local testing of checking-engine
registrations without a full XCCDF/OVAL toolchain.

Configuration is loaded from the file named by --config, if any, layered
under XCCDFPOLICY_-prefixed environment variables.

Commands:
  eval       Evaluate a Benchmark fixture against a Profile
  version    Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: none)")
}

func initConfig() {
	loaded, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "xccdfpolicy: loading config:", err)
		os.Exit(1)
	}
	cfg = loaded
}
