package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "inbox-api",
	Short: "Event inbox API",
	Long: `inbox-api ingests events over HTTP, serves pending events from an inbox
and records acknowledgements.

Running without a subcommand starts the server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (yaml, json or toml)")
	rootCmd.AddCommand(serveCmd, schemaCmd)
}

// main boots the service: config → logger → store → HTTP server.
func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
