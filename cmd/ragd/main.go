// Ragd is a retrieval-augmented generation daemon. It serves grounded
// question answering over an ingested document corpus and maintains the
// chunk index through tracked asynchronous reindex jobs.
//
// Usage:
//
//	# Start the daemon with defaults
//	ragd serve
//
//	# Start with a config file
//	ragd serve --config /etc/ragd/config.yaml
//
//	# Trigger a reindex against a running daemon
//	ragd reindex --server http://localhost:9190
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// serverURL is the base URL for client commands talking to a running daemon.
	serverURL string
	// configPath is the optional config file for the serve command.
	configPath string

	// version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "ragd",
	Short: "Retrieval-augmented generation daemon",
	Long: `ragd serves grounded question answering over an ingested document corpus.
It retrieves relevant chunks, builds a grounding prompt for an external
language model, and tracks reindex jobs with staleness and cost metrics.`,
	Version: version + " (" + gitCommit + ")",
}

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)

	for _, cmd := range []*cobra.Command{reindexCmd, statusCmd} {
		cmd.Flags().StringVar(&serverURL, "server", "http://localhost:9190", "ragd server URL")
		rootCmd.AddCommand(cmd)
	}
}
