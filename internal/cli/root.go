// Package cli implements the ragctl command tree.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/katakuxiko/vectorbrain/internal/client"
)

var (
	serverURL string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Command-line client for the vectorbrain service",
	Long: `ragctl uploads documents to a running vectorbrain server and queries
the indexed chunks, either raw or through the answer model.`,
	SilenceUsage: true,
}

func init() {
	def := os.Getenv("VECTORBRAIN_URL")
	if def == "" {
		def = "http://localhost:8080"
	}
	rootCmd.PersistentFlags().StringVarP(&serverURL, "server", "s", def, "vectorbrain server URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "request timeout")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func newRetriever() *client.Retriever {
	return client.New(serverURL, timeout)
}
