package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "upwork-broker",
	Short: "OAuth2 token broker for the Upwork API integration",
	Long: `upwork-broker brokers a single Upwork OAuth2 credential pair:
it redirects users to the Upwork consent screen, exchanges the returned
authorization code for tokens, persists the latest pair, and serves or
refreshes it on demand for other internal systems.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
