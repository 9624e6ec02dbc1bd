// Package cmd holds the storefront-api command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storefront-api",
	Short: "Rustic Roots storefront API",
	Long: `Backend for the Rustic Roots furniture store: catalog, checkout,
promotions, accounts, image uploads and transactional email.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
