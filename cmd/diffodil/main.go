// Package main provides the entry point for the diffodil server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "diffodil",
		Short: "Git diffs in your browser",
		Long: `Diffodil serves an interactive diff viewer for the git repositories
below a root directory. The browser session stays synchronized over a
websocket: every change of commit selection or diff flags is pushed
back as fresh state and streamed diff content.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "diffodil %s\n", Version)
		},
	}
}
