// Package main provides the corticai CLI entry point.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "corticai",
		Short: "corticai - embedded typed graph store",
		Long: `corticai stores typed nodes and directed multigraph edges in BadgerDB,
answers reachability, path and cycle queries over them, and keeps a
secondary attribute index for pre-filtering traversal seeds.`,
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Path to a YAML config file")
	flags.String("db", "", "Database directory (overrides config)")
	flags.Bool("debug", false, "Enable debug logging")
	flags.Bool("auto-create", false, "Create missing edge endpoints as placeholder nodes")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "corticai v%s (%s)\n", version, commit)
		},
	})

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new corticai data directory",
		RunE:  runInit,
	}
	initCmd.Flags().String("data-dir", "./data", "Data directory")
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(
		newNodeCmd(),
		newEdgeCmd(),
		newEdgesCmd(),
		newPathCmd(),
		newConnectedCmd(),
		newTraverseCmd(),
		newCyclesCmd(),
		newIndexCmd(),
		newStatsCmd(),
		newGCCmd(),
	)
	return rootCmd
}
