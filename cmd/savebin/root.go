// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	formatFile string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "savebin",
	Short: "Decode and encode versioned game-save files",
	Long: `Savebin converts between save strings and editable JSON records.

The record layout is schema-driven: the built-in layout covers the shipped
save format, and --format substitutes any compatible layout file.

Usage:
  savebin decode save.txt     # save string -> JSON on stdout
  savebin encode save.json    # JSON record -> save string on stdout
  savebin validate layout.yml # check a layout file loads cleanly`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&formatFile, "format", "f", "", "layout file overriding the built-in save format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// setupLogger configures the CLI logger from the global flags.
func setupLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger()
}

// readInput reads a file argument, or stdin when no argument is given.
func readInput(args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "-" {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}
