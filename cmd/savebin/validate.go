// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package main

import (
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <layout>",
	Short: "Check that a layout file parses and resolves",
	Long: `Validate loads a layout file and reports the first problem it finds:
unknown or cyclic types, duplicate field ids, forward references, or
conditions and repeat counts that do not type-check.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	s, err := loadFormat(args[0])
	if err != nil {
		return err
	}
	logger.Info().
		Str("file", args[0]).
		Int("types", len(s.Types)).
		Int("items", len(s.Root.Fields)).
		Msg("layout is valid")
	return nil
}
