// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/savetools/binformat/savecodec"
	"github.com/savetools/binformat/saveformat"
)

var encodeVersion uint16

var encodeCmd = &cobra.Command{
	Use:   "encode [file]",
	Short: "Encode a JSON record into a save string",
	Long: `Encode reads a JSON record from a file (or stdin) and prints the
save string that carries it. With --format, the envelope version comes
from --save-version instead of the record's save_version field.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncode,
}

func init() {
	encodeCmd.Flags().Uint16Var(&encodeVersion, "save-version", 0, "envelope version when encoding with a custom --format")
	rootCmd.AddCommand(encodeCmd)
}

func runEncode(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	input, err := readInput(args)
	if err != nil {
		return err
	}

	var record map[string]any
	if err := json.Unmarshal(input, &record); err != nil {
		return fmt.Errorf("parsing record: %w", err)
	}

	var save string
	if formatFile != "" {
		s, err := loadFormat(formatFile)
		if err != nil {
			return err
		}
		raw, err := s.Encode(record)
		if err != nil {
			return err
		}
		logger.Debug().Int("raw_bytes", len(raw)).Msg("record serialized")
		save, err = savecodec.Encode(savecodec.AppendChecksum(raw), encodeVersion)
		if err != nil {
			return err
		}
	} else {
		save, err = saveformat.Encode(record)
		if err != nil {
			return err
		}
	}

	fmt.Println(save)
	return nil
}
