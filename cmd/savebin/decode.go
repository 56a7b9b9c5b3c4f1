// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/savetools/binformat/savecodec"
	"github.com/savetools/binformat/saveformat"
	"github.com/savetools/binformat/schema"
)

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a save string into a JSON record",
	Long: `Decode reads a save string from a file (or stdin) and prints the
record it carries as indented JSON.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	input, err := readInput(args)
	if err != nil {
		return err
	}

	var record map[string]any
	if formatFile != "" {
		s, err := loadFormat(formatFile)
		if err != nil {
			return err
		}
		version, raw, err := savecodec.Decode(string(input))
		if err != nil {
			return err
		}
		logger.Debug().Uint16("version", version).Int("raw_bytes", len(raw)).Msg("envelope unwrapped")
		payload, err := savecodec.SplitChecksum(raw)
		if err != nil {
			return err
		}
		record, err = s.Decode(payload)
		if err != nil {
			return err
		}
	} else {
		record, err = saveformat.Decode(string(input))
		if err != nil {
			return err
		}
	}

	out, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// loadFormat compiles a layout file named on the command line.
func loadFormat(path string) (*schema.Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return schema.Load(src)
}
