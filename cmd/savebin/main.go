// Copyright (c) 2024-2026 Savetools Authors
// SPDX-License-Identifier: MIT

// Package main is the entry point for the savebin CLI.
package main

func main() {
	Execute()
}
