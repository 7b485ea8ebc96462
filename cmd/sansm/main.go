// Package main is the SanSM entry point.
//
// Usage:
//
//	sansm serve
//	sansm scan
//	sansm refresh
//	sansm quote INFY
package main

import (
	"os"

	"github.com/sanoj619/SanSM/cmd/sansm/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
