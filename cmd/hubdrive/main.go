//go:build !rp2040 && !rp2350

// Command hubdrive runs the drive controller on a Linux host or the bench
// simulator, and talks to a running controller over its supervisory link.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
