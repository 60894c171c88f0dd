package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
	quiet   bool
	jsonOut bool

	// Machine flags
	memSize   uint64
	textPages int
	imagePath string
)

var rootCmd = &cobra.Command{
	Use:   "vmctl",
	Short: "Boot and exercise the pkevm virtual-memory subsystem",
	Long: `vmctl drives the pkevm teaching-kernel virtual-memory subsystem from
the command line: boot a simulated machine (DRAM image, physical page free
list, kernel address space), run allocation traces against a user process
heap, and inspect the resulting state.`,
	Version: "0.1.0",
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().
		BoolVarP(&quiet, "quiet", "q", false, "Suppress all output except errors")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "Output in JSON format")

	rootCmd.PersistentFlags().
		Uint64Var(&memSize, "mem-size", 0, "DRAM size in bytes (default 128 MiB)")
	rootCmd.PersistentFlags().
		IntVar(&textPages, "text-pages", 0, "Pages reserved for kernel text (default 128)")
	rootCmd.PersistentFlags().
		StringVar(&imagePath, "image", "", "Back DRAM with an mmapped file at this path")
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Helper functions for output

// printInfo prints an info message if not in quiet mode
func printInfo(format string, args ...interface{}) {
	if !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printVerbose prints a verbose message if verbose mode is enabled
func printVerbose(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Fprintf(os.Stdout, format, args...)
	}
}

// printJSON outputs data as JSON
func printJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
