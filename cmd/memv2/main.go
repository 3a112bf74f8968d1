// Command memv2 is the minimal CLI surface spec.md section 6 describes: a
// one-session runner consumed by benchmark harnesses, plus a handful of
// lesson-store/config inspection commands for operating a deployment.
// Grounded on the teacher's cmd/dspy-cli root-command structure (one cobra
// root, subcommands registered via init() in their own file).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "memv2",
	Short: "Cross-session learning layer for tool-using LLM agents",
	Long: `memv2 drives an agent step loop over a domain adapter and an LLM
transport, capturing tool failures, retrieving lessons learned from prior
sessions, and updating lesson utility at the end of every run.`,
	Version: "0.1.0",
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
