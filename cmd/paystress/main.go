// Command paystress checks that bulk payroll is idempotent under load. It
// sends many simultaneous POST /api/pay-all-salaries requests sharing one
// Idempotency-Key and passes only if exactly one of them reached the contract.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const (
	// DefaultURL is the bulk payment endpoint of a locally running bridge
	DefaultURL = "http://localhost:3000/api/pay-all-salaries"

	// DefaultConcurrency is the number of concurrent requests
	DefaultConcurrency = 50

	// DefaultTimeout covers a full payroll run on testnet
	DefaultTimeout = 2 * time.Minute
)

var rootCmd = &cobra.Command{
	Use:   "paystress",
	Short: "Concurrent idempotency test for bulk salary payment",
	Long: `paystress fires concurrent bulk payment requests at a running bridge,
all carrying the same Idempotency-Key, and verifies that only one payroll
run was processed while every duplicate was replayed or rejected.`,
	SilenceUsage: true,
	RunE:         runStress,
}

func init() {
	rootCmd.Flags().String("url", DefaultURL, "bulk payment endpoint URL")
	rootCmd.Flags().String("key", "", "idempotency key for all requests (default: random per run)")
	rootCmd.Flags().IntP("concurrent", "n", DefaultConcurrency, "number of concurrent requests")
	rootCmd.Flags().Duration("timeout", DefaultTimeout, "per-request timeout")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runStress(cmd *cobra.Command, _ []string) error {
	cfg, err := configFromFlags(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "  PAYROLL BRIDGE - CONCURRENT IDEMPOTENCY TEST")
	fmt.Fprintf(out, "Endpoint:       %s\n", cfg.URL)
	fmt.Fprintf(out, "Idempotency:    %s\n", cfg.IdempotencyKey)
	fmt.Fprintf(out, "Concurrency:    %d requests\n", cfg.ConcurrentRequests)
	fmt.Fprintln(out, "---------------------------------------------------------------")
	fmt.Fprintf(out, "\nLaunching %d concurrent requests...\n", cfg.ConcurrentRequests)

	results := Run(cmd.Context(), cfg)
	printResults(out, results, cfg.ConcurrentRequests)
	if !results.Passed(cfg.ConcurrentRequests) {
		return fmt.Errorf("idempotency check failed")
	}
	return nil
}
