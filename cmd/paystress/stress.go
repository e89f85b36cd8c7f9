package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/yashasviy/payroll-bridge/middleware"
)

// TestConfig holds the stress test configuration
type TestConfig struct {
	URL                string
	IdempotencyKey     string
	ConcurrentRequests int
	Timeout            time.Duration
}

// TestResults tracks the outcomes of all requests
type TestResults struct {
	SuccessCount  int32
	CacheHitCount int32
	ConflictCount int32
	ErrorCount    int32
	Duration      time.Duration
}

// Passed reports whether exactly one request was processed and every other
// one was handled as a duplicate.
func (r TestResults) Passed(total int) bool {
	duplicates := r.CacheHitCount + r.ConflictCount
	return r.SuccessCount == 1 && duplicates == int32(total)-1 && r.ErrorCount == 0
}

func configFromFlags(cmd *cobra.Command) (TestConfig, error) {
	var cfg TestConfig
	var err error
	if cfg.URL, err = cmd.Flags().GetString("url"); err != nil {
		return cfg, err
	}
	if cfg.IdempotencyKey, err = cmd.Flags().GetString("key"); err != nil {
		return cfg, err
	}
	if cfg.ConcurrentRequests, err = cmd.Flags().GetInt("concurrent"); err != nil {
		return cfg, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return cfg, err
	}
	if cfg.ConcurrentRequests < 2 {
		return cfg, fmt.Errorf("--concurrent must be at least 2, got %d", cfg.ConcurrentRequests)
	}
	if cfg.IdempotencyKey == "" {
		cfg.IdempotencyKey = "paystress-" + uuid.NewString()
	}
	return cfg, nil
}

// Run executes the concurrent requests and returns aggregated results.
func Run(ctx context.Context, cfg TestConfig) TestResults {
	var (
		results TestResults
		wg      conc.WaitGroup
		client  = &http.Client{Timeout: cfg.Timeout}
		start   = time.Now()
	)

	for i := 0; i < cfg.ConcurrentRequests; i++ {
		wg.Go(func() {
			executeRequest(ctx, client, cfg, i, &results)
		})
	}
	wg.Wait()

	results.Duration = time.Since(start)
	return results
}

// executeRequest sends a single request and classifies the response atomically
func executeRequest(ctx context.Context, client *http.Client, cfg TestConfig, requestID int, results *TestResults) {
	log := logrus.WithField("request", requestID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, nil)
	if err != nil {
		log.WithError(err).Error("failed to create request")
		atomic.AddInt32(&results.ErrorCount, 1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.IdempotencyHeader, cfg.IdempotencyKey)

	resp, err := client.Do(req)
	if err != nil {
		log.WithError(err).Error("http error")
		atomic.AddInt32(&results.ErrorCount, 1)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.Header.Get(middleware.IdempotencyHitHeader) == "true":
		atomic.AddInt32(&results.CacheHitCount, 1)
	case resp.StatusCode == http.StatusOK:
		atomic.AddInt32(&results.SuccessCount, 1)
	case resp.StatusCode == http.StatusConflict:
		atomic.AddInt32(&results.ConflictCount, 1)
	default:
		log.WithField("status", resp.StatusCode).Error("unexpected status")
		atomic.AddInt32(&results.ErrorCount, 1)
	}
}

// printResults displays formatted test results and pass/fail verdict
func printResults(w io.Writer, results TestResults, totalRequests int) {
	fmt.Fprintln(w, "                    TEST RESULTS")
	fmt.Fprintf(w, "Duration:                     %v\n", results.Duration)
	fmt.Fprintf(w, "Requests per second:          %.2f\n", float64(totalRequests)/results.Duration.Seconds())
	fmt.Fprintf(w, "[SUCCESS] Processed (first run):       %d\n", results.SuccessCount)
	fmt.Fprintf(w, "[CACHED]  Replayed (Redis cached):     %d\n", results.CacheHitCount)
	fmt.Fprintf(w, "[BLOCKED] Conflicts (Redis locked):    %d\n", results.ConflictCount)
	fmt.Fprintf(w, "[ERROR]   Errors:                      %d\n", results.ErrorCount)

	if results.Passed(totalRequests) {
		fmt.Fprintln(w, "TEST PASSED: bulk payroll is idempotent under concurrency")
		fmt.Fprintln(w, "  * Only 1 payroll run processed")
		fmt.Fprintln(w, "  * All duplicates handled correctly")
		return
	}

	fmt.Fprintln(w, "TEST FAILED")
	if results.SuccessCount > 1 {
		fmt.Fprintf(w, "  * CRITICAL: %d payroll runs processed, employees may be paid twice\n", results.SuccessCount)
	}
	if results.ErrorCount > 0 {
		fmt.Fprintf(w, "  * Errors: %d\n", results.ErrorCount)
	}
	expected := int32(totalRequests) - 1
	if actual := results.CacheHitCount + results.ConflictCount; actual != expected {
		fmt.Fprintf(w, "  * Expected %d duplicates, got %d\n", expected, actual)
	}
}
