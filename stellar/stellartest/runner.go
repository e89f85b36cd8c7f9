// Package stellartest provides a scripted stellar.Runner for tests.
package stellartest

import (
	"context"
	"errors"
	"sync"

	"github.com/yashasviy/payroll-bridge/stellar"
)

// KeysAddress is the key under which "keys address" calls are scripted.
const KeysAddress = "keys_address"

// Response is one scripted CLI outcome.
type Response struct {
	Stdout string
	Stderr string
	Exit   bool // exit non-zero, returned as *stellar.CommandError
}

// OK is a clean run printing stdout.
func OK(stdout string) Response { return Response{Stdout: stdout} }

// Stderr is a zero-exit run that printed stderr.
func Stderr(stderr string) Response { return Response{Stderr: stderr} }

// Exit is a non-zero exit with stderr.
func Exit(stderr string) Response { return Response{Stderr: stderr, Exit: true} }

// Runner replays scripted responses keyed by contract function name.
// The last response for a function repeats once the queue is drained.
type Runner struct {
	mu        sync.Mutex
	responses map[string][]Response
	calls     [][]string
}

func New() *Runner {
	return &Runner{responses: make(map[string][]Response)}
}

// On queues responses for fn.
func (r *Runner) On(fn string, resp ...Response) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses[fn] = append(r.responses[fn], resp...)
	return r
}

func (r *Runner) Run(_ context.Context, name string, args ...string) (stellar.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, append([]string(nil), args...))

	fn := Function(args)
	queue := r.responses[fn]
	if len(queue) == 0 {
		return stellar.Result{}, &stellar.CommandError{
			Args:     append([]string{name}, args...),
			ExitCode: -1,
			Err:      errors.New("no scripted response for " + fn),
		}
	}
	resp := queue[0]
	if len(queue) > 1 {
		r.responses[fn] = queue[1:]
	}

	res := stellar.Result{Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.Exit {
		return res, &stellar.CommandError{
			Args:     append([]string{name}, args...),
			ExitCode: 1,
			Stdout:   resp.Stdout,
			Stderr:   resp.Stderr,
			Err:      errors.New("exit status 1"),
		}
	}
	return res, nil
}

// Calls returns the argument lists of every run so far.
func (r *Runner) Calls() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]string, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsTo counts runs of fn.
func (r *Runner) CallsTo(fn string) int {
	n := 0
	for _, c := range r.Calls() {
		if Function(c) == fn {
			n++
		}
	}
	return n
}

// Function extracts the contract function from an invoke argument list,
// or KeysAddress for "keys address".
func Function(args []string) string {
	if len(args) >= 2 && args[0] == "keys" && args[1] == "address" {
		return KeysAddress
	}
	for i, a := range args {
		if a == "--" && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

// Flag returns the value following --name in args.
func Flag(args []string, name string) string {
	for i, a := range args {
		if a == "--"+name && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}
