// Package stellar drives the salary contract through the stellar CLI.
//
// Every call becomes one process:
//
//	stellar contract invoke --id <contract> --source <identity> --network <net> -- <fn> --<arg> <value> ...
//
// and the process's stdout, stderr and exit status are the only result.
package stellar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/yashasviy/payroll-bridge/config"
	"github.com/yashasviy/payroll-bridge/logging"
	"github.com/yashasviy/payroll-bridge/metrics"
)

// Contract function names.
const (
	FnAddEmployee          = "add_employee"
	FnFundTreasury         = "fund_treasury"
	FnPaySalary            = "pay_salary"
	FnStopEmployeeSalary   = "stop_employee_salary"
	FnResumeEmployeeSalary = "resume_employee_salary"
	FnGetTreasuryBalance   = "get_treasury_balance"
	FnGetAllEmployees      = "get_all_employees"
	FnGetEmployee          = "get_employee"
)

// ErrUnexpectedOutput wraps stdout that does not have the shape a read expects.
var ErrUnexpectedOutput = errors.New("unexpected CLI output")

// Arg is one named contract parameter, passed as --name value.
type Arg struct {
	Name  string
	Value string
}

// Client invokes contract functions with a fixed contract id, signing
// identity and network.
type Client struct {
	bin        string
	contractID string
	source     string
	network    string
	timeout    time.Duration
	runner     Runner
	log        *logrus.Entry
}

// NewClient binds a Client to cfg. runner is usually ExecRunner{}.
func NewClient(cfg *config.Config, runner Runner, log logrus.FieldLogger) *Client {
	return &Client{
		bin:        cfg.StellarBin,
		contractID: cfg.ContractID,
		source:     cfg.SourceAccount,
		network:    cfg.Network,
		timeout:    cfg.CLITimeout,
		runner:     runner,
		log:        logging.Component(log, "stellar"),
	}
}

// InvokeArgs builds the argument list for calling fn.
func (c *Client) InvokeArgs(fn string, args ...Arg) []string {
	out := []string{
		"contract", "invoke",
		"--id", c.contractID,
		"--source", c.source,
		"--network", c.network,
		"--", fn,
	}
	for _, a := range args {
		out = append(out, "--"+a.Name, a.Value)
	}
	return out
}

// Invoke runs fn and returns whatever the CLI printed. A non-nil error means
// the process failed to run or exited non-zero; a nil error with
// Result.Failed() means the CLI exited cleanly but reported an error on stderr.
func (c *Client) Invoke(ctx context.Context, fn string, args ...Arg) (Result, error) {
	return c.run(ctx, fn, c.InvokeArgs(fn, args...))
}

// SourceAddress resolves the public address of the signing identity.
func (c *Client) SourceAddress(ctx context.Context) (string, error) {
	res, err := c.run(ctx, "keys_address", []string{"keys", "address", c.source})
	if err != nil {
		return "", err
	}
	addr := strings.TrimSpace(res.Stdout)
	if addr == "" {
		return "", fmt.Errorf("%w: empty address for identity %q", ErrUnexpectedOutput, c.source)
	}
	return addr, nil
}

// AddEmployee registers address with an annual base salary in stroops.
func (c *Client) AddEmployee(ctx context.Context, address, name string, baseSalary int64) (Result, error) {
	return c.Invoke(ctx, FnAddEmployee,
		Arg{"employee_address", address},
		Arg{"name", name},
		Arg{"base_salary", strconv.FormatInt(baseSalary, 10)},
	)
}

// FundTreasury moves amount stroops from the given address into the contract.
func (c *Client) FundTreasury(ctx context.Context, from string, amount int64) (Result, error) {
	return c.Invoke(ctx, FnFundTreasury,
		Arg{"from", from},
		Arg{"amount", strconv.FormatInt(amount, 10)},
	)
}

// PaySalary pays one month's salary to address, authorised by the admin identity.
func (c *Client) PaySalary(ctx context.Context, address string) (Result, error) {
	return c.Invoke(ctx, FnPaySalary, Arg{"employee_address", address})
}

func (c *Client) StopEmployeeSalary(ctx context.Context, address string) (Result, error) {
	return c.Invoke(ctx, FnStopEmployeeSalary, Arg{"employee_address", address})
}

func (c *Client) ResumeEmployeeSalary(ctx context.Context, address string) (Result, error) {
	return c.Invoke(ctx, FnResumeEmployeeSalary, Arg{"employee_address", address})
}

// TreasuryBalance returns the treasury balance in stroops as printed by the
// CLI, with surrounding quotes removed. i128 values may exceed int64, so the
// digits are kept as text.
func (c *Client) TreasuryBalance(ctx context.Context) (string, error) {
	res, err := c.Invoke(ctx, FnGetTreasuryBalance)
	if err != nil {
		return "", err
	}
	out := strings.TrimSpace(res.Stdout)
	if !gjson.Valid(out) {
		return "", fmt.Errorf("%w: balance %q", ErrUnexpectedOutput, out)
	}
	v := gjson.Parse(out)
	if v.Type != gjson.String && v.Type != gjson.Number {
		return "", fmt.Errorf("%w: balance %q", ErrUnexpectedOutput, out)
	}
	return strings.Trim(v.String(), `"`), nil
}

// Employees lists every registered employee address.
func (c *Client) Employees(ctx context.Context) ([]string, error) {
	res, err := c.Invoke(ctx, FnGetAllEmployees)
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(res.Stdout)
	if !gjson.Valid(out) || !gjson.Parse(out).IsArray() {
		return nil, fmt.Errorf("%w: employee list %q", ErrUnexpectedOutput, out)
	}
	addrs := []string{}
	for _, v := range gjson.Parse(out).Array() {
		addrs = append(addrs, v.String())
	}
	return addrs, nil
}

// Employee returns the contract's record for address as raw JSON.
func (c *Client) Employee(ctx context.Context, address string) (json.RawMessage, error) {
	res, err := c.Invoke(ctx, FnGetEmployee, Arg{"employee_address", address})
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(res.Stdout)
	if !gjson.Valid(out) {
		return nil, fmt.Errorf("%w: employee %q", ErrUnexpectedOutput, out)
	}
	return json.RawMessage(out), nil
}

// run executes the CLI. Request cancellation is detached so a started
// transaction is always awaited; only the configured timeout can stop it.
func (c *Client) run(ctx context.Context, fn string, args []string) (Result, error) {
	ctx = context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.runner.Run(ctx, c.bin, args...)
	elapsed := time.Since(start)

	entry := c.log.WithFields(logrus.Fields{"fn": fn, "duration": elapsed})
	switch {
	case err != nil:
		metrics.RecordInvocation(fn, "failed", elapsed)
		entry.WithError(err).Warn("cli invocation failed")
	case res.Failed():
		metrics.RecordInvocation(fn, "stderr", elapsed)
		entry.WithField("stderr", strings.TrimSpace(res.Stderr)).Warn("cli reported an error")
	default:
		metrics.RecordInvocation(fn, "ok", elapsed)
		entry.Debug("cli invocation ok")
	}
	return res, err
}
