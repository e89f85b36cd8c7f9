package stellar_test

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yashasviy/payroll-bridge/config"
	"github.com/yashasviy/payroll-bridge/logging"
	"github.com/yashasviy/payroll-bridge/stellar"
	"github.com/yashasviy/payroll-bridge/stellar/stellartest"
)

const employee = "GBRPYHIL2CI3FNQ4BXLFMNDLFJUNPU2HY3ZMFSHONUCEOASW7QC7OX2H"

func testConfig() *config.Config {
	return &config.Config{
		ContractID:     "CCONTRACT",
		SourceAccount:  "alice",
		Network:        "testnet",
		StellarBin:     "stellar",
		PayConcurrency: 1,
	}
}

func TestAddEmployeeArgs(t *testing.T) {
	runner := stellartest.New().On(stellar.FnAddEmployee, stellartest.OK(""))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	_, err := c.AddEmployee(context.Background(), employee, "Ada", 120_000_000_000)
	require.NoError(t, err)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{
		"contract", "invoke",
		"--id", "CCONTRACT",
		"--source", "alice",
		"--network", "testnet",
		"--", "add_employee",
		"--employee_address", employee,
		"--name", "Ada",
		"--base_salary", "120000000000",
	}, calls[0])
}

func TestSourceAddress(t *testing.T) {
	runner := stellartest.New().On(stellartest.KeysAddress, stellartest.OK(employee+"\n"))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	addr, err := c.SourceAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, employee, addr)
	assert.Equal(t, []string{"keys", "address", "alice"}, runner.Calls()[0])
}

func TestTreasuryBalance(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   string
	}{
		{"quoted i128", "\"505000000\"\n", "505000000"},
		{"bare number", "42\n", "42"},
		{"beyond int64", "\"170141183460469231731687303715884105727\"", "170141183460469231731687303715884105727"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := stellartest.New().On(stellar.FnGetTreasuryBalance, stellartest.OK(tt.stdout))
			c := stellar.NewClient(testConfig(), runner, logging.Discard())

			got, err := c.TreasuryBalance(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTreasuryBalanceUnexpectedOutput(t *testing.T) {
	runner := stellartest.New().On(stellar.FnGetTreasuryBalance, stellartest.OK("[1,2]"))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	_, err := c.TreasuryBalance(context.Background())
	assert.ErrorIs(t, err, stellar.ErrUnexpectedOutput)
}

func TestEmployees(t *testing.T) {
	runner := stellartest.New().On(stellar.FnGetAllEmployees, stellartest.OK(`["`+employee+`"]`))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	got, err := c.Employees(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{employee}, got)
}

func TestEmployeesEmptyAndMalformed(t *testing.T) {
	runner := stellartest.New().On(stellar.FnGetAllEmployees, stellartest.OK("[]"), stellartest.OK("not json"))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	got, err := c.Employees(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)

	_, err = c.Employees(context.Background())
	assert.ErrorIs(t, err, stellar.ErrUnexpectedOutput)
}

func TestEmployee(t *testing.T) {
	record := `{"name":"Ada","base_salary":"120000000000","active":true}`
	runner := stellartest.New().On(stellar.FnGetEmployee, stellartest.OK(record+"\n"))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	got, err := c.Employee(context.Background(), employee)
	require.NoError(t, err)
	assert.JSONEq(t, record, string(got))
	assert.Equal(t, employee, stellartest.Flag(runner.Calls()[0], "employee_address"))
}

func TestInvokeExitError(t *testing.T) {
	runner := stellartest.New().On(stellar.FnPaySalary, stellartest.Exit("error: already paid this month"))
	c := stellar.NewClient(testConfig(), runner, logging.Discard())

	_, err := c.PaySalary(context.Background(), employee)

	var cmdErr *stellar.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 1, cmdErr.ExitCode)
	assert.Contains(t, err.Error(), "already paid")
	assert.Equal(t, "error: already paid this month", cmdErr.Details())
}

func TestExecRunner(t *testing.T) {
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("sh not available")
	}

	res, err := stellar.ExecRunner{}.Run(context.Background(), sh, "-c", "echo out; echo err >&2")
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)

	res, err = stellar.ExecRunner{}.Run(context.Background(), sh, "-c", "echo boom >&2; exit 3")
	var cmdErr *stellar.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestExecRunnerMissingBinary(t *testing.T) {
	_, err := stellar.ExecRunner{}.Run(context.Background(), "definitely-not-a-stellar-binary")

	var cmdErr *stellar.CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, -1, cmdErr.ExitCode)
}
