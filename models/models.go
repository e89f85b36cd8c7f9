package models

import (
	"encoding/json"
	"time"
)

// AddEmployeeRequest registers a new employee. MonthlyXLM may arrive as a
// JSON string or number and is echoed back exactly as sent.
type AddEmployeeRequest struct {
	Name       string          `json:"name"`
	Address    string          `json:"address"`
	MonthlyXLM json.RawMessage `json:"monthlyXLM"`
}

// FundTreasuryRequest moves XLM from the admin identity into the contract.
type FundTreasuryRequest struct {
	AmountXLM json.RawMessage `json:"amountXLM"`
}

// EmployeeAddressRequest is the body of stop/resume salary calls.
type EmployeeAddressRequest struct {
	EmployeeAddress string `json:"employeeAddress"`
}

// ClaimSalaryRequest is an employee asking to be paid for the current month.
type ClaimSalaryRequest struct {
	EmployeeAddress string `json:"employeeAddress"`
	EmployeeName    string `json:"employeeName,omitempty"`
}

// PaymentStatus is the outcome of paying one employee in a bulk run.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Payment is one employee's line in a bulk payroll run.
type Payment struct {
	Address string        `json:"address"`
	Status  PaymentStatus `json:"status"`
	Output  string        `json:"output,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// MarshalJSON always writes output for a paid line and error for a failed
// one, even when the CLI printed nothing.
func (p Payment) MarshalJSON() ([]byte, error) {
	line := map[string]interface{}{
		"address": p.Address,
		"status":  p.Status,
	}
	if p.Status == PaymentSuccess {
		line["output"] = p.Output
	} else {
		line["error"] = p.Error
	}
	return json.Marshal(line)
}

// PayrollSummary counts outcomes of a bulk payroll run.
type PayrollSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// PayrollRun is one execution of "pay all salaries".
type PayrollRun struct {
	ID         string         `json:"id"`
	StartedAt  time.Time      `json:"startedAt"`
	FinishedAt time.Time      `json:"finishedAt"`
	Summary    PayrollSummary `json:"summary"`
	Payments   []Payment      `json:"details"`
}
