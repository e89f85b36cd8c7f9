package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/yashasviy/payroll-bridge/models"
	"github.com/yashasviy/payroll-bridge/money"
	"github.com/yashasviy/payroll-bridge/stellar"
)

// Contract is the salary contract as the handlers use it. *stellar.Client implements it.
type Contract interface {
	AddEmployee(ctx context.Context, address, name string, baseSalary int64) (stellar.Result, error)
	FundTreasury(ctx context.Context, from string, amount int64) (stellar.Result, error)
	PaySalary(ctx context.Context, address string) (stellar.Result, error)
	StopEmployeeSalary(ctx context.Context, address string) (stellar.Result, error)
	ResumeEmployeeSalary(ctx context.Context, address string) (stellar.Result, error)
	SourceAddress(ctx context.Context) (string, error)
	TreasuryBalance(ctx context.Context) (string, error)
	Employees(ctx context.Context) ([]string, error)
	Employee(ctx context.Context, address string) (json.RawMessage, error)
}

// AddEmployeeHandler registers an employee with a monthly salary in XLM.
// The contract stores the annual base salary in stroops.
func AddEmployeeHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.AddEmployeeRequest
		if !decodeBody(w, r, &req) {
			return
		}

		monthlyText := amountText(req.MonthlyXLM)
		if req.Name == "" || req.Address == "" || monthlyText == "" {
			badRequest(w, "Missing required fields", "Please provide name, address, and monthly salary in XLM")
			return
		}
		if !validAddress(req.Address) {
			badRequest(w, "Invalid address", "Stellar address must start with G and be 56 characters")
			return
		}
		monthly, err := money.ParseXLM(monthlyText)
		if err != nil {
			badRequest(w, "Invalid salary", "Monthly salary must be a positive number")
			return
		}
		annualStroops, err := money.AnnualStroops(monthly)
		if err != nil {
			badRequest(w, "Invalid salary", "Monthly salary is too large")
			return
		}

		log.WithFields(logrus.Fields{
			"name":           req.Name,
			"address":        req.Address,
			"monthly_xlm":    monthlyText,
			"annual_stroops": annualStroops,
		}).Info("adding employee")

		res, err := c.AddEmployee(r.Context(), req.Address, req.Name, annualStroops)
		if f := invocationFailure(res, err); f != nil {
			log.WithField("error", f.Message).Error("error adding employee")
			f.write(w)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": fmt.Sprintf("Employee %s added successfully!", req.Name),
			"data": map[string]interface{}{
				"name":          req.Name,
				"address":       req.Address,
				"monthlyXLM":    echo(req.MonthlyXLM),
				"annualStroops": annualStroops,
				"note":          "Annual base salary set (will increase 5% compound each year)",
			},
			"output": res.Stdout,
		})
	}
}

// EmployeesHandler lists every registered employee address.
func EmployeesHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addrs, err := c.Employees(r.Context())
		if err != nil {
			serverError(w, log, "getting employees", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":   true,
			"count":     len(addrs),
			"employees": addrs,
		})
	}
}

// EmployeeHandler returns the contract's record for one address unchanged.
func EmployeeHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employee, err := c.Employee(r.Context(), chi.URLParam(r, "address"))
		if err != nil {
			serverError(w, log, "getting employee details", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":  true,
			"employee": employee,
		})
	}
}

// StopSalaryHandler pauses salary payments to an employee.
func StopSalaryHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return salaryToggleHandler(c.StopEmployeeSalary, "Stopping", "Salary stopped for employee successfully!", log)
}

// ResumeSalaryHandler resumes salary payments to an employee.
func ResumeSalaryHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return salaryToggleHandler(c.ResumeEmployeeSalary, "Resuming", "Salary resumed for employee successfully!", log)
}

func salaryToggleHandler(
	invoke func(ctx context.Context, address string) (stellar.Result, error),
	verb, message string,
	log logrus.FieldLogger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.EmployeeAddressRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.EmployeeAddress == "" {
			badRequest(w, "Missing employee address", "Please provide employee address")
			return
		}
		if !validAddress(req.EmployeeAddress) {
			badRequest(w, "Invalid address", "Stellar address must start with G and be 56 characters")
			return
		}

		log.WithField("employee", req.EmployeeAddress).Info(verb + " salary")

		res, err := invoke(r.Context(), req.EmployeeAddress)
		if f := invocationFailure(res, err); f != nil {
			log.WithField("error", f.Message).Error(verb + " salary failed")
			f.write(w)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": message,
			"data": map[string]interface{}{
				"employeeAddress": req.EmployeeAddress,
			},
			"output": res.Stdout,
		})
	}
}
