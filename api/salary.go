package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yashasviy/payroll-bridge/models"
	"github.com/yashasviy/payroll-bridge/payroll"
)

// PayrollRunner pays every registered employee.
type PayrollRunner interface {
	PayAll(ctx context.Context) (*models.PayrollRun, error)
}

// RunLister reads the history of bulk payroll runs.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]models.PayrollRun, error)
}

// PayAllSalariesHandler pays every employee and reports a per-address
// outcome. Individual failures do not fail the request.
func PayAllSalariesHandler(p PayrollRunner, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Info("processing pay all salaries request")

		run, err := p.PayAll(r.Context())
		if errors.Is(err, payroll.ErrNoEmployees) {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"success": false,
				"error":   "No employees found",
				"message": "There are no employees to pay",
			})
			return
		}
		if err != nil {
			serverError(w, log, "paying all salaries", err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": fmt.Sprintf("Paid salaries to %d out of %d employees", run.Summary.Successful, run.Summary.Total),
			"runId":   run.ID,
			"summary": run.Summary,
			"details": run.Payments,
		})
	}
}

// ClaimSalaryHandler pays the current month's salary to the given address.
//
// The payment is signed by the admin identity through pay_salary, not by the
// employee, so any caller who knows a registered address can trigger its
// payment. This matches the deployed contract flow and is pending a product
// decision on employee-signed claims.
func ClaimSalaryHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.ClaimSalaryRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.EmployeeAddress == "" {
			badRequest(w, "Missing employee address", "Please provide your Stellar address")
			return
		}
		if !validAddress(req.EmployeeAddress) {
			badRequest(w, "Invalid address", "Stellar address must start with G and be 56 characters")
			return
		}

		who := req.EmployeeName
		if who == "" {
			who = req.EmployeeAddress[:10] + "..."
		}
		log.WithField("employee", who).Info("claiming salary")

		res, err := c.PaySalary(r.Context(), req.EmployeeAddress)
		if f := invocationFailure(res, err); f != nil {
			log.WithField("error", f.Message).Error("error claiming salary")
			f.Message = claimMessage(f.Message)
			body := f.body()
			if err != nil {
				body["error"] = "Claim failed"
			} else {
				body["note"] = "Make sure you are registered as an employee and have not been paid this month yet."
			}
			writeJSON(w, http.StatusInternalServerError, body)
			return
		}

		name := req.EmployeeName
		if name == "" {
			name = "Unknown"
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Salary claimed successfully!",
			"data": map[string]interface{}{
				"employeeAddress": req.EmployeeAddress,
				"employeeName":    name,
			},
			"output": res.Stdout,
			"note":   "Your monthly salary has been transferred to your account!",
		})
	}
}

// claimMessage replaces the contract's known claim errors with text an
// employee can act on. Other messages pass through.
func claimMessage(msg string) string {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "not found"), strings.Contains(lower, "not registered"):
		return "You are not registered as an employee in this system."
	case strings.Contains(lower, "already paid"), strings.Contains(lower, "same month"):
		return "You have already claimed your salary this month. Try again next month!"
	}
	return msg
}

// PayrollRunsHandler lists recent bulk payroll runs, newest first.
func PayrollRunsHandler(runs RunLister, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				badRequest(w, "Invalid limit", "limit must be a positive integer")
				return
			}
			limit = n
		}

		list, err := runs.ListRuns(r.Context(), limit)
		if err != nil {
			serverError(w, log, "listing payroll runs", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"count":   len(list),
			"runs":    list,
		})
	}
}
