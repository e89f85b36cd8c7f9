package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/yashasviy/payroll-bridge/stellar"
)

// MaxBodyBytes caps request bodies. Every accepted body is a handful of short fields.
const MaxBodyBytes = 64 << 10

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// badRequest rejects a request before anything reaches the CLI.
func badRequest(w http.ResponseWriter, kind, message string) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"success": false,
		"error":   kind,
		"message": message,
	})
}

func serverError(w http.ResponseWriter, log logrus.FieldLogger, what string, err error) {
	log.WithError(err).Error("error " + what)
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"success": false,
		"error":   "Server error",
		"message": err.Error(),
	})
}

// decodeBody reads a JSON object into dst. An empty body decodes as {} so
// that missing fields are reported by field validation.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "Invalid body", "Request body must be a JSON object")
		return false
	}
	return true
}

// failure describes an invocation the bridge reports as failed.
type failure struct {
	Kind    string
	Message string
	Details string
}

// invocationFailure returns nil when the CLI run succeeded. A process
// failure reports the diagnostic text; a clean exit with error stderr
// reports the stderr.
func invocationFailure(res stellar.Result, err error) *failure {
	if err != nil {
		f := &failure{Kind: "Server error", Message: err.Error()}
		var cmdErr *stellar.CommandError
		if errors.As(err, &cmdErr) {
			if d := cmdErr.Details(); d != "" {
				f.Message = d
			}
			f.Details = strings.TrimSpace(cmdErr.Stdout)
		}
		return f
	}
	if res.Failed() {
		return &failure{
			Kind:    "Transaction failed",
			Message: strings.TrimSpace(res.Stderr),
			Details: strings.TrimSpace(res.Stdout),
		}
	}
	return nil
}

func (f *failure) body() map[string]interface{} {
	body := map[string]interface{}{
		"success": false,
		"error":   f.Kind,
		"message": f.Message,
	}
	if f.Details != "" {
		body["details"] = f.Details
	}
	return body
}

func (f *failure) write(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, f.body())
}
