package api

import (
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/yashasviy/payroll-bridge/models"
	"github.com/yashasviy/payroll-bridge/money"
)

// TreasuryBalanceHandler reports the contract treasury in stroops and XLM.
func TreasuryBalanceHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stroops, err := c.TreasuryBalance(r.Context())
		if err != nil {
			serverError(w, log, "getting treasury balance", err)
			return
		}
		xlm, err := money.StroopsToXLM(stroops)
		if err != nil {
			serverError(w, log, "getting treasury balance", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success":        true,
			"balanceStroops": stroops,
			"balanceXLM":     xlm,
		})
	}
}

// FundTreasuryHandler transfers XLM from the admin identity into the treasury.
func FundTreasuryHandler(c Contract, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.FundTreasuryRequest
		if !decodeBody(w, r, &req) {
			return
		}

		text := amountText(req.AmountXLM)
		if text == "" {
			badRequest(w, "Missing amount", "Please provide amount in XLM")
			return
		}
		amount, err := money.ParseXLM(text)
		if err != nil {
			badRequest(w, "Invalid amount", "Amount must be a positive number")
			return
		}
		amountStroops, err := money.ToStroops(amount)
		if err != nil {
			badRequest(w, "Invalid amount", "Amount is too large")
			return
		}

		log.WithFields(logrus.Fields{
			"amount_xlm":     text,
			"amount_stroops": amountStroops,
		}).Info("funding treasury")

		from, err := c.SourceAddress(r.Context())
		if err != nil {
			serverError(w, log, "funding treasury", err)
			return
		}

		res, err := c.FundTreasury(r.Context(), from, amountStroops)
		if f := invocationFailure(res, err); f != nil {
			log.WithField("error", f.Message).Error("error funding treasury")
			f.write(w)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": fmt.Sprintf("Treasury funded with %s XLM successfully!", text),
			"data": map[string]interface{}{
				"amountXLM":     echo(req.AmountXLM),
				"amountStroops": amountStroops,
				"from":          from,
			},
			"output": res.Stdout,
		})
	}
}
