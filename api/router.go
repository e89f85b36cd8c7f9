package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/yashasviy/payroll-bridge/config"
	"github.com/yashasviy/payroll-bridge/logging"
	"github.com/yashasviy/payroll-bridge/metrics"
	"github.com/yashasviy/payroll-bridge/middleware"
)

// Deps are the collaborators the HTTP surface is built from.
// Redis, Runs and RateLimiter are optional.
type Deps struct {
	Config      *config.Config
	Contract    Contract
	Payroll     PayrollRunner
	Runs        RunLister
	Redis       redis.Cmdable
	RateLimiter *middleware.RateLimiter
	Log         logrus.FieldLogger
}

// NewRouter wires every endpoint.
func NewRouter(d Deps) http.Handler {
	log := logging.Component(d.Log, "api")

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimw.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(middleware.CORS(d.Config.AllowedOrigins()))
	if d.RateLimiter != nil {
		r.Use(d.RateLimiter.Handler)
	}

	r.Get("/", FrontendHandler(d.Config.FrontendPath))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/treasury-balance", TreasuryBalanceHandler(d.Contract, log))
		r.Get("/employees", EmployeesHandler(d.Contract, log))
		r.Get("/employee/{address}", EmployeeHandler(d.Contract, log))
		if d.Runs != nil {
			r.Get("/payroll-runs", PayrollRunsHandler(d.Runs, log))
		}

		r.Group(func(r chi.Router) {
			if d.Redis != nil {
				r.Use(middleware.Idempotency(d.Redis, d.Log))
			}
			r.Post("/add-employee", AddEmployeeHandler(d.Contract, log))
			r.Post("/pay-all-salaries", PayAllSalariesHandler(d.Payroll, log))
			r.Post("/fund-treasury", FundTreasuryHandler(d.Contract, log))
			r.Post("/stop-employee-salary", StopSalaryHandler(d.Contract, log))
			r.Post("/resume-employee-salary", ResumeSalaryHandler(d.Contract, log))
			r.Post("/claim-salary", ClaimSalaryHandler(d.Contract, log))
		})
	})

	return r
}

// FrontendHandler serves the static admin page.
func FrontendHandler(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, path)
	}
}
