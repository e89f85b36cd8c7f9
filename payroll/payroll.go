// Package payroll pays every registered employee in one bulk run.
//
// Each employee is paid by its own pay_salary invocation. A failure for one
// address is recorded and the run moves on; partial failure is a normal
// outcome, not an error.
package payroll

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/yashasviy/payroll-bridge/logging"
	"github.com/yashasviy/payroll-bridge/metrics"
	"github.com/yashasviy/payroll-bridge/models"
	"github.com/yashasviy/payroll-bridge/stellar"
)

// ErrNoEmployees is returned when the contract has nobody to pay.
var ErrNoEmployees = errors.New("no employees found")

// Contract is the subset of the stellar client a payroll run needs.
type Contract interface {
	Employees(ctx context.Context) ([]string, error)
	PaySalary(ctx context.Context, address string) (stellar.Result, error)
}

// Recorder persists finished runs.
type Recorder interface {
	RecordRun(ctx context.Context, run *models.PayrollRun) error
}

// Service runs bulk payroll.
type Service struct {
	contract    Contract
	recorder    Recorder
	concurrency int
	log         *logrus.Entry
	now         func() time.Time
}

// NewService returns a Service paying at most concurrency employees at once.
// concurrency <= 1 pays strictly one after another in list order.
// recorder may be nil.
func NewService(contract Contract, recorder Recorder, concurrency int, log logrus.FieldLogger) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		contract:    contract,
		recorder:    recorder,
		concurrency: concurrency,
		log:         logging.Component(log, "payroll"),
		now:         time.Now,
	}
}

// PayAll fetches the employee list and pays each address. details in the
// returned run are in the contract's list order regardless of concurrency.
func (s *Service) PayAll(ctx context.Context) (*models.PayrollRun, error) {
	addrs, err := s.contract.Employees(ctx)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoEmployees
	}

	run := &models.PayrollRun{
		ID:        uuid.NewString(),
		StartedAt: s.now().UTC(),
		Payments:  make([]models.Payment, len(addrs)),
	}
	log := s.log.WithField("run", run.ID)
	log.WithField("employees", len(addrs)).Info("paying salaries")

	if s.concurrency == 1 {
		for i, addr := range addrs {
			run.Payments[i] = s.pay(ctx, log, addr)
		}
	} else {
		p := pool.New().WithMaxGoroutines(s.concurrency)
		for i, addr := range addrs {
			p.Go(func() {
				run.Payments[i] = s.pay(ctx, log, addr)
			})
		}
		p.Wait()
	}

	run.FinishedAt = s.now().UTC()
	run.Summary = summarize(run.Payments)
	log.WithFields(logrus.Fields{
		"successful": run.Summary.Successful,
		"failed":     run.Summary.Failed,
	}).Info("payroll run finished")

	if s.recorder != nil {
		// The employees are paid whether or not the caller is still there,
		// so the run is recorded either way.
		if err := s.recorder.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			log.WithError(err).Error("failed to record payroll run")
		}
	}
	return run, nil
}

func (s *Service) pay(ctx context.Context, log *logrus.Entry, addr string) models.Payment {
	res, err := s.contract.PaySalary(ctx, addr)
	p := models.Payment{Address: addr}
	switch {
	case err != nil:
		p.Status = models.PaymentFailed
		p.Error = err.Error()
	case res.Failed():
		p.Status = models.PaymentFailed
		p.Error = strings.TrimSpace(res.Stderr)
	default:
		p.Status = models.PaymentSuccess
		p.Output = strings.TrimSpace(res.Stdout)
	}

	metrics.RecordPayment(string(p.Status))
	if p.Status == models.PaymentFailed {
		log.WithField("employee", short(addr)).Warn("salary payment failed: " + p.Error)
	} else {
		log.WithField("employee", short(addr)).Info("salary paid")
	}
	return p
}

func summarize(payments []models.Payment) models.PayrollSummary {
	sum := models.PayrollSummary{Total: len(payments)}
	for _, p := range payments {
		if p.Status == models.PaymentSuccess {
			sum.Successful++
		} else {
			sum.Failed++
		}
	}
	return sum
}

func short(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "..."
}
