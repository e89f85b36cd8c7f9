// Command payroll-bridge serves the payroll admin API and frontend, turning
// each request into stellar CLI invocations against the salary contract.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/sirupsen/logrus"

	"github.com/yashasviy/payroll-bridge/api"
	"github.com/yashasviy/payroll-bridge/config"
	"github.com/yashasviy/payroll-bridge/db"
	"github.com/yashasviy/payroll-bridge/logging"
	"github.com/yashasviy/payroll-bridge/middleware"
	"github.com/yashasviy/payroll-bridge/payroll"
	"github.com/yashasviy/payroll-bridge/stellar"
)

const (
	// ShutdownTimeout bounds how long in-flight requests get to finish.
	ShutdownTimeout = 30 * time.Second

	// RateLimitCleanupInterval is how often idle client limiters are dropped.
	RateLimitCleanupInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := api.Deps{Config: cfg, Log: log}

	// 1. Redis (idempotency)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis connection failed, idempotency disabled")
		} else {
			log.WithField("addr", cfg.RedisAddr).Info("redis connected")
			deps.Redis = rdb
		}
	}

	// 2. Postgres (payroll run history)
	var recorder payroll.Recorder
	if cfg.DBURL != "" {
		store, closeDB, err := openStore(ctx, cfg.DBURL)
		if err != nil {
			log.WithError(err).Warn("postgres unavailable, payroll runs will not be recorded")
		} else {
			defer closeDB()
			log.Info("postgres connected")
			recorder = store
			deps.Runs = store
		}
	}

	// 3. Contract client and payroll
	client := stellar.NewClient(cfg, stellar.ExecRunner{}, log)
	deps.Contract = client
	deps.Payroll = payroll.NewService(client, recorder, cfg.PayConcurrency, log)

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log)
		limiter.StartCleanup(RateLimitCleanupInterval, ctx.Done())
		deps.RateLimiter = limiter
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	banner(log, cfg, deps)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server stopped")
	}
}

func openStore(ctx context.Context, url string) (*db.Store, func(), error) {
	conn, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	if err := db.Initialize(ctx, conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return db.NewStore(conn), func() { conn.Close() }, nil
}

func banner(log *logrus.Logger, cfg *config.Config, deps api.Deps) {
	log.WithFields(logrus.Fields{
		"addr":        cfg.Addr(),
		"contract":    cfg.ContractID,
		"source":      cfg.SourceAccount,
		"network":     cfg.Network,
		"concurrency": cfg.PayConcurrency,
		"idempotency": deps.Redis != nil,
		"history":     deps.Runs != nil,
	}).Info("payroll bridge running")

	endpoints := []string{
		"GET  /",
		"GET  /api/treasury-balance",
		"GET  /api/employees",
		"GET  /api/employee/{address}",
		"POST /api/add-employee",
		"POST /api/pay-all-salaries",
		"POST /api/fund-treasury",
		"POST /api/stop-employee-salary",
		"POST /api/resume-employee-salary",
		"POST /api/claim-salary",
		"GET  /healthz",
		"GET  /metrics",
	}
	if deps.Runs != nil {
		endpoints = append(endpoints, "GET  /api/payroll-runs")
	}
	for _, e := range endpoints {
		log.Info("endpoint " + e)
	}
}
