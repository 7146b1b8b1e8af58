package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"voicedesk/internal/audit"
	"voicedesk/internal/auth"
	"voicedesk/internal/billing"
	"voicedesk/internal/config"
	"voicedesk/internal/httpapi"
	"voicedesk/internal/poller"
	"voicedesk/internal/reconcile"
	"voicedesk/internal/reporting"
	"voicedesk/internal/tasks"
	"voicedesk/internal/tenants"
	"voicedesk/internal/voice"
	"voicedesk/pkg/blob"
	"voicedesk/pkg/logger"
	"voicedesk/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	blobs, err := blob.Open(cfg.Blob)
	if err != nil {
		log.Error("blob store init failed", "err", err)
		os.Exit(1)
	}

	provider := voice.NewCartesiaProvider(cfg.Cartesia, log)

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))
	billingSvc := billing.NewService(db, 0)
	taskSvc := tasks.NewService(tasks.NewPostgresStore(db), provider, blobs, rdb, auditSvc, billingSvc, log)
	tenantSvc := tenants.NewService(db, authManager, taskSvc, log)
	reportSvc := reporting.NewService(reporting.NewPostgresRepo(db))

	// Server-side poll supervisor: one handle per in-flight call.
	supervisor := poller.NewSupervisor(taskSvc, cfg.Poll.Interval, log)
	go supervisor.Run(rootCtx)

	// Reconciliation sweep for calls the supervisor lost track of.
	sweeper := reconcile.NewSweeper(taskSvc, auditSvc, cfg.Poll.StaleAfter, log)
	cronRunner := cron.New()
	if _, err := sweeper.Schedule(rootCtx, cronRunner, cfg.Poll.ReconcileSpec); err != nil {
		log.Error("reconcile schedule failed", "err", err)
		os.Exit(1)
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, registerDeps{
		auth:     authManager,
		provider: provider,
		handlers: httpapi.Handlers{
			Tenants: tenantSvc,
			Tasks:   taskSvc,
			Billing: billingSvc,
			Audit:   auditSvc,
			Reports: reportSvc,
		},
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
