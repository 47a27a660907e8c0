package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/examsrs/internal/catalog"
	"github.com/example/examsrs/internal/config"
	"github.com/example/examsrs/internal/database"
	"github.com/example/examsrs/internal/leech"
	"github.com/example/examsrs/internal/logger"
	"github.com/example/examsrs/internal/metrics"
	"github.com/example/examsrs/internal/review"
	"github.com/example/examsrs/internal/scheduler"
)

// store is everything the process needs from a card store backend
type store interface {
	review.CardStore
	leech.Store
	scheduler.LearnerLister
	Close() error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open store", "db_type", cfg.DBType, "error", err)
	}
	defer st.Close()

	var questions leech.QuestionCatalog
	if cfg.CatalogPath != "" {
		load := catalog.DefaultLoadConfig()
		load.FilePath = cfg.CatalogPath
		load.SheetName = cfg.CatalogSheet
		c, res, err := catalog.Load(load)
		if err != nil {
			log.Fatal("failed to load question catalog", "path", cfg.CatalogPath, "error", err)
		}
		for _, msg := range res.Errors {
			log.Warn("catalog row skipped", "detail", msg)
		}
		log.Info("question catalog loaded", "questions", c.Len(), "categories", c.Categories())
		questions = c
	}

	m := metrics.NewMetrics()
	selector := review.NewSelector(st, log, m)
	detector := leech.NewDetector(st, questions, log, m)
	engine := leech.NewEngine(st, leech.EngineConfig{
		ComplexTopics: cfg.ComplexTopics,
		SuspendFor:    cfg.SuspendFor,
	}, log, m)
	reporter := leech.NewReporter(st, detector, engine)

	notifier := &logNotifier{ctx: ctx, engine: engine, reporter: reporter, log: log.With("component", "notifier")}
	sched := scheduler.New(st, detector, selector, notifier, scheduler.Config{
		Interval:  cfg.LeechScanInterval,
		Threshold: cfg.LeechThreshold,
	}, log.With("component", "scheduler"), m)
	if err := sched.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", "error", err)
	}
	defer sched.Stop()

	var srv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server failed", "error", err)
			}
		}()
		log.Info("metrics endpoint listening", "addr", cfg.MetricsAddr)
	}

	log.Info("examsrs started", "db_type", cfg.DBType, "leech_threshold", cfg.LeechThreshold)

	sig := <-sigChan
	log.Info("received signal", "signal", sig.String())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("error during shutdown", "error", err)
		}
	}
	log.Info("examsrs stopped")
}

func openStore(cfg *config.Config) (store, error) {
	switch cfg.DBType {
	case "memory":
		return database.NewMemoryStore(), nil
	}

	driver, dsn := database.DriverSQLite, cfg.DBPath
	if cfg.DBType == "postgres" {
		driver, dsn = database.DriverPostgres, cfg.DatabaseURL
	}
	s, err := database.Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// logNotifier writes scan results to the log
type logNotifier struct {
	ctx      context.Context
	engine   *leech.Engine
	reporter *leech.Reporter
	log      *logger.Logger
}

func (n *logNotifier) NotifyLeeches(learnerID int64, found []leech.Analysis) error {
	for _, a := range found {
		var kinds []string
		for _, s := range n.engine.Recommend(a) {
			kinds = append(kinds, string(s.Kind))
		}
		n.log.Info("new leech",
			"learner_id", learnerID,
			"card_id", a.Card.ID,
			"category", a.Question.Category,
			"severity", string(a.Severity),
			"recommended", kinds,
		)
	}

	stats, err := n.reporter.Statistics(n.ctx, learnerID)
	if err != nil {
		return err
	}
	n.log.Info("leech statistics",
		"learner_id", learnerID,
		"active", stats.ActiveLeeches,
		"suspended", stats.SuspendedLeeches,
		"leech_rate", stats.LeechRate,
	)
	return nil
}

func (n *logNotifier) SendReminders(learnerID int64, due int) error {
	n.log.Info("cards due", "learner_id", learnerID, "count", due)
	return nil
}
