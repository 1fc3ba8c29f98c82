package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"LineSupervisor/internal/config"
	"LineSupervisor/internal/infrastructure/httpapi"
	"LineSupervisor/internal/infrastructure/push"
	"LineSupervisor/internal/infrastructure/report"
	"LineSupervisor/internal/infrastructure/scheduler"
	"LineSupervisor/internal/infrastructure/storage"
	"LineSupervisor/internal/infrastructure/telegram"
	"LineSupervisor/internal/logging"
	"LineSupervisor/internal/nominal"
	"LineSupervisor/internal/notify"
	"LineSupervisor/internal/ports"
	"LineSupervisor/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger

	db     *sqlx.DB
	poller *usecase.Poller
	sched  ports.Scheduler
	hub    *push.Hub
	api    *httpapi.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	db, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	events := storage.NewEventStore(db)
	parts := storage.NewPartStore(db)
	workorders := storage.NewWorkorderStore(db)
	workflow := storage.NewWorkflowStore(db)
	anomalies := storage.NewAnomalyStore(db)
	cursor := storage.NewCursorStore(db)
	stats := storage.NewStepStatsStore(db)

	nominalProvider := nominal.NewProvider(workflow)

	hub := push.NewHub(baseLogger.With("component", "push"))
	channels := []ports.Notifier{hub}
	if cfg.Notifications.Telegram.BotToken != "" && cfg.Notifications.Telegram.ChatID != "" {
		channels = append(channels,
			telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID))
	}
	notifier := notify.NewMulti(channels...)

	var reports ports.ReportSink
	if cfg.Report.APIKey != "" {
		reports = report.NewClient(cfg.Report)
	}

	detector := usecase.NewDetector(usecase.DetectorParams{
		ToleranceOverrun:     cfg.Detection.ToleranceOverrun,
		StatsWindowDays:      cfg.Detection.StatsWindowDays,
		EwmaAlpha:            cfg.Detection.EwmaAlpha,
		HawkesAlpha:          cfg.Detection.HawkesAlpha,
		HawkesDecayPerSecond: cfg.Detection.HawkesDecayPerSecond,
		Thresholds:           cfg.Detection.Severity.Thresholds(),
		ReportTimeout:        cfg.Report.Timeout(),
	}, usecase.DetectorDeps{
		Events:    events,
		Anomalies: anomalies,
		Cursor:    cursor,
		Stats:     stats,
		Workflow:  workflow,
		Nominal:   nominalProvider,
		Reports:   reports,
		Notifier:  notifier,
		Logger:    baseLogger.With("component", "detector"),
	})

	lifecycle := usecase.NewLifecycle(usecase.LifecycleParams{
		CriticalScrapCodes: cfg.Detection.CriticalScrapCodes,
		SweepWindowDays:    cfg.Detection.SweepWindowDays,
	}, usecase.LifecycleDeps{
		Parts:      parts,
		Workorders: workorders,
		Events:     events,
		Workflow:   workflow,
		Nominal:    nominalProvider,
		Detector:   detector,
		Notifier:   notifier,
		Logger:     baseLogger.With("component", "lifecycle"),
	})

	poller := usecase.NewPoller(events, cursor, detector, lifecycle,
		baseLogger.With("component", "poller"))

	api := httpapi.NewServer(cfg.HTTP.Addr, parts, workorders, anomalies, events,
		hub, baseLogger.With("component", "httpapi"))

	return &Application{
		cfg:    cfg,
		logger: baseLogger,
		db:     db,
		poller: poller,
		sched:  scheduler.NewTickerScheduler(cfg.Poller.Interval()),
		hub:    hub,
		api:    api,
	}, nil
}

// Run starts the poll loop and the HTTP surface, then blocks until the
// context is canceled.
func (a *Application) Run(ctx context.Context) error {
	err := a.sched.Start(ctx, func(time.Time) {
		if err := a.poller.Tick(ctx); err != nil {
			a.logger.Error("poll tick failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http api listening", "addr", a.cfg.HTTP.Addr)
		errCh <- a.api.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	return a.shutdown()
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.sched.Stop(ctx)
	a.hub.Close()
	if err := a.api.Shutdown(ctx); err != nil {
		a.logger.Warn("http shutdown", "error", err)
	}
	return a.db.Close()
}
