package scheduler

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"ETFSentinel/internal/analysis"
	"ETFSentinel/internal/collector"
	"ETFSentinel/internal/model"
	"ETFSentinel/internal/notifier"
	"ETFSentinel/internal/recorder"
)

// Analyzer runs the analysis pipeline for one fund.
type Analyzer interface {
	Analyze(ctx context.Context, ticker, benchmark string, period collector.Period, opts analysis.Options) (*analysis.Report, error)
}

// Sender delivers alert messages.
type Sender interface {
	SendWithRetry(ctx context.Context, text string, maxRetries int) error
}

// Options selects what the scheduled job reconciles.
type Options struct {
	Watchlist []string
	Benchmark string
	Period    collector.Period
	Location  *time.Location
}

// Scheduler reconciles the watchlist on a cron schedule and pushes
// discrepancy alerts.
type Scheduler struct {
	Cron     *cron.Cron
	Analyzer Analyzer
	Notifier Sender
	Recorder recorder.Recorder
	Ctx      context.Context
	opts     Options
	now      func() time.Time
	logger   *slog.Logger
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, a Analyzer, n Sender, rec recorder.Recorder, opts Options, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	cronLog := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds(), cron.WithLocation(opts.Location), cron.WithLogger(cronLog)),
		Analyzer: a,
		Notifier: n,
		Recorder: rec,
		Ctx:      ctx,
		opts:     opts,
		now:      time.Now,
		logger:   logger,
	}
}

// Register adds the watchlist reconciliation job.
func (s *Scheduler) Register(reconcileCron string) error {
	if _, err := s.Cron.AddFunc(reconcileCron, s.reconcileTask); err != nil {
		return fmt.Errorf("register reconcile task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.logger.Info("scheduler started", "watchlist", s.opts.Watchlist)
}

// Stop stops the cron scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunReconcileNow executes the reconciliation job immediately.
func (s *Scheduler) RunReconcileNow() {
	s.reconcileTask()
}

func (s *Scheduler) reconcileTask() {
	s.logger.Info("running watchlist reconciliation", "tickers", len(s.opts.Watchlist))
	for _, ticker := range s.opts.Watchlist {
		if s.Ctx.Err() != nil {
			return
		}
		if err := s.ReconcileTicker(s.Ctx, ticker); err != nil {
			s.logger.Error("reconcile failed", "ticker", ticker, "err", err)
			s.trySend(fmt.Sprintf("❌ Reconciliation failed for %s: %s", ticker, html.EscapeString(err.Error())))
		}
	}
}

// ReconcileTicker analyses one fund and sends an alert for every yellow or
// red discrepancy whose severity differs from the previous recorded run.
func (s *Scheduler) ReconcileTicker(ctx context.Context, ticker string) error {
	prev, err := s.Recorder.LastSeverities(ctx, ticker)
	if err != nil {
		s.logger.Warn("previous severities unavailable", "ticker", ticker, "err", err)
		prev = nil
	}

	report, err := s.Analyzer.Analyze(ctx, ticker, s.opts.Benchmark, s.opts.Period, analysis.Options{Reconcile: true})
	if err != nil {
		return err
	}
	if report.ValidationWarning != "" {
		s.logger.Warn("reconciliation skipped", "ticker", ticker, "reason", report.ValidationWarning)
		return nil
	}

	changed := ChangedFlags(prev, report.Validation)
	if len(changed) == 0 {
		s.logger.Debug("no new discrepancies", "ticker", ticker)
		return nil
	}
	s.logger.Info("discrepancies changed", "ticker", ticker, "count", len(changed))
	s.trySend(notifier.FormatDiscrepancies(report.Symbol, changed, s.now()))
	return nil
}

// ChangedFlags returns the yellow and red records whose severity is not the
// one recorded previously for the same metric.
func ChangedFlags(prev map[string]model.Severity, records []model.ValidationRecord) []model.ValidationRecord {
	var out []model.ValidationRecord
	for _, r := range records {
		sev, ok := r.Severity()
		if !ok || sev == model.SeverityGreen {
			continue
		}
		if p, seen := prev[r.Metric]; seen && p == sev {
			continue
		}
		out = append(out, r)
	}
	return out
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Commands addressed in groups arrive as /check@BotName.
	cmd, _, _ := strings.Cut(fields[0], "@")
	switch cmd {
	case "/check":
		if len(fields) < 2 {
			return "Usage: /check TICKER"
		}
		ticker := strings.ToUpper(fields[1])
		report, err := s.Analyzer.Analyze(ctx, ticker, s.opts.Benchmark, s.opts.Period, analysis.Options{Reconcile: true})
		if err != nil {
			return fmt.Sprintf("❌ %s: %s", html.EscapeString(ticker), html.EscapeString(err.Error()))
		}
		return notifier.FormatReport(report)
	default:
		return notifier.FormatHelp()
	}
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, 3); err != nil {
		s.logger.Error("send notification failed", "err", err)
	}
}
