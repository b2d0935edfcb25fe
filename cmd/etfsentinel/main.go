package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"ETFSentinel/internal/analysis"
	"ETFSentinel/internal/config"
	"ETFSentinel/internal/display"
	"ETFSentinel/internal/notifier"
	"ETFSentinel/internal/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCmd()
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. cleanup releases whatever the
// executed command wired up.
func newRootCmd() (root *cobra.Command, cleanup func()) {
	var (
		cfgPath  string
		logLevel string
		a        *app
	)

	root = &cobra.Command{
		Use:           "etfsentinel",
		Short:         "ETF metrics, trading costs and reference reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cfgPath == "" {
				cfgPath = os.Getenv("CONFIG_PATH")
			}
			if cfgPath == "" {
				cfgPath = "configs/config.yaml"
			}
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg.Log, os.Stderr)
			a, err = newApp(cmd.Context(), cfg, logger)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "configuration file (default configs/config.yaml or $CONFIG_PATH)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	appRef := func() *app { return a }
	root.AddCommand(
		newAnalyzeCmd(appRef),
		newCompareCmd(appRef),
		newReconcileCmd(appRef),
		newHistoryCmd(appRef),
		newServeCmd(appRef),
	)
	cleanup = func() {
		if a != nil {
			a.Close()
		}
	}
	return root, cleanup
}

func newAnalyzeCmd(appRef func() *app) *cobra.Command {
	var benchmark, period string
	var reconcileFlag bool
	cmd := &cobra.Command{
		Use:   "analyze TICKER",
		Short: "Compute metrics, liquidity and trading costs for one ETF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appRef()
			p, err := a.period(period)
			if err != nil {
				return err
			}
			report, err := a.analyzer.Analyze(cmd.Context(), strings.ToUpper(args[0]), a.benchmark(benchmark), p,
				analysis.Options{Reconcile: reconcileFlag})
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), display.Report(report))
			return nil
		},
	}
	cmd.Flags().StringVarP(&benchmark, "benchmark", "b", "", "benchmark ticker (default from config)")
	cmd.Flags().StringVarP(&period, "period", "p", "", "lookback period: 1mo, 3mo, 6mo, 1y, 2y")
	cmd.Flags().BoolVar(&reconcileFlag, "reconcile", false, "also reconcile against reference sources")
	return cmd
}

func newCompareCmd(appRef func() *app) *cobra.Command {
	var benchmark, period string
	cmd := &cobra.Command{
		Use:   "compare TICKER TICKER...",
		Short: "Compare several ETFs side by side",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appRef()
			p, err := a.period(period)
			if err != nil {
				return err
			}
			tickers := make([]string, len(args))
			for i, t := range args {
				tickers[i] = strings.ToUpper(t)
			}
			results := a.analyzer.Compare(cmd.Context(), tickers, a.benchmark(benchmark), p, analysis.Options{})
			fmt.Fprint(cmd.OutOrStdout(), display.Comparison(results))
			for _, r := range results {
				if r.Err == nil {
					return nil
				}
			}
			return errors.New("every ticker failed")
		},
	}
	cmd.Flags().StringVarP(&benchmark, "benchmark", "b", "", "benchmark ticker (default from config)")
	cmd.Flags().StringVarP(&period, "period", "p", "", "lookback period: 1mo, 3mo, 6mo, 1y, 2y")
	return cmd
}

func newReconcileCmd(appRef func() *app) *cobra.Command {
	var benchmark string
	cmd := &cobra.Command{
		Use:   "reconcile TICKER",
		Short: "Compare computed figures with independent reference sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appRef()
			p, err := a.period("")
			if err != nil {
				return err
			}
			report, err := a.analyzer.Analyze(cmd.Context(), strings.ToUpper(args[0]), a.benchmark(benchmark), p,
				analysis.Options{Reconcile: true})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report.ValidationWarning != "" {
				return errors.New(report.ValidationWarning)
			}
			if len(report.Validation) == 0 {
				fmt.Fprintln(out, "reconciliation is not configured")
				return nil
			}
			fmt.Fprint(out, display.Validation(report.Validation))
			return nil
		},
	}
	cmd.Flags().StringVarP(&benchmark, "benchmark", "b", "", "benchmark ticker (default from config)")
	return cmd
}

func newHistoryCmd(appRef func() *app) *cobra.Command {
	var benchmark string
	cmd := &cobra.Command{
		Use:   "history TICKER",
		Short: "Show tracking metrics over each standard lookback period",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := appRef()
			ticker := strings.ToUpper(args[0])
			rows, err := a.analyzer.History(cmd.Context(), ticker, a.benchmark(benchmark))
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), display.History(ticker, rows))
			return nil
		},
	}
	cmd.Flags().StringVarP(&benchmark, "benchmark", "b", "", "benchmark ticker (default from config)")
	return cmd
}

func newServeCmd(appRef func() *app) *cobra.Command {
	var runOnStart bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Reconcile the watchlist on schedule, push Telegram alerts and expose /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appRef()
			cfg := a.cfg
			if err := cfg.ValidateAlerts(); err != nil {
				return err
			}
			ctx := cmd.Context()
			p, err := a.period("")
			if err != nil {
				return err
			}

			loc, err := time.LoadLocation(cfg.Guard.Timezone)
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			tn := notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, a.logger)
			sched := scheduler.NewScheduler(ctx, a.analyzer, tn, a.recorder, scheduler.Options{
				Watchlist: cfg.Watchlist,
				Benchmark: cfg.Benchmark,
				Period:    p,
				Location:  loc,
			}, a.logger)
			if err := sched.Register(cfg.Schedule.ReconcileCron); err != nil {
				return err
			}
			sched.Start()
			defer sched.Stop()

			go tn.StartPolling(ctx, sched.HandleCommand)
			a.logger.Info("telegram polling started")

			if runOnStart {
				a.logger.Info("running reconciliation on start")
				go sched.RunReconcileNow()
			}

			var srv *http.Server
			if cfg.Server.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
				srv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "err", err)
					}
				}()
				a.logger.Info("metrics server listening", "addr", cfg.Server.MetricsAddr)
			}

			a.logger.Info("etfsentinel is running, press Ctrl+C to stop")
			<-ctx.Done()
			a.logger.Info("shutdown signal received, stopping")

			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					a.logger.Warn("metrics server shutdown", "err", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-on-start", os.Getenv("RUN_ON_START") == "true", "reconcile the watchlist immediately")
	return cmd
}
