// Command sleepeval evaluates a directory of per-subject sleep-staging
// results and derives expert and ensemble result sets from it.
//
// Usage:
//
//	sleepeval [flags] <experiment_root>
//
// Exactly one operation runs per invocation. Results are printed to
// stdout; logs go to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"golang.org/x/time/rate"

	"github.com/ahrav/go-sleepeval/infrastructure/middleware"
	"github.com/ahrav/go-sleepeval/infrastructure/store"
	"github.com/ahrav/go-sleepeval/internal/application"
	"github.com/ahrav/go-sleepeval/internal/render"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// options holds the parsed command line.
type options struct {
	root        string
	op          string
	configPath  string
	subject     int
	models      []string
	metricsFile string
	level       slog.Level
	noColor     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "sleepeval: %v\n", err)
		return exitUsage
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: opts.level}))
	metrics := middleware.NewPrometheusMetrics()

	out, runErr := execute(ctx, opts, logger, metrics)
	if opts.metricsFile != "" {
		if err := metrics.WriteToTextfile(opts.metricsFile); err != nil {
			logger.Error("failed to write metrics", "path", opts.metricsFile, "error", err)
			if runErr == nil {
				runErr = err
			}
		}
	}
	if runErr != nil {
		logger.Error("sleepeval failed", "op", opts.op, "root", opts.root, "error", runErr)
		fmt.Fprintf(stderr, "sleepeval: %v\n", runErr)
		return exitError
	}

	fmt.Fprint(stdout, out)
	return exitOK
}

func parseArgs(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("sleepeval", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: sleepeval [flags] <experiment_root>\n\nflags:\n")
		fs.PrintDefaults()
	}

	var (
		opts     options
		models   string
		logLevel string
	)
	fs.StringVar(&opts.op, "op", application.OpTable, "operation: "+strings.Join(application.Operations, "|"))
	fs.StringVar(&opts.configPath, "config", "", "YAML report configuration (default: built-in voters)")
	fs.IntVar(&opts.subject, "subject", 0, "subject index for -op hypnogram")
	fs.StringVar(&models, "models", "", "comma-separated models to report on (default: all)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "write Prometheus metrics to this file after the run")
	fs.StringVar(&logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.BoolVar(&opts.noColor, "no-color", false, "disable styled output")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return opts, fmt.Errorf("expected exactly one experiment root, got %d arguments", fs.NArg())
	}
	opts.root = fs.Arg(0)

	if !lo.Contains(application.Operations, opts.op) {
		return opts, fmt.Errorf("unknown operation %q (want one of %s)", opts.op, strings.Join(application.Operations, ", "))
	}
	if err := opts.level.UnmarshalText([]byte(logLevel)); err != nil {
		return opts, fmt.Errorf("invalid -log-level: %w", err)
	}
	if models != "" {
		opts.models = strings.Split(models, ",")
	}
	return opts, nil
}

// execute builds the evaluation for opts and renders the result of the
// requested operation.
func execute(ctx context.Context, opts options, logger *slog.Logger, metrics *middleware.PrometheusMetrics) (string, error) {
	loader, err := application.NewConfigLoader(application.NewDefaultUnitRegistry())
	if err != nil {
		return "", err
	}

	var plan *application.ReportPlan
	if opts.configPath != "" {
		plan, err = loader.LoadFromFile(ctx, opts.configPath)
	} else {
		plan, err = loader.Default(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("load config: %w", err)
	}
	logger.Debug("report plan ready", "hash", plan.Hash, "voters", plan.Config.VoterIDs())

	fileStore, err := store.NewFileStore(store.FileStoreConfig{
		Root:       opts.root,
		Format:     store.Format(plan.Config.Store.Format),
		NumClasses: plan.Config.NumClasses(),
	}, logger, metrics)
	if err != nil {
		return "", err
	}
	records := store.Chain(fileStore,
		store.TracingMiddleware(otel.GetTracerProvider()),
		store.RateLimitMiddleware(rate.Limit(plan.Config.Store.ReadsPerSecond), plan.Config.Store.Burst),
	)

	eval, err := application.NewEvaluation(records, plan,
		application.WithLogger(logger),
		application.WithMetrics(metrics),
		application.WithObserver(middleware.NewOTelObserver(nil)),
		application.WithModels(opts.models),
	)
	if err != nil {
		return "", err
	}

	ropts := render.DefaultOptions()
	ropts.NoColor = opts.noColor
	ropts.Classes = plan.Config.Classes

	switch opts.op {
	case application.OpTable:
		report, err := eval.Table(ctx)
		if err != nil {
			return "", err
		}
		return render.Table("accuracy (%)", report, ropts), nil
	case application.OpAttentionTable:
		report, err := eval.AttentionTable(ctx)
		if err != nil {
			return "", err
		}
		return render.Table("mean attention", report, ropts), nil
	case application.OpConfusion:
		reports, err := eval.ConfusionReport(ctx)
		if err != nil {
			return "", err
		}
		return render.Confusions(reports, ropts), nil
	case application.OpHypnogram:
		traces, err := eval.Hypnogram(ctx, opts.subject)
		if err != nil {
			return "", err
		}
		return render.Hypnogram(traces, ropts), nil
	case application.OpExperts:
		report, err := eval.ExtractExperts(ctx)
		if err != nil {
			return "", err
		}
		return render.Experts(report, ropts), nil
	case application.OpVoters:
		report, err := eval.ExtractVoters(ctx)
		if err != nil {
			return "", err
		}
		return render.Voters(report, ropts), nil
	default:
		return "", fmt.Errorf("unknown operation %q", opts.op)
	}
}
