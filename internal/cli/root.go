package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stridesched/internal/job"
	"stridesched/internal/logging"
	"stridesched/internal/sched"
	"stridesched/internal/telemetry"
)

var defaultTasks = []string{"2:200", "4:200", "8:200"}

type options struct {
	configPath string
	logLevel   string
	logFormat  string
	debug      bool
	csvPath    string
	metrics    bool
	timeout    time.Duration
	tasks      []string
}

// NewRootCmd creates the stridesim command.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "stridesim",
		Short: "Run a workload on the stride scheduler",
		Long: "stridesim spawns sleep tasks with the given priorities and runs them on a\n" +
			"single simulated CPU until every task has exited.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}

	flags := root.Flags()
	flags.StringVar(&opts.configPath, "config", "config.yml", "Path to scheduler YAML config")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "text", "Log format (text, json)")
	flags.BoolVar(&opts.debug, "debug", false, "Shorthand for --log-level=debug")
	flags.StringVar(&opts.csvPath, "csv", "", "Write a CSV event trace to this file")
	flags.BoolVar(&opts.metrics, "metrics", false, "Export scheduler metrics to stdout")
	flags.DurationVar(&opts.timeout, "timeout", time.Minute, "Stop the simulation after this long")
	flags.StringArrayVar(&opts.tasks, "task", nil, "Task as priority:ms (repeatable)")

	return root
}

func run(ctx context.Context, opts *options) (err error) {
	if opts.debug {
		opts.logLevel = "debug"
	}
	logger := logging.NewLogger(logging.ParseLevel(opts.logLevel), opts.logFormat)

	cfg, err := sched.Load(opts.configPath)
	if err != nil {
		return err
	}
	cfg.ExitWhenIdle = true
	if opts.csvPath != "" {
		cfg.CSVPath = opts.csvPath
	}

	var recorder *telemetry.Recorder
	if opts.metrics {
		provider, perr := telemetry.NewStdoutMeterProvider(os.Stdout, 10*time.Second)
		if perr != nil {
			return perr
		}
		defer func() {
			err = errors.Join(err, provider.Shutdown(context.Background()))
		}()
		if recorder, err = telemetry.NewRecorder(provider); err != nil {
			return err
		}
	}

	specs := opts.tasks
	if len(specs) == 0 {
		specs = defaultTasks
	}

	kernel := sched.NewKernel(cfg,
		sched.WithLogger(logger),
		sched.WithRecorder(recorder),
		sched.WithClock(sched.NewMonotonicClock()))
	for _, spec := range specs {
		priority, ms, err := parseTaskSpec(spec)
		if err != nil {
			return err
		}
		if _, err := kernel.Spawn(priority, job.SleepWork(ms)); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()
	if err := kernel.Run(ctx); err != nil {
		return err
	}

	for _, id := range kernel.Table().IDs() {
		info, err := kernel.Info(id)
		if err != nil {
			return err
		}
		tcb, _ := kernel.Table().Get(id)
		cx := tcb.Context()
		fmt.Printf("task %d: status=%s priority=%d dispatches=%d ran_ticks=%d runtime=%dms\n",
			id, info.Status, tcb.Priority(), cx.Dispatches, cx.RanTicks, info.TimeMS)
	}
	return nil
}

// parseTaskSpec parses "priority:ms".
func parseTaskSpec(spec string) (uint64, int64, error) {
	prio, ms, ok := strings.Cut(spec, ":")
	if !ok {
		return 0, 0, fmt.Errorf("task %q: want priority:ms", spec)
	}
	priority, err := strconv.ParseUint(strings.TrimSpace(prio), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("task %q: priority: %w", spec, err)
	}
	if priority < sched.MinPriority {
		return 0, 0, fmt.Errorf("task %q: priority must be at least %d", spec, sched.MinPriority)
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(ms), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("task %q: ms: %w", spec, err)
	}
	if millis < 0 {
		return 0, 0, fmt.Errorf("task %q: ms must not be negative", spec)
	}
	return priority, millis, nil
}
