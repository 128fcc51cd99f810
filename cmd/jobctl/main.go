// cmd/jobctl/main.go
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"media-job-service/internal/bootstrap"
	"media-job-service/internal/config"
	"media-job-service/internal/entity"
	"media-job-service/internal/logging"
	"media-job-service/internal/service"
	"media-job-service/internal/worker"
)

type commandFn func(cc *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *zap.Logger
	Config config.Config
	Out    io.Writer

	Store  service.JobStore
	Writer worker.StatusWriter
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	name := os.Args[1]
	cmd, ok := commands()[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", name)
		printUsage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, cmd, os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", name, err)
		stop()
		os.Exit(1)
	}
}

func execute(ctx context.Context, cmd command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.IsDev(), cfg.ProjectID)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	pub, err := bootstrap.NewPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = pub.Close() }()

	// Only the status-writing side of the service is exposed here.
	cc := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    os.Stdout,
		Store:  store,
		Writer: bootstrap.NewJobService(cfg, store, nil, pub, logger),
	}
	return cmd.run(cc, args)
}

func commands() map[string]command {
	return map[string]command{
		"get": {
			name:        "get",
			description: "Print a job record as JSON",
			run:         runGet,
		},
		"advance": {
			name:        "advance",
			description: "Move a job to the next status (worker side of the contract)",
			run:         runAdvance,
		},
		"reap": {
			name:        "reap",
			description: "Fail pending_upload jobs whose upload window expired",
			run:         runReap,
		},
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: jobctl <command> [flags] [args]\n\nAvailable commands:\n")
	names := make([]string, 0, len(commands()))
	for n := range commands() {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Fprintf(w, "  %-10s %s\n", n, commands()[n].description)
	}
}

func runGet(cc *commandContext, args []string) error {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: jobctl get <job_id>")
	}

	job, err := service.NewStatusQuery(cc.Store, cc.Config.Jobs.OpTimeout).GetJob(cc.Ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return printJSON(cc.Out, job)
}

type advanceOptions struct {
	ResultURL string
	Error     string
}

func parseAdvanceFlags(args []string) (uuid.UUID, entity.JobStatus, advanceOptions, error) {
	var opts advanceOptions
	fs := flag.NewFlagSet("advance", flag.ContinueOnError)
	fs.StringVar(&opts.ResultURL, "result-url", "", "result location, only with status completed")
	fs.StringVar(&opts.Error, "error", "", "failure reason, only with status failed")
	if err := fs.Parse(args); err != nil {
		return uuid.Nil, "", opts, err
	}
	if fs.NArg() != 2 {
		return uuid.Nil, "", opts, errors.New("usage: jobctl advance [-result-url URL] [-error MSG] <job_id> <status>")
	}

	id, err := uuid.Parse(fs.Arg(0))
	if err != nil {
		return uuid.Nil, "", opts, fmt.Errorf("invalid job id: %w", err)
	}
	to, err := entity.ParseJobStatus(fs.Arg(1))
	if err != nil {
		return uuid.Nil, "", opts, err
	}
	return id, to, opts, nil
}

func runAdvance(cc *commandContext, args []string) error {
	id, to, opts, err := parseAdvanceFlags(args)
	if err != nil {
		return err
	}

	adv := worker.NewAdvancer(cc.Store, cc.Writer, cc.Logger)
	job, err := adv.Advance(cc.Ctx, id, to, worker.AdvanceOptions{
		ResultURL: opts.ResultURL,
		Error:     opts.Error,
	})
	if err != nil {
		return err
	}
	return printJSON(cc.Out, job)
}

type reapOptions struct {
	Once     bool
	Interval time.Duration
	Grace    time.Duration
	Batch    int
}

func parseReapFlags(args []string, defaults config.ReaperConfig) (reapOptions, error) {
	opts := reapOptions{
		Interval: defaults.Interval,
		Grace:    defaults.Grace,
		Batch:    defaults.Batch,
	}
	fs := flag.NewFlagSet("reap", flag.ContinueOnError)
	fs.BoolVar(&opts.Once, "once", false, "run a single pass and exit")
	fs.DurationVar(&opts.Interval, "interval", opts.Interval, "time between passes")
	fs.DurationVar(&opts.Grace, "grace", opts.Grace, "wait after the upload window closes before failing a job")
	fs.IntVar(&opts.Batch, "batch", opts.Batch, "jobs per pass")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Grace < 0 {
		return opts, errors.New("-grace must not be negative")
	}
	return opts, nil
}

func runReap(cc *commandContext, args []string) error {
	opts, err := parseReapFlags(args, cc.Config.Reaper)
	if err != nil {
		return err
	}

	r := worker.NewReaper(cc.Store, cc.Writer, cc.Logger, worker.ReaperOptions{
		Grace:    opts.Grace,
		Interval: opts.Interval,
		Batch:    opts.Batch,
	})
	if !opts.Once {
		r.Run(cc.Ctx)
		return nil
	}

	n, err := r.RunOnce(cc.Ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cc.Out, "reaped %d job(s) created before %s\n", n, r.Cutoff().Format(time.RFC3339))
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
