package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/specialistvlad/dataflowgo/internal/app"
	"github.com/specialistvlad/dataflowgo/internal/execctx"
	"github.com/specialistvlad/dataflowgo/internal/history"
	"github.com/specialistvlad/dataflowgo/internal/moduleid"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Exit codes.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

const envPrefix = "DATAFLOW_"

func env(name string) cli.ValueSourceChain {
	return cli.EnvVars(envPrefix + name)
}

// Run parses args, without the program name, and executes the selected
// command. Command output goes to outW and logs to logW. Every error it
// returns is an *ExitError.
func Run(ctx context.Context, outW, logW io.Writer, args []string) error {
	cmd := New(outW, logW)
	err := cmd.Run(ctx, append([]string{cmd.Name}, args...))
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}

type runner struct {
	out io.Writer
	log io.Writer
}

// New builds the dataflowgo command tree.
func New(outW, logW io.Writer) *cli.Command {
	r := &runner{out: outW, log: logW}
	return &cli.Command{
		Name:      "dataflowgo",
		Usage:     "Load and execute dataflow networks of matrix-processing modules",
		Writer:    outW,
		ErrWriter: logW,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: env("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (text, json)",
				Value:   "text",
				Sources: env("LOG_FORMAT"),
			},
			&cli.StringMapFlag{
				Name:  "var",
				Usage: "Network file variable as name=value, available as var.<name>",
			},
			&cli.StringFlag{
				Name:    "archive",
				Usage:   "Run archive backend (memory, badger, redis)",
				Value:   "memory",
				Sources: env("ARCHIVE"),
			},
			&cli.StringFlag{
				Name:    "archive-path",
				Usage:   "Directory of the badger run archive",
				Value:   ".dataflowgo/runs",
				Sources: env("ARCHIVE_PATH"),
			},
			&cli.StringFlag{
				Name:    "redis-url",
				Usage:   "Redis URL of the redis run archive",
				Sources: env("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "redis-prefix",
				Usage:   "Key prefix of the redis run archive",
				Value:   "dataflowgo",
				Sources: env("REDIS_PREFIX"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Execute a network once and print the run report",
				ArgsUsage: "<network>",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "target",
						Aliases: []string{"t"},
						Usage:   "Module label or id whose result is wanted; repeatable",
					},
					outputFlag(),
				},
				Action: r.run,
			},
			{
				Name:      "validate",
				Usage:     "Load a network and print its execution order",
				ArgsUsage: "<network>",
				Action:    r.validate,
			},
			{
				Name:   "modules",
				Usage:  "List the registered module types",
				Flags:  []cli.Flag{outputFlag()},
				Action: r.modules,
			},
			{
				Name:      "serve",
				Usage:     "Keep a network running behind the control server",
				ArgsUsage: "<network>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "addr",
						Usage:   "Control server listen address; empty disables it",
						Value:   "127.0.0.1:8080",
						Sources: env("ADDR"),
					},
					&cli.BoolFlag{
						Name:    "watch",
						Usage:   "Re-apply parameters when the network files change",
						Value:   true,
						Sources: env("WATCH"),
					},
					&cli.StringFlag{
						Name:    "schedule",
						Usage:   "Cron expression for full re-runs, e.g. \"@every 1m\"",
						Sources: env("SCHEDULE"),
					},
					&cli.StringFlag{
						Name:    "render-host",
						Usage:   "socket.io URL of the render host sending widget feedback",
						Sources: env("RENDER_HOST"),
					},
					&cli.BoolFlag{
						Name:    "insecure",
						Usage:   "Skip TLS verification when connecting to the render host",
						Sources: env("INSECURE"),
					},
				},
				Action: r.serve,
			},
			{
				Name:  "runs",
				Usage: "List archived runs, newest first",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"n"},
						Usage:   "Maximum number of runs to list; 0 lists all",
						Value:   20,
					},
					outputFlag(),
				},
				Action: r.runs,
			},
		},
	}
}

func outputFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "output",
		Aliases: []string{"o"},
		Usage:   "Output format (text, json, yaml)",
		Value:   app.FormatText,
		Sources: env("OUTPUT"),
		Validator: func(s string) error {
			switch s {
			case app.FormatText, app.FormatJSON, app.FormatYAML:
				return nil
			}
			return fmt.Errorf("invalid output format %q: must be text, json or yaml", s)
		},
	}
}

// baseConfig reads the root flags.
func baseConfig(cmd *cli.Command, path string) app.Config {
	return app.Config{
		NetworkPath: path,
		Variables:   cmd.StringMap("var"),
		LogFormat:   cmd.String("log-format"),
		LogLevel:    cmd.String("log-level"),
		Archive: history.Config{
			Backend:  cmd.String("archive"),
			Path:     cmd.String("archive-path"),
			RedisURL: cmd.String("redis-url"),
			Prefix:   cmd.String("redis-prefix"),
		},
	}
}

func networkArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", &ExitError{Code: ExitUsage, Message: fmt.Sprintf("%s: expected exactly one network path", cmd.Name)}
	}
	return cmd.Args().First(), nil
}

// open validates cfg and builds the app. With a network path the network
// is loaded as well. The caller closes the app.
func (r *runner) open(ctx context.Context, cfg app.Config) (*app.App, error) {
	valid, err := app.NewConfig(cfg)
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	a, err := app.NewApp(r.log, valid)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: err.Error()}
	}
	if valid.NetworkPath == "" {
		return a, nil
	}
	if err := a.Load(ctx); err != nil {
		a.Close(ctx)
		return nil, &ExitError{Code: ExitFailure, Message: err.Error()}
	}
	return a, nil
}

func failure(err error) error {
	return &ExitError{Code: ExitFailure, Message: err.Error()}
}

func (r *runner) run(ctx context.Context, cmd *cli.Command) error {
	path, err := networkArg(cmd)
	if err != nil {
		return err
	}
	a, err := r.open(ctx, baseConfig(cmd, path))
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	report, runErr := a.RunTargets(ctx, cmd.StringSlice("target")...)
	if report.RunID != "" {
		if err := app.WriteReport(r.out, report, cmd.String("output")); err != nil {
			return failure(err)
		}
	}
	if runErr != nil {
		return failure(runErr)
	}
	if report.RunID == "" {
		return nil
	}
	if n := len(report.Errors); n > 0 || report.Outcome != execctx.RunSucceeded {
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("run %s: %d module errors", report.Outcome, n)}
	}
	return nil
}

func (r *runner) validate(ctx context.Context, cmd *cli.Command) error {
	path, err := networkArg(cmd)
	if err != nil {
		return err
	}
	a, err := r.open(ctx, baseConfig(cmd, path))
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	order, err := a.Order(ctx)
	if err != nil {
		return failure(err)
	}
	labels := make(map[moduleid.ID]string, len(order))
	for label, id := range a.Labels() {
		labels[id] = label
	}
	for i, id := range order {
		fmt.Fprintf(r.out, "%3d  %-32s %s\n", i+1, id, labels[id])
	}
	fmt.Fprintf(r.out, "Network is valid: %d modules, %d connections.\n", len(order), len(a.Network().Connections(ctx)))
	return nil
}

func (r *runner) modules(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx, baseConfig(cmd, ""))
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	ds := app.Describe(a.Registry())
	if cmd.String("output") == app.FormatText {
		return app.WriteModules(r.out, ds)
	}
	return app.WriteStructured(r.out, ds, cmd.String("output"))
}

func (r *runner) serve(ctx context.Context, cmd *cli.Command) error {
	path, err := networkArg(cmd)
	if err != nil {
		return err
	}
	cfg := baseConfig(cmd, path)
	cfg.ControlAddr = cmd.String("addr")
	cfg.Watch = cmd.Bool("watch")
	cfg.Schedule = cmd.String("schedule")
	cfg.RenderHost = cmd.String("render-host")
	cfg.InsecureSkipVerify = cmd.Bool("insecure")

	a, err := r.open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Serve(ctx); err != nil {
		return failure(err)
	}
	return nil
}

func (r *runner) runs(ctx context.Context, cmd *cli.Command) error {
	a, err := r.open(ctx, baseConfig(cmd, ""))
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	reports, err := a.Archive().List(ctx, cmd.Int("limit"))
	if err != nil {
		return failure(err)
	}
	if len(reports) == 0 && cmd.String("output") == app.FormatText {
		fmt.Fprintln(r.out, "No archived runs.")
		return nil
	}
	return app.WriteReports(r.out, reports, cmd.String("output"))
}
