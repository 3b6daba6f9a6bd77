// Command paster downloads the fragments of one image concurrently and writes
// the reassembled image.
//
// Usage:
//
//	paster [flags] B P C X N
//
// B is the fragment channel capacity, P the number of fetch tasks, C the
// number of decode tasks, X the delay in milliseconds before each decode and
// N the image number.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/arloliu/paster"
	"github.com/arloliu/paster/config"
	"github.com/arloliu/paster/errs"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var (
		configPath string
		output     string
		logLevel   string
		logFormat  string
		timeout    time.Duration
	)

	flagSet := pflag.NewFlagSet("paster", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&configPath, "config", "", "YAML file overriding protocol constants")
	flagSet.StringVarP(&output, "output", "o", "", "output file (default from protocol, all.png)")
	flagSet.StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flagSet.StringVar(&logFormat, "log-format", "text", "log format: text or json")
	flagSet.DurationVar(&timeout, "timeout", 0, "abort the run after this long (0 for no limit)")
	flagSet.Usage = func() { printUsage(stderr, flagSet) }

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}

		return exitUsage
	}

	logger, err := newLogger(stderr, logLevel, logFormat)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitUsage
	}

	params, err := config.ParseParams(flagSet.Args())
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		printUsage(stderr, flagSet)

		return exitUsage
	}

	proto := config.DefaultProtocol()
	if configPath != "" {
		if proto, err = config.LoadProtocol(configPath); err != nil {
			fmt.Fprintf(stderr, "error: loading %s: %v\n", configPath, err)
			return exitUsage
		}
	}

	if output == "" {
		output = proto.Output
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	report, err := paster.Run(ctx, params, proto, logger)
	if err != nil {
		logger.Error("run failed", "error", err)
		fmt.Fprintf(stderr, "error: %v\n", err)

		if errors.Is(err, errs.ErrInvalidParams) || errors.Is(err, errs.ErrInvalidProtocol) {
			return exitUsage
		}

		return exitFailure
	}

	if err := paster.WriteFile(output, report); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	logger.Info("image written", "path", output, "report", report)
	fmt.Fprintf(stdout, "paster execution time: %.6f seconds\n", time.Since(start).Seconds())

	return exitOK
}

// newLogger builds the process logger on w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q", format)
	}
}

func printUsage(w io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(w, `paster downloads the fragments of an image concurrently and reassembles them.

Usage:
  paster [flags] B P C X N

Arguments:
  B  fragment channel capacity
  P  number of fetch tasks
  C  number of decode tasks
  X  milliseconds each decode task sleeps before decoding
  N  image number

Flags:
%s`, flagSet.FlagUsages())
}
