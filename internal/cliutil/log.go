package cliutil

import (
	"flag"
	"fmt"
	"os"

	"github.com/drunlade/go-ax26/ax26"
	"github.com/pterm/pterm"
	"go.uber.org/zap"
)

// ConsoleLogger prints protocol logs to stderr through pterm.
type ConsoleLogger struct {
	logger pterm.Logger
}

// NewConsoleLogger returns a console logger; verbose enables debug lines.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	l := pterm.DefaultLogger
	l.Writer = os.Stderr
	l.ShowTime = true
	l.TimeFormat = "02 Jan 15:04:05"
	l.MaxWidth = 1000
	if verbose {
		l.Level = pterm.LogLevelDebug
	}
	return &ConsoleLogger{logger: l}
}

func (c *ConsoleLogger) Debug(format string, args ...interface{}) {
	c.logger.Debug(fmt.Sprintf(format, args...))
}

func (c *ConsoleLogger) Info(format string, args ...interface{}) {
	c.logger.Info(fmt.Sprintf(format, args...))
}

func (c *ConsoleLogger) Error(format string, args ...interface{}) {
	c.logger.Error(fmt.Sprintf(format, args...))
}

// LogFlags selects where protocol logs go.
type LogFlags struct {
	Verbose bool
	Quiet   bool
	File    string
	JSON    string
}

// Register adds the logging flags to fs.
func (f *LogFlags) Register(fs *flag.FlagSet) {
	fs.BoolVar(&f.Verbose, "v", false, "verbose mode")
	fs.BoolVar(&f.Quiet, "q", false, "quiet mode")
	fs.StringVar(&f.File, "log", "", "AX.26 protocol log file (for debugging)")
	fs.StringVar(&f.JSON, "log-json", "", "AX.26 protocol log file in JSON lines")
}

// Logger builds the configured logger. The returned function flushes and
// closes it.
func (f *LogFlags) Logger() (ax26.Logger, func(), error) {
	switch {
	case f.JSON != "":
		cfg := zap.NewProductionConfig()
		cfg.OutputPaths = []string{f.JSON}
		if f.Verbose {
			cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		}
		zl, err := cfg.Build()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create JSON log: %w", err)
		}
		logger := ax26.NewZapLogger(zl)
		return logger, func() { _ = logger.Sync() }, nil

	case f.File != "":
		logger, err := ax26.NewFileLogger(f.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create log file: %w", err)
		}
		return logger, func() { logger.Close() }, nil

	case f.Quiet:
		return ax26.NoopLogger{}, func() {}, nil

	default:
		return NewConsoleLogger(f.Verbose), func() {}, nil
	}
}

// Status prints a user-facing line unless quiet is set.
func Status(quiet bool, format string, args ...interface{}) {
	if !quiet {
		pterm.Info.Printfln(format, args...)
	}
}

// Success prints a completion line unless quiet is set.
func Success(quiet bool, format string, args ...interface{}) {
	if !quiet {
		pterm.Success.Printfln(format, args...)
	}
}

// Fatal prints an error and exits.
func Fatal(format string, args ...interface{}) {
	pterm.Error.Printfln(format, args...)
	os.Exit(1)
}
