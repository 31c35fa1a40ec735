package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drunlade/go-ax26/ax26"
	"github.com/drunlade/go-ax26/internal/cliutil"
	"github.com/fsnotify/fsnotify"
)

var (
	call       = flag.String("call", "", "local station ID (required)")
	to         = flag.String("to", "", "remote station ID (required)")
	configPath = flag.String("config", "", "YAML protocol config file")
	watchDir   = flag.String("watch", "", "watch a directory and send files as they appear")
	help       = flag.Bool("h", false, "show help")
	version    = flag.Bool("version", false, "show version")

	transportFlags cliutil.TransportFlags
	logFlags       cliutil.LogFlags
)

const versionString = "axsend version 0.1.0"

func init() {
	transportFlags.Register(flag.CommandLine)
	logFlags.Register(flag.CommandLine)
}

func main() {
	flag.Parse()

	if *help {
		showUsage(0)
	}

	if *version {
		fmt.Println(versionString)
		os.Exit(0)
	}

	files := flag.Args()
	if len(files) == 0 && *watchDir == "" {
		fmt.Fprintf(os.Stderr, "%s: no files specified\n", os.Args[0])
		showUsage(1)
	}
	if *call == "" || *to == "" {
		fmt.Fprintf(os.Stderr, "%s: -call and -to are required\n", os.Args[0])
		showUsage(1)
	}
	if err := transportFlags.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		showUsage(1)
	}

	ctx, cancel := cliutil.SignalContext()
	defer cancel()

	if err := run(ctx, files); err != nil {
		if !logFlags.Quiet {
			cliutil.Fatal("%v", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, files []string) error {
	config, err := ax26.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := logFlags.Logger()
	if err != nil {
		return err
	}
	defer closeLog()

	transport, err := transportFlags.Open(ctx)
	if err != nil {
		return err
	}

	callbacks := &ax26.Callbacks{
		OnProgress: func(p ax26.Progress) {
			if !logFlags.Verbose || logFlags.Quiet {
				return
			}
			fmt.Fprintf(os.Stderr, "\r%s: %.1f%% (%d/%d chunks, %d retries, %.0f bytes/s)",
				p.Transfer[:8], p.Fraction()*100, p.Chunks, p.TotalChunks, p.Retries, p.Rate())
		},
		OnRetry: func(transfer string, attempt int, reason string) {
			logger.Info("retrying chunk (attempt %d): %s", attempt, reason)
		},
	}

	conn, err := ax26.NewConn(ax26.StationID(*call), transport,
		ax26.WithConfig(config),
		ax26.WithLogger(logger),
		ax26.WithCallbacks(callbacks),
	)
	if err != nil {
		transport.Close()
		return err
	}
	defer conn.Close()

	l := newLink(conn, ax26.StationID(*to), config, logger)
	cliutil.Status(logFlags.Quiet, "Connecting to %s...", *to)
	if err := l.connect(ctx); err != nil {
		return err
	}
	cliutil.Status(logFlags.Quiet, "Connected to %s", conn.Remote())
	defer conn.Disconnect()

	for _, filename := range files {
		info, err := os.Stat(filename)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error accessing %s: %v\n", filename, err)
			continue
		}
		if info.IsDir() {
			fmt.Fprintf(os.Stderr, "Skipping directory: %s\n", filename)
			continue
		}
		if err := sendFile(ctx, l, filename); err != nil {
			return err
		}
	}

	if *watchDir != "" {
		return watch(ctx, l, *watchDir)
	}
	return nil
}

// sendFile sends the file's base name followed by its contents as two
// messages.
func sendFile(ctx context.Context, l *link, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", filename, err)
	}

	name := filepath.Base(filename)
	if logFlags.Verbose && !logFlags.Quiet {
		fmt.Fprintf(os.Stderr, "Sending: %s (%d bytes)\n", name, len(data))
	}

	start := time.Now()
	if err := l.send(ctx, []byte(name), data); err != nil {
		return fmt.Errorf("failed to send %s: %w", name, err)
	}

	if logFlags.Verbose {
		fmt.Fprintln(os.Stderr)
		cliutil.Success(logFlags.Quiet, "Completed: %s (%d bytes in %v)", name, len(data), time.Since(start).Round(time.Millisecond))
	} else {
		cliutil.Success(logFlags.Quiet, "%s", name)
	}
	return nil
}

// watch sends regular files created or written in dir until ctx is done.
// A file is sent again only when its modification time changes.
func watch(ctx context.Context, l *link, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	cliutil.Status(logFlags.Quiet, "Watching %s", dir)

	sent := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			if last, ok := sent[event.Name]; ok && last.Equal(info.ModTime()) {
				continue
			}
			if err := sendFile(ctx, l, event.Name); err != nil {
				return err
			}
			sent[event.Name] = info.ModTime()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(os.Stderr, "Watcher error: %v\n", err)
		}
	}
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - send files over an AX.26 link

Usage: %s -call ID -to ID (-serial DEV | -tcp ADDR | -ws URL | -ssh HOST) [options] file...

Options:
  -call ID          local station ID
  -to ID            remote station ID
  -config FILE      YAML protocol config (AX26_* env vars override)
  -watch DIR        keep sending files that appear in DIR
  -serial DEV       KISS TNC on a serial port (-baud N, default 9600)
  -tcp ADDR         KISS TNC over TCP
  -ws URL           KISS bridge over WebSocket
  -ssh HOST         KISS bridge over SSH (-ssh-user, -ssh-cmd)
  -log FILE         protocol log file
  -log-json FILE    protocol log file in JSON lines
  -h                show this help message
  -q                quiet mode, minimal output
  -v                verbose mode
  -version          show version

Examples:
  %s -call N0CALL -to W1AW -tcp localhost:8001 file.txt
  %s -call N0CALL -to W1AW -serial /dev/ttyUSB0 -v *.txt
  %s -call N0CALL -to W1AW -ssh pi:22 -ssh-user pi -watch outbox

`, versionString, os.Args[0], os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
