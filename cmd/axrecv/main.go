package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/drunlade/go-ax26/ax26"
	"github.com/drunlade/go-ax26/internal/cliutil"
)

var (
	call       = flag.String("call", "", "local station ID (required)")
	dir        = flag.String("dir", ".", "directory to store received files")
	count      = flag.Int("n", 0, "exit after receiving N files (0 = keep listening)")
	peers      = flag.String("peers", "", "comma-separated station IDs to accept data from")
	configPath = flag.String("config", "", "YAML protocol config file")
	overwrite  = flag.Bool("y", false, "overwrite existing files")
	protect    = flag.Bool("p", false, "protect existing files")
	help       = flag.Bool("h", false, "show help")
	version    = flag.Bool("version", false, "show version")

	transportFlags cliutil.TransportFlags
	logFlags       cliutil.LogFlags
)

const versionString = "axrecv version 0.1.0"

var errSkipped = errors.New("skipped")

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

	if *call == "" {
		fmt.Fprintf(os.Stderr, "%s: -call is required\n", os.Args[0])
		showUsage(1)
	}
	if err := transportFlags.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[0], err)
		showUsage(1)
	}

	ctx, cancel := cliutil.SignalContext()
	defer cancel()

	if err := run(ctx); err != nil {
		if !logFlags.Quiet {
			cliutil.Fatal("%v", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	config, err := ax26.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(*dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", *dir, err)
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
			fmt.Fprintf(os.Stderr, "\r%s: %d chunks, %d bytes (%d retries, %.0f bytes/s)",
				p.Transfer[:8], p.Chunks, p.Bytes, p.Retries, p.Rate())
		},
		OnRetry: func(transfer string, attempt int, reason string) {
			logger.Info("chunk problem (attempt %d): %s", attempt, reason)
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

	var opts []ax26.ReceiveOption
	if ids := parsePeers(*peers); len(ids) > 0 {
		opts = append(opts, ax26.WithPeers(ids...))
	}

	received := 0
	for *count == 0 || received < *count {
		cliutil.Status(logFlags.Quiet, "Waiting for connection as %s...", *call)
		if err := conn.WaitForConnection(ctx); err != nil {
			if ax26.IsKind(err, ax26.KindConnectTimeout) {
				continue
			}
			if ax26.IsKind(err, ax26.KindCancelled) {
				return nil
			}
			return err
		}
		cliutil.Status(logFlags.Quiet, "Connected to %s", conn.Remote())

		n, err := session(ctx, conn, opts, *count-received)
		received += n
		switch {
		case err == nil:
		case ax26.IsKind(err, ax26.KindNoData):
			cliutil.Status(logFlags.Quiet, "Session ended")
		case ax26.IsKind(err, ax26.KindCancelled):
			return nil
		default:
			fmt.Fprintf(os.Stderr, "Session failed: %v\n", err)
		}
		conn.Disconnect()
	}
	return nil
}

// session receives name and content pairs until limit files are stored
// (limit <= 0 means no limit) or the link goes idle.
func session(ctx context.Context, conn *ax26.Conn, opts []ax26.ReceiveOption, limit int) (int, error) {
	received := 0
	for limit <= 0 || received < limit {
		rawName, err := conn.Receive(ctx, opts...)
		if err != nil {
			return received, err
		}
		start := time.Now()
		data, err := conn.Receive(ctx, opts...)
		if err != nil {
			return received, err
		}

		path, err := storeFile(*dir, string(rawName), data, *overwrite, *protect)
		switch {
		case errors.Is(err, errSkipped):
			if logFlags.Verbose {
				fmt.Fprintf(os.Stderr, "Skipping %s (protected)\n", path)
			}
			continue
		case err != nil:
			fmt.Fprintf(os.Stderr, "Error storing %q: %v\n", rawName, err)
			continue
		}

		received++
		if logFlags.Verbose {
			fmt.Fprintln(os.Stderr)
			cliutil.Success(logFlags.Quiet, "Completed: %s (%d bytes in %v)", path, len(data), time.Since(start).Round(time.Millisecond))
		} else {
			cliutil.Success(logFlags.Quiet, "%s", path)
		}
	}
	return received, nil
}

// storeFile writes data under dir using only the base of name. An existing
// file is kept when protect is set, replaced when overwrite is set, and
// otherwise the new file gets a numeric suffix.
func storeFile(dir, name string, data []byte, overwrite, protect bool) (string, error) {
	base, err := safeName(name)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, base)
	if _, err := os.Stat(path); err == nil {
		switch {
		case protect:
			return path, errSkipped
		case !overwrite:
			path = uniquePath(path)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}

func safeName(name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == ".." || base == "/" || base == "" || strings.ContainsRune(base, 0) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return base, nil
}

func uniquePath(path string) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%d%s", stem, i, ext)
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}
}

func parsePeers(s string) []ax26.StationID {
	var ids []ax26.StationID
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, ax26.StationID(p))
		}
	}
	return ids
}

func showUsage(exitcode int) {
	fmt.Fprintf(os.Stderr, `%s - receive files over an AX.26 link

Usage: %s -call ID (-serial DEV | -tcp ADDR | -ws URL | -ssh HOST) [options]

Options:
  -call ID          local station ID
  -dir DIR          directory to store received files (default: .)
  -n N              exit after N files (default: keep listening)
  -peers A,B        only accept data from these stations
  -config FILE      YAML protocol config (AX26_* env vars override)
  -serial DEV       KISS TNC on a serial port (-baud N, default 9600)
  -tcp ADDR         KISS TNC over TCP
  -ws URL           KISS bridge over WebSocket
  -ssh HOST         KISS bridge over SSH (-ssh-user, -ssh-cmd)
  -log FILE         protocol log file
  -log-json FILE    protocol log file in JSON lines
  -y                overwrite existing files
  -p                protect existing files
  -h                show this help message
  -q                quiet mode, minimal output
  -v                verbose mode
  -version          show version

Examples:
  %s -call W1AW -tcp localhost:8001
  %s -call W1AW -serial /dev/ttyUSB0 -dir inbox -n 1

`, versionString, os.Args[0], os.Args[0], os.Args[0])
	os.Exit(exitcode)
}
