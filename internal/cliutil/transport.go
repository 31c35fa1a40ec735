// Package cliutil holds the plumbing shared by the axsend and axrecv
// commands: transport selection, console logging and prompts.
package cliutil

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/drunlade/go-ax26/ax26"
	"golang.org/x/crypto/ssh"
)

// TransportFlags selects and configures the link to the TNC.
type TransportFlags struct {
	Serial  string
	Baud    int
	TCP     string
	WS      string
	SSH     string
	SSHUser string
	SSHCmd  string

	// Stderr receives the SSH bridge command's stderr. Nil means os.Stderr.
	Stderr io.Writer
}

// Register adds the transport flags to fs.
func (f *TransportFlags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Serial, "serial", "", "serial port of a KISS TNC (e.g. /dev/ttyUSB0)")
	fs.IntVar(&f.Baud, "baud", 9600, "serial baud rate")
	fs.StringVar(&f.TCP, "tcp", "", "KISS-over-TCP TNC address (e.g. localhost:8001)")
	fs.StringVar(&f.WS, "ws", "", "WebSocket KISS bridge URL (e.g. ws://host:8080/kiss)")
	fs.StringVar(&f.SSH, "ssh", "", "SSH host (hostname:port) running a KISS bridge")
	fs.StringVar(&f.SSHUser, "ssh-user", "", "SSH username")
	fs.StringVar(&f.SSHCmd, "ssh-cmd", ax26.DefaultSSHCommand, "remote command bridging stdin/stdout to the TNC")
}

// Validate checks that exactly one transport was chosen.
func (f *TransportFlags) Validate() error {
	n := 0
	for _, v := range []string{f.Serial, f.TCP, f.WS, f.SSH} {
		if v != "" {
			n++
		}
	}
	switch {
	case n == 0:
		return errors.New("one of -serial, -tcp, -ws or -ssh is required")
	case n > 1:
		return errors.New("-serial, -tcp, -ws and -ssh are mutually exclusive")
	case f.SSH != "" && f.SSHUser == "":
		return errors.New("-ssh-user is required with -ssh")
	case f.Serial != "" && f.Baud <= 0:
		return fmt.Errorf("invalid baud rate %d", f.Baud)
	}
	return nil
}

// Open connects the selected transport.
func (f *TransportFlags) Open(ctx context.Context) (ax26.Transport, error) {
	switch {
	case f.Serial != "":
		return ax26.OpenSerial(f.Serial, f.Baud)
	case f.TCP != "":
		return ax26.DialTCP(ctx, f.TCP)
	case f.WS != "":
		return ax26.DialWebSocket(ctx, f.WS)
	case f.SSH != "":
		return f.openSSH()
	default:
		return nil, errors.New("no transport selected")
	}
}

// sshClientTransport closes the SSH client together with the transport.
type sshClientTransport struct {
	*ax26.SSHTransport
	client *ssh.Client
}

func (t *sshClientTransport) Close() error {
	err := t.SSHTransport.Close()
	if cerr := t.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func (f *TransportFlags) openSSH() (ax26.Transport, error) {
	pass, err := SSHPassword(f.SSHUser, f.SSH)
	if err != nil {
		return nil, err
	}

	config := &ssh.ClientConfig{
		User: f.SSHUser,
		Auth: []ssh.AuthMethod{
			ssh.Password(pass),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", f.SSH, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", f.SSH, err)
	}

	t, err := ax26.NewSSHTransport(client, f.SSHCmd)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start %q on %s: %w", f.SSHCmd, f.SSH, err)
	}
	out := f.Stderr
	if out == nil {
		out = os.Stderr
	}
	go drainStderr(t.Stderr(), out, f.SSH)

	return &sshClientTransport{SSHTransport: t, client: client}, nil
}

// drainStderr copies the remote command's stderr line by line to w until it
// closes. An unread stderr stream stalls the SSH channel carrying the frames.
func drainStderr(r io.Reader, w io.Writer, host string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		fmt.Fprintf(w, "[%s] %s\n", host, scanner.Text())
	}
	// Keep consuming if a line was too long for the scanner.
	io.Copy(io.Discard, r)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()
	return ctx, cancel
}
