package ax26

import (
	"context"
	"io"

	"golang.org/x/crypto/ssh"
)

// DefaultSSHCommand bridges the session's stdin/stdout to a KISS TNC
// listening on the remote host.
const DefaultSSHCommand = "socat - TCP:localhost:8001"

// SSHTransport runs a KISS bridge command on a remote host and carries KISS
// frames over the command's stdin and stdout.
type SSHTransport struct {
	*KISSTransport
	sshSession *ssh.Session
	stderr     io.Reader
	done       chan error
}

// sshStream joins the session pipes into an io.ReadWriteCloser.
type sshStream struct {
	stdout     io.Reader
	stdin      io.WriteCloser
	sshSession *ssh.Session
}

func (s *sshStream) Read(p []byte) (int, error) {
	return s.stdout.Read(p)
}

func (s *sshStream) Write(p []byte) (int, error) {
	return s.stdin.Write(p)
}

func (s *sshStream) Close() error {
	var errs []error

	if err := s.stdin.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.sshSession.Close(); err != nil && err != io.EOF {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

// NewSSHTransport opens a session on client and starts command in it. An
// empty command runs DefaultSSHCommand.
func NewSSHTransport(client *ssh.Client, command string) (*SSHTransport, error) {
	if command == "" {
		command = DefaultSSHCommand
	}

	sshSession, err := client.NewSession()
	if err != nil {
		return nil, err
	}

	stdin, err := sshSession.StdinPipe()
	if err != nil {
		sshSession.Close()
		return nil, err
	}

	stdout, err := sshSession.StdoutPipe()
	if err != nil {
		stdin.Close()
		sshSession.Close()
		return nil, err
	}

	stderr, err := sshSession.StderrPipe()
	if err != nil {
		stdin.Close()
		sshSession.Close()
		return nil, err
	}

	if err := sshSession.Start(command); err != nil {
		stdin.Close()
		sshSession.Close()
		return nil, err
	}

	done := make(chan error, 1)
	go func() {
		done <- sshSession.Wait()
	}()

	stream := &sshStream{stdout: stdout, stdin: stdin, sshSession: sshSession}
	return &SSHTransport{
		KISSTransport: NewKISSTransport(stream, 0),
		sshSession:    sshSession,
		stderr:        stderr,
		done:          done,
	}, nil
}

// Wait blocks until the remote command exits or ctx is done.
func (s *SSHTransport) Wait(ctx context.Context) error {
	select {
	case err := <-s.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stderr returns the stderr reader for monitoring remote command output.
func (s *SSHTransport) Stderr() io.Reader {
	return s.stderr
}
