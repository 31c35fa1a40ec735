package ax26

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Logger interface for AX.26 protocol logging
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// FileLogger writes logs to a file
type FileLogger struct {
	file *os.File
	mu   sync.Mutex
}

// NewFileLogger creates a logger that writes to a file
func NewFileLogger(path string) (*FileLogger, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{file: file}, nil
}

func (l *FileLogger) log(level, format string, args ...interface{}) {
	if l == nil || l.file == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	fmt.Fprintf(l.file, "[%s] %s: %s\n", timestamp, level, fmt.Sprintf(format, args...))
}

func (l *FileLogger) Debug(format string, args ...interface{}) {
	l.log("DEBUG", format, args...)
}

func (l *FileLogger) Info(format string, args ...interface{}) {
	l.log("INFO", format, args...)
}

func (l *FileLogger) Error(format string, args ...interface{}) {
	l.log("ERROR", format, args...)
}

func (l *FileLogger) Close() error {
	if l != nil && l.file != nil {
		return l.file.Close()
	}
	return nil
}

// NoopLogger does nothing
type NoopLogger struct{}

func (NoopLogger) Debug(format string, args ...interface{}) {}
func (NoopLogger) Info(format string, args ...interface{})  {}
func (NoopLogger) Error(format string, args ...interface{}) {}

// ZapLogger adapts a zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil l yields a no-op zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Named("ax26").Sugar()}
}

func (z *ZapLogger) Debug(format string, args ...interface{}) {
	z.sugar.Debugf(format, args...)
}

func (z *ZapLogger) Info(format string, args ...interface{}) {
	z.sugar.Infof(format, args...)
}

func (z *ZapLogger) Error(format string, args ...interface{}) {
	z.sugar.Errorf(format, args...)
}

// Sync flushes buffered log entries.
func (z *ZapLogger) Sync() error {
	return z.sugar.Sync()
}

// FormatFrameLog formats a frame for logging with data truncation
func FormatFrameLog(direction string, f Frame) string {
	msg := fmt.Sprintf("%s %s %s>%s", direction, FrameTypeName(f.Type), string(f.Source), string(f.Destination))
	if len(f.Body) == 0 {
		return msg
	}

	msg += fmt.Sprintf(", body_size=%d", len(f.Body))
	if len(f.Body) > 64 {
		msg += fmt.Sprintf(", body=%q...[truncated]", f.Body[:64])
	} else {
		msg += fmt.Sprintf(", body=%q", f.Body)
	}
	return msg
}

// LoggingTransport wraps a transport and logs all frames
type LoggingTransport struct {
	Transport
	logger Logger
	name   string
}

func NewLoggingTransport(t Transport, logger Logger, name string) *LoggingTransport {
	return &LoggingTransport{
		Transport: t,
		logger:    logger,
		name:      name,
	}
}

func (lt *LoggingTransport) WriteFrame(frame []byte) error {
	err := lt.Transport.WriteFrame(frame)
	if f, ok := DecodeFrame(frame); ok {
		lt.logger.Debug("%s: %s", lt.name, FormatFrameLog("TX", f))
	} else {
		lt.logger.Debug("%s: TX %d raw bytes", lt.name, len(frame))
	}
	if err != nil {
		lt.logger.Error("%s: write error: %v", lt.name, err)
	}
	return err
}

func (lt *LoggingTransport) ReadFrame() ([]byte, error) {
	frame, err := lt.Transport.ReadFrame()
	if err != nil {
		lt.logger.Debug("%s: read ended: %v", lt.name, err)
		return frame, err
	}
	if f, ok := DecodeFrame(frame); ok {
		lt.logger.Debug("%s: %s", lt.name, FormatFrameLog("RX", f))
	} else {
		lt.logger.Debug("%s: RX %d raw bytes", lt.name, len(frame))
	}
	return frame, nil
}
