package ax26

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds connection configuration.
type Config struct {
	// Packet limits (bytes, including header)
	MaxPacketLength int `yaml:"max_packet_length"`
	MinPacketLength int `yaml:"min_packet_length"`

	// Retry bounds. A value of N allows N retransmissions after the first try.
	SendAttempts    int `yaml:"send_attempts"`
	RecvAttempts    int `yaml:"recv_attempts"`
	ConnectAttempts int `yaml:"connect_attempts"`

	// Timeouts
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
	ChunkTimeout    time.Duration `yaml:"chunk_timeout"`
	TransferTimeout time.Duration `yaml:"transfer_timeout"` // 0 = unbounded

	// zlib level used by the default compressor; 0 selects best compression
	CompressionLevel int `yaml:"compression_level"`

	// Progress update interval
	ProgressInterval time.Duration `yaml:"progress_interval"`
}

// DefaultConfig returns a default configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxPacketLength:  256,
		MinPacketLength:  5,
		SendAttempts:     5,
		RecvAttempts:     5,
		ConnectAttempts:  5,
		ConnectTimeout:   30 * time.Second,
		ChunkTimeout:     10 * time.Second,
		TransferTimeout:  0,
		CompressionLevel: 9,
		ProgressInterval: 100 * time.Millisecond,
	}
}

// Validate checks the configuration for values the protocol cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.MaxPacketLength <= HeaderOverhead:
		return NewError(KindInvalidConfig, fmt.Sprintf("max packet length %d leaves no room for data", c.MaxPacketLength))
	case c.MinPacketLength < 0 || c.MinPacketLength > c.MaxPacketLength:
		return NewError(KindInvalidConfig, fmt.Sprintf("min packet length %d out of range", c.MinPacketLength))
	case c.SendAttempts < 0, c.RecvAttempts < 0, c.ConnectAttempts < 0:
		return NewError(KindInvalidConfig, "attempt counts must not be negative")
	case c.ConnectTimeout <= 0, c.ChunkTimeout <= 0:
		return NewError(KindInvalidConfig, "connect and chunk timeouts must be positive")
	case c.TransferTimeout < 0:
		return NewError(KindInvalidConfig, "transfer timeout must not be negative")
	case c.CompressionLevel < -2 || c.CompressionLevel > 9:
		return NewError(KindInvalidConfig, fmt.Sprintf("compression level %d out of range", c.CompressionLevel))
	}
	return nil
}

// ChunkBound returns the maximum number of payload bytes per chunk for a
// frame between local and remote.
func (c *Config) ChunkBound(local, remote StationID) int {
	return c.MaxPacketLength - (len(local) + len(remote) + HeaderOverhead)
}

// checkChunkBound fails if no chunk, including the terminator, fits a frame
// between local and remote.
func (c *Config) checkChunkBound(local, remote StationID) error {
	if bound := c.ChunkBound(local, remote); bound < len(DataEnd) {
		return NewError(KindInvalidConfig, fmt.Sprintf(
			"chunk bound %d for %s>%s is too small (max packet length %d)",
			bound, string(local), string(remote), c.MaxPacketLength))
	}
	return nil
}

// LoadConfig loads configuration from a YAML file. A missing file yields the
// defaults. AX26_* environment variables override file values.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	ints := map[string]*int{
		"AX26_MAX_PACKET_LENGTH": &c.MaxPacketLength,
		"AX26_MIN_PACKET_LENGTH": &c.MinPacketLength,
		"AX26_SEND_ATTEMPTS":     &c.SendAttempts,
		"AX26_RECV_ATTEMPTS":     &c.RecvAttempts,
		"AX26_CONNECT_ATTEMPTS":  &c.ConnectAttempts,
		"AX26_COMPRESSION_LEVEL": &c.CompressionLevel,
	}
	for name, dst := range ints {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = n
	}

	durations := map[string]*time.Duration{
		"AX26_CONNECT_TIMEOUT":  &c.ConnectTimeout,
		"AX26_CHUNK_TIMEOUT":    &c.ChunkTimeout,
		"AX26_TRANSFER_TIMEOUT": &c.TransferTimeout,
	}
	for name, dst := range durations {
		v := os.Getenv(name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		*dst = d
	}
	return nil
}
