// Package config loads the queue root configuration file and applies
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	yamlv3 "gopkg.in/yaml.v3"
)

// FileName is the configuration file inside the queue root.
const FileName = "config.yaml"

// SocketName is the daemon control socket inside the queue root.
const SocketName = "daemon.sock"

type Config struct {
	Queue   QueueConfig   `yaml:"queue"`
	Worker  WorkerConfig  `yaml:"worker"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

// QueueConfig names the four state directories. Relative paths are resolved
// against the queue root.
type QueueConfig struct {
	InboxDir    string `yaml:"inbox_dir" env:"DIRQ_INBOX_DIR"`
	ProgressDir string `yaml:"progress_dir" env:"DIRQ_PROGRESS_DIR"`
	FinishedDir string `yaml:"finished_dir" env:"DIRQ_FINISHED_DIR"`
	FailedDir   string `yaml:"failed_dir" env:"DIRQ_FAILED_DIR"`
}

type WorkerConfig struct {
	MaxConcurrency int `yaml:"max_concurrency" env:"DIRQ_MAX_CONCURRENCY"`
	// Command is the argv executed per job. The payload is piped to stdin
	// and job metadata is passed in the environment. Empty means jobs are
	// resolved as finished without running anything.
	Command []string `yaml:"command"`
}

type DaemonConfig struct {
	ShutdownTimeoutSec int `yaml:"shutdown_timeout_sec" env:"DIRQ_SHUTDOWN_TIMEOUT_SEC"`
}

type LoggingConfig struct {
	Level         string `yaml:"level" env:"DIRQ_LOG_LEVEL"`
	AuditEnabled  bool   `yaml:"audit_enabled" env:"DIRQ_AUDIT_ENABLED"`
	AuditMaxBytes int64  `yaml:"audit_max_bytes"`
}

// Default returns the configuration used when no file or overrides exist.
func Default() Config {
	return Config{
		Queue: QueueConfig{
			InboxDir:    "inbox",
			ProgressDir: "progress",
			FinishedDir: "finished",
			FailedDir:   "failed",
		},
		Worker: WorkerConfig{
			MaxConcurrency: 4,
		},
		Daemon: DaemonConfig{
			ShutdownTimeoutSec: 30,
		},
		Logging: LoggingConfig{
			Level:        "info",
			AuditEnabled: true,
		},
	}
}

// Load reads <root>/config.yaml over the defaults, applies DIRQ_* environment
// overrides, resolves relative directories against root, and validates the
// result. A missing config file is not an error.
func Load(root string) (Config, error) {
	cfg := Default()

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err == nil {
		if err := yamlv3.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	cfg.resolve(root)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) resolve(root string) {
	for _, dir := range []*string{
		&c.Queue.InboxDir,
		&c.Queue.ProgressDir,
		&c.Queue.FinishedDir,
		&c.Queue.FailedDir,
	} {
		if *dir != "" && !filepath.IsAbs(*dir) {
			*dir = filepath.Join(root, *dir)
		}
	}
}

// Validate checks invariants that would otherwise surface as runtime faults.
func (c Config) Validate() error {
	if c.Worker.MaxConcurrency <= 0 {
		return fmt.Errorf("worker.max_concurrency must be positive, got %d", c.Worker.MaxConcurrency)
	}
	dirs := map[string]string{
		"queue.inbox_dir":    c.Queue.InboxDir,
		"queue.progress_dir": c.Queue.ProgressDir,
		"queue.finished_dir": c.Queue.FinishedDir,
		"queue.failed_dir":   c.Queue.FailedDir,
	}
	seen := make(map[string]string, len(dirs))
	for key, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("%s must not be empty", key)
		}
		if prev, ok := seen[dir]; ok {
			return fmt.Errorf("%s and %s point at the same directory %s", prev, key, dir)
		}
		seen[dir] = key
	}
	return nil
}
