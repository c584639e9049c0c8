// Package setup initializes a queue root directory.
package setup

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/harekaze/dirq/internal/config"
)

// Run creates the queue root layout and writes a default config.yaml. It
// refuses to touch a root that already holds a config file.
func Run(root string, maxConcurrency int) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve queue root: %w", err)
	}

	configPath := filepath.Join(absRoot, config.FileName)
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	dirs := []string{
		"inbox",
		"progress",
		"finished",
		"failed",
		"locks",
		"logs",
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(absRoot, d), 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", d, err)
		}
	}

	cfg := config.Default()
	if maxConcurrency > 0 {
		cfg.Worker.MaxConcurrency = maxConcurrency
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	content, err := yamlv3.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("write %s: %w", config.FileName, err)
	}

	return nil
}
