package sandbox

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/vibebox/config"
)

// NewExecutor creates an Executor from the application configuration
func NewExecutor(logger *zap.Logger, cfg *config.Config) (*Executor, error) {
	registry := DefaultRegistry()
	for key, lang := range cfg.Languages {
		if err := registry.Override(key, lang.Command, lang.Extension); err != nil {
			return nil, fmt.Errorf("invalid languages.%s: %w", key, err)
		}
	}

	executorConfig := Config{
		TempRoot:       cfg.Sandbox.TempRoot,
		DefaultTimeout: cfg.DefaultTimeout(),
		MaxTimeout:     time.Duration(cfg.Sandbox.MaxTimeoutMs) * time.Millisecond,
		MemoryMB:       cfg.Sandbox.MemoryMB,
		MaxCodeLength:  cfg.Sandbox.MaxCodeLength,
		MaxOutputBytes: cfg.Sandbox.MaxOutputBytes,
		StdinMode:      cfg.Sandbox.StdinMode,
		MaxConcurrent:  cfg.Sandbox.MaxConcurrent,
	}

	return New(logger, executorConfig, WithRegistry(registry)), nil
}
