package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/vibebox/config"
)

func TestNewExecutorFromConfig(t *testing.T) {
	base := func() *config.Config {
		return &config.Config{
			Sandbox: config.SandboxConfig{
				TempRoot:         "/srv/sandbox",
				DefaultTimeoutMs: 5000,
				MaxTimeoutMs:     20000,
				MemoryMB:         256,
				MaxCodeLength:    1000,
				MaxOutputBytes:   4096,
				StdinMode:        config.StdinModeFile,
				MaxConcurrent:    4,
			},
		}
	}

	t.Run("MapsSandboxSettings", func(t *testing.T) {
		executor, err := NewExecutor(zaptest.NewLogger(t), base())
		require.NoError(t, err)

		assert.Equal(t, Config{
			TempRoot:       "/srv/sandbox",
			DefaultTimeout: 5 * time.Second,
			MaxTimeout:     20 * time.Second,
			MemoryMB:       256,
			MaxCodeLength:  1000,
			MaxOutputBytes: 4096,
			StdinMode:      StdinFile,
			MaxConcurrent:  4,
		}, executor.config)
		assert.NotNil(t, executor.admission)
		assert.Equal(t, DefaultRegistry().Keys(), executor.SupportedLanguages())
	})

	t.Run("AppliesLanguageOverrides", func(t *testing.T) {
		cfg := base()
		cfg.Languages = map[string]config.Language{
			"python": {Command: "python3 -I {file}"},
		}
		executor, err := NewExecutor(zaptest.NewLogger(t), cfg)
		require.NoError(t, err)

		profile, ok := executor.registry.Lookup("python")
		require.True(t, ok)
		assert.Equal(t, "python3 -I {file}", profile.CommandTemplate)
	})

	t.Run("RejectsUnknownLanguage", func(t *testing.T) {
		cfg := base()
		cfg.Languages = map[string]config.Language{
			"cobol": {Command: "cobc {file}"},
		}
		_, err := NewExecutor(zaptest.NewLogger(t), cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "languages.cobol")
	})
}
