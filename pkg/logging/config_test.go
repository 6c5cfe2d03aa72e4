package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neuromorphicsystems/undrdg/pkg/logging"
)

func TestConfigFunctions(t *testing.T) {
	originalLogger := *logging.Default()
	originalLevel := zerolog.GlobalLevel()
	defer func() {
		logging.SetDefault(originalLogger)
		zerolog.SetGlobalLevel(originalLevel)
	}()

	t.Run("DefaultConfig returns sensible defaults", func(t *testing.T) {
		cfg := logging.DefaultConfig()
		require.NotNil(t, cfg)
		assert.Equal(t, "info", cfg.Level)
		assert.Equal(t, "auto", cfg.Format)
		assert.Equal(t, "stderr", cfg.Output)
		assert.False(t, cfg.AddCaller)
	})

	t.Run("NewLoggerFromConfig writes JSON to a file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.txt")
		logger := logging.NewLoggerFromConfig(&logging.Config{
			Level:  "debug",
			Format: "json",
			Output: path,
			Fields: map[string]any{"dataset": "nmnist"},
		})
		logger.Info().Msg("test message")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "test message")
		assert.Contains(t, string(content), `"dataset":"nmnist"`)
	})

	t.Run("Configure filters below level", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.txt")
		logging.Configure(&logging.Config{Level: "warn", Format: "json", Output: path})

		logging.Debug().Msg("debug message")
		logging.Info().Msg("info message")
		logging.Warn().Msg("warn message")
		logging.Error().Msg("error message")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		output := string(content)
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})

	t.Run("console format uses short level names", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "log.txt")
		logger := logging.NewLoggerFromConfig(&logging.Config{Level: "info", Format: "console", Output: path, NoColor: true})
		logger.Info().Str("key", "value").Msg("console test")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "console test")
		assert.Contains(t, string(content), "INF")
	})

	t.Run("discard output with auto format does not panic", func(t *testing.T) {
		logger := logging.NewLoggerFromConfig(&logging.Config{Level: "info", Format: "auto", Output: "discard"})
		logger.Info().Msg("dropped")
	})
}

func TestContextLoggers(t *testing.T) {
	tl := logging.NewTestLogger(t)

	ctx := logging.WithLogger(t.Context(), tl.Logger)
	ctx = logging.WithDataset(ctx, "dvs09")
	ctx = logging.WithPath(ctx, "input/a.dat")
	ctx = logging.WithFields(ctx, map[string]any{"index": 3})

	logging.FromContext(ctx).Info().Msg("converted")

	tl.AssertContains(t, `"dataset":"dvs09"`)
	tl.AssertContains(t, `"path":"input/a.dat"`)
	tl.AssertContains(t, `"index":3`)
	assert.Len(t, tl.Lines(), 1)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	tl := logging.CaptureLoggingForTest(t)

	logging.FromContext(t.Context()).Info().Msg("fallback")
	tl.AssertContains(t, "fallback")
}
