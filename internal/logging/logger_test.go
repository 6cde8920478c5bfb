package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		development bool
		debug       bool
	}{
		{name: "development", development: true, debug: true},
		{name: "production", development: false, debug: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var entries []zapcore.Entry
			logger, err := New(tt.development, zap.Hooks(func(e zapcore.Entry) error {
				entries = append(entries, e)
				return nil
			}))
			require.NoError(t, err)
			defer logger.Sync() //nolint:errcheck // best-effort flush

			assert.Equal(t, tt.debug, logger.Core().Enabled(zapcore.DebugLevel))
			logger.Info("logger ready")
			require.Len(t, entries, 1)
			assert.Equal(t, "scraper", entries[0].LoggerName)
		})
	}
}
