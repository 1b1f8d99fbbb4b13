package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// TestLogger installs a debug console logger as the global logger and returns it named
// after the test. Background goroutines may outlive the test, so it does not log through t.
func TestLogger(tb testing.TB) *zap.Logger {
	require.NoError(tb, SetGlobalLogger("debug", "capital", "console", nil))
	return zap.L().Named(tb.Name())
}
