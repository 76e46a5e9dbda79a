package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	v := viper.New()
	v.Set("logger.level", "WARN")
	v.Set("logger.format", "json")
	v.Set("logger.destination", filepath.Join(t.TempDir(), "argo.log"))
	v.Set("app.name", "argo-lens")
	v.Set("app.version", "1.0.0")

	l, err := NewLogger(v)
	require.NoError(t, err)

	require.False(t, l.Core().Enabled(zap.InfoLevel))
	require.True(t, l.Core().Enabled(zap.WarnLevel))

	l.Warn("company file restored from backup")
	require.NoError(t, l.Sync())

	data, err := os.ReadFile(v.GetString("logger.destination"))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "{"))
	require.Contains(t, string(data), `"app_name":"argo-lens"`)
	require.Contains(t, string(data), `"msg":"company file restored from backup"`)
}

func TestSafeLevel(t *testing.T) {
	for in, exp := range map[string]zap.AtomicLevel{
		"":        zap.NewAtomicLevelAt(zap.InfoLevel),
		"garbage": zap.NewAtomicLevelAt(zap.InfoLevel),
		"debug":   zap.NewAtomicLevelAt(zap.DebugLevel),
		"Error":   zap.NewAtomicLevelAt(zap.ErrorLevel),
	} {
		require.Equal(t, exp.Level(), safeLevel(in).Level(), in)
	}
}
