package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetup(t *testing.T) {
	t.Cleanup(func() { zap.ReplaceGlobals(zap.NewNop()) })

	log, err := Setup("warn", "json")
	require.NoError(t, err)
	assert.Same(t, log, zap.L())
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, log.Core().Enabled(zapcore.WarnLevel))

	_, err = Setup("debug", "console")
	assert.NoError(t, err)

	_, err = Setup("loud", "console")
	assert.Error(t, err)

	_, err = Setup("info", "xml")
	assert.Error(t, err)
}
