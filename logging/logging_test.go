package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-engine/logging"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	prod, err := logging.New("warn", "production")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zap.InfoLevel))
	assert.True(t, prod.Core().Enabled(zap.ErrorLevel))

	dev, err := logging.New("debug", "development")
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zap.DebugLevel))

	_, err = logging.New("loud", "development")
	assert.Error(t, err)
}
