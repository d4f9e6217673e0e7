package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/annelo/go-voxel-engine/internal/engine"
)

func TestStatus_ExitCode(t *testing.T) {
	// Потеря сервера — не ошибка процесса
	assert.Equal(t, 0, engine.StatusExit.ExitCode())
	assert.Equal(t, 0, engine.StatusServerDisconnect.ExitCode())
	assert.Equal(t, 0, engine.StatusServerTimeout.ExitCode())

	assert.Equal(t, 1, engine.StatusGraphicsInitError.ExitCode())
	assert.Equal(t, 1, engine.StatusCouldNotConnect.ExitCode())
	assert.Equal(t, 1, engine.StatusNetworkInitError.ExitCode())
}

func TestStatus_Terminal(t *testing.T) {
	assert.False(t, engine.StatusOK.Terminal())
	assert.True(t, engine.StatusExit.Terminal())
	assert.True(t, engine.StatusCouldNotConnect.Terminal())
}
