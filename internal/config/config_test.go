package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interactive-quiz/session-engine/internal/config"
)

func TestUse_LoadsDefaultsAndRequiredFields(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)

	require.NoError(t, os.Setenv("API_SECRET", "shh"))
	t.Cleanup(func() { _ = os.Unsetenv("API_SECRET") })

	cfg := config.Use()

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "shh", cfg.APISecret)
	assert.False(t, cfg.IsProduction())

	// Second call returns the cached singleton, not a fresh parse.
	assert.Same(t, cfg, config.Use())
}

func TestUse_PanicsWithoutRequiredSecret(t *testing.T) {
	config.Reset()
	t.Cleanup(config.Reset)
	require.NoError(t, os.Unsetenv("API_SECRET"))

	assert.Panics(t, func() {
		config.Use()
	})
}
