package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subkit/subkit/pkg/config"
)

type testConfig struct {
	Host string `env:"TEST_CONFIG_HOST" envDefault:"localhost"`
	Port int    `env:"TEST_CONFIG_PORT" envDefault:"8080"`
	Name string `env:"TEST_CONFIG_NAME,required"`
}

func TestLoad(t *testing.T) {
	t.Run("populates struct from environment", func(t *testing.T) {
		t.Setenv("TEST_CONFIG_HOST", "example.com")
		t.Setenv("TEST_CONFIG_PORT", "9090")
		t.Setenv("TEST_CONFIG_NAME", "svc")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "example.com", cfg.Host)
		assert.Equal(t, 9090, cfg.Port)
		assert.Equal(t, "svc", cfg.Name)
	})

	t.Run("applies defaults", func(t *testing.T) {
		t.Setenv("TEST_CONFIG_NAME", "svc")

		var cfg testConfig
		require.NoError(t, config.Load(&cfg))

		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, 8080, cfg.Port)
	})

	t.Run("fails on missing required variable", func(t *testing.T) {
		var cfg testConfig
		err := config.Load(&cfg)
		require.Error(t, err)
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("rejects nil pointer", func(t *testing.T) {
		err := config.Load[testConfig](nil)
		assert.ErrorIs(t, err, config.ErrNilPointer)
	})
}

func TestMustLoad(t *testing.T) {
	t.Run("panics on missing required variable", func(t *testing.T) {
		var cfg testConfig
		assert.Panics(t, func() {
			config.MustLoad(&cfg)
		})
	})
}
