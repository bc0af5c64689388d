package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `env:"TEST_CFG_PORT" envDefault:"8080"`
	Host     string `env:"TEST_CFG_HOST" envDefault:"localhost"`
	LogLevel string `env:"TEST_CFG_LOG_LEVEL" envDefault:"info"`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "9090")
	t.Setenv("TEST_CFG_HOST", "0.0.0.0")

	var cfg testConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "0.0.0.0", cfg.Host)
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "1111")
	t.Setenv("PROMO_TEST_CFG_PORT", "2222")

	var cfg testConfig
	require.NoError(t, LoadWithPrefix(&cfg, "PROMO_"))

	assert.Equal(t, 2222, cfg.Port)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("TEST_CFG_PORT", "not-a-number")

	var cfg testConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type validatedConfig struct {
	Secret string `env:"TEST_CFG_SECRET" envDefault:"short"`
}

func (c *validatedConfig) Validate() error {
	if len(c.Secret) < 8 {
		return errors.New("secret too short")
	}
	return nil
}

func TestLoad_RunsValidate(t *testing.T) {
	var cfg validatedConfig
	err := Load(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret too short")

	t.Setenv("TEST_CFG_SECRET", "long-enough-secret")
	var ok validatedConfig
	assert.NoError(t, Load(&ok))
}
