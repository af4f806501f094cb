package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_ENV_KEY", "value")
	assert.Equal(t, "value", GetEnv("TEST_ENV_KEY", "fallback"))
	assert.Equal(t, "fallback", GetEnv("TEST_ENV_MISSING", "fallback"))
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_ENV_INT", "42")
	assert.Equal(t, 42, GetEnvInt("TEST_ENV_INT", 7))
	assert.Equal(t, 7, GetEnvInt("TEST_ENV_INT_MISSING", 7))

	t.Setenv("TEST_ENV_BAD", "not-a-number")
	assert.Equal(t, 7, GetEnvInt("TEST_ENV_BAD", 7))
}
