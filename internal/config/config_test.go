package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvStr_FallbackWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", envStr("CONFIG_TEST_STR_UNSET", "fallback"))
}

func TestEnvStr_UsesSetValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_STR", "value")
	assert.Equal(t, "value", envStr("CONFIG_TEST_STR", "fallback"))
}

func TestEnvInt_ParsesValidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "42")
	assert.Equal(t, 42, envInt("CONFIG_TEST_INT", 7))
}

func TestEnvInt_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT_BAD", "not-a-number")
	assert.Equal(t, 7, envInt("CONFIG_TEST_INT_BAD", 7))
}

func TestEnvFloat_ParsesValidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_FLOAT", "1.25")
	assert.InDelta(t, 1.25, envFloat("CONFIG_TEST_FLOAT", 0), 1e-9)
}

func TestEnvFloat_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_FLOAT_BAD", "nope")
	assert.InDelta(t, 0.5, envFloat("CONFIG_TEST_FLOAT_BAD", 0.5), 1e-9)
}

func TestEnvBool_ParsesValidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_BOOL", "true")
	assert.True(t, envBool("CONFIG_TEST_BOOL", false))
}

func TestEnvBool_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_BOOL_BAD", "maybe")
	assert.True(t, envBool("CONFIG_TEST_BOOL_BAD", true))
}

func TestEnvDuration_ParsesValidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_DURATION", "5s")
	assert.Equal(t, 5*time.Second, envDuration("CONFIG_TEST_DURATION", time.Second))
}

func TestEnvDuration_FallsBackOnInvalidValue(t *testing.T) {
	t.Setenv("CONFIG_TEST_DURATION_BAD", "not-a-duration")
	assert.Equal(t, time.Second, envDuration("CONFIG_TEST_DURATION_BAD", time.Second))
}

func TestLoadSimplifierBackends_SkipsEnginesWithoutURL(t *testing.T) {
	t.Setenv("DEEPSEEK_URL", "")
	t.Setenv("GEMINI_URL", "")
	t.Setenv("GROK_URL", "")
	t.Setenv("GROQ_URL", "https://api.groq.com/openai/v1/")
	t.Setenv("GROQ_API_KEY", "secret")
	t.Setenv("GROQ_MODEL", "llama-3.1-70b")

	backends := loadSimplifierBackends()
	if assert.Len(t, backends, 1) {
		assert.Equal(t, "groq", backends[0].Name)
		assert.Equal(t, "https://api.groq.com/openai/v1/", backends[0].URL)
		assert.Equal(t, "secret", backends[0].APIKey)
		assert.Equal(t, "llama-3.1-70b", backends[0].Model)
	}
}
