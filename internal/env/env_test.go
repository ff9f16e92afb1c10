package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStr_UsesEnvWhenSet(t *testing.T) {
	t.Setenv("ENV_TEST_VAR", "value")
	assert.Equal(t, "value", Str("ENV_TEST_VAR", "fallback"))
}

func TestStr_UsesFallbackWhenUnsetOrEmpty(t *testing.T) {
	assert.Equal(t, "fallback", Str("ENV_TEST_VAR_UNSET", "fallback"))

	t.Setenv("ENV_TEST_VAR_EMPTY", "")
	assert.Equal(t, "fallback", Str("ENV_TEST_VAR_EMPTY", "fallback"))
}
