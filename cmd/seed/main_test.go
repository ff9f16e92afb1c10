package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnvOr_UsesEnvWhenSet(t *testing.T) {
	t.Setenv("SEED_TEST_VAR", "from-env")
	assert.Equal(t, "from-env", envOr("SEED_TEST_VAR", "fallback"))
}

func TestEnvOr_UsesFallbackWhenUnset(t *testing.T) {
	assert.Equal(t, "fallback", envOr("SEED_TEST_VAR_UNSET", "fallback"))
}
