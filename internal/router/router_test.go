package router

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_RouteExactMatch(t *testing.T) {
	r := New(map[string]string{"deepseek": "deepseek-backend", "groq": "groq-backend"}, "deepseek")

	got, err := r.Route("groq")
	require.NoError(t, err)
	assert.Equal(t, "groq-backend", got)
}

func TestRouter_RouteFallsBackWhenUnknown(t *testing.T) {
	r := New(map[string]string{"deepseek": "deepseek-backend"}, "deepseek")

	got, err := r.Route("unknown-engine")
	require.NoError(t, err)
	assert.Equal(t, "deepseek-backend", got)
}

func TestRouter_RouteErrorsWhenNeitherFound(t *testing.T) {
	r := New(map[string]string{"groq": "groq-backend"}, "deepseek")

	_, err := r.Route("unknown-engine")
	assert.Error(t, err)
}

func TestRouter_Has(t *testing.T) {
	r := New(map[string]int{"a": 1}, "a")
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("b"))
}

func TestRouter_Engines(t *testing.T) {
	r := New(map[string]int{"a": 1, "b": 2}, "a")
	names := r.Engines()
	sort.Strings(names)
	assert.Equal(t, []string{"a", "b"}, names)
}
