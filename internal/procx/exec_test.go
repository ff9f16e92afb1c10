package procx

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/dubstream-gateway/internal/perr"
)

func TestRun_SuccessReturnsStdout(t *testing.T) {
	r := NewRunner(2 * time.Second)
	out, err := r.Run(context.Background(), "echo", "-n", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))
}

func TestRun_NonZeroExitIsError(t *testing.T) {
	r := NewRunner(2 * time.Second)
	_, err := r.Run(context.Background(), "false")
	assert.Error(t, err)
}

func TestRun_TimeoutWrapsSentinel(t *testing.T) {
	r := NewRunner(50 * time.Millisecond)
	_, err := r.Run(context.Background(), "sleep", "2")
	require.Error(t, err)
	assert.True(t, errors.Is(err, perr.Timeout))
}

func TestRunPiped_EchoesStdinToStdout(t *testing.T) {
	r := NewRunner(2 * time.Second)
	out, err := r.RunPiped(context.Background(), []byte("piped data"), "cat")
	require.NoError(t, err)
	assert.Equal(t, "piped data", string(out))
}

func TestRunPiped_NonZeroExitIsError(t *testing.T) {
	r := NewRunner(2 * time.Second)
	_, err := r.RunPiped(context.Background(), nil, "false")
	assert.Error(t, err)
}
