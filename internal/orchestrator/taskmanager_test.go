package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskManager_StartClaimsAndRejectsDuplicate(t *testing.T) {
	m := NewTaskManager()

	assert.True(t, m.Start("task-1"))
	assert.False(t, m.Start("task-1"))
	assert.True(t, m.Running("task-1"))
}

func TestTaskManager_FinishReleasesForReclaim(t *testing.T) {
	m := NewTaskManager()

	require := assert.New(t)
	require.True(m.Start("task-1"))
	m.Finish("task-1")
	require.False(m.Running("task-1"))
	require.True(m.Start("task-1"))
}

func TestTaskManager_IndependentTasksDoNotInterfere(t *testing.T) {
	m := NewTaskManager()
	assert.True(t, m.Start("task-1"))
	assert.True(t, m.Start("task-2"))
	assert.True(t, m.Running("task-1"))
	assert.True(t, m.Running("task-2"))
}
