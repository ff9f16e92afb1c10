package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
)

type fakeHTTPStore struct {
	task    domain.Task
	getErr  error
	created []string
}

func (f *fakeHTTPStore) CreateTask(ctx context.Context, taskID, transcriptionID, targetLanguage string) error {
	f.created = append(f.created, taskID)
	return nil
}

func (f *fakeHTTPStore) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return f.task, f.getErr
}

func TestHandleHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	handleHealth(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHandleRoot(t *testing.T) {
	d := deps{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	d.handleRoot(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dubstream-gateway", body["service"])
}

func TestHandleStartTTS_RejectsInvalidBody(t *testing.T) {
	d := deps{}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/start_tts", bytes.NewReader([]byte("not json")))
	d.handleStartTTS(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStartTTS_RejectsMissingTaskID(t *testing.T) {
	d := deps{}
	rec := httptest.NewRecorder()
	body, _ := json.Marshal(startTTSRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/start_tts", bytes.NewReader(body))
	d.handleStartTTS(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStartTTS_RejectsUnknownTaskWithoutTranscriptionID(t *testing.T) {
	store := &fakeHTTPStore{getErr: errors.New("not found")}
	d := deps{store: store}
	rec := httptest.NewRecorder()
	body, _ := json.Marshal(startTTSRequest{TaskID: "task-1"})
	req := httptest.NewRequest(http.MethodPost, "/api/start_tts", bytes.NewReader(body))
	d.handleStartTTS(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTaskStatus_NotFound(t *testing.T) {
	store := &fakeHTTPStore{getErr: errors.New("not found")}
	d := deps{store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/task/task-1/status", nil)
	req.SetPathValue("id", "task-1")
	rec := httptest.NewRecorder()
	d.handleTaskStatus(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleTaskStatus_ReturnsTask(t *testing.T) {
	store := &fakeHTTPStore{task: domain.Task{ID: "task-1", Status: domain.TaskCompleted}}
	d := deps{store: store}

	req := httptest.NewRequest(http.MethodGet, "/api/task/task-1/status", nil)
	req.SetPathValue("id", "task-1")
	rec := httptest.NewRecorder()
	d.handleTaskStatus(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var got domain.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "task-1", got.ID)
}
