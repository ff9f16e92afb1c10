package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/dubstream-gateway/internal/domain"
	"github.com/hubenschmidt/dubstream-gateway/internal/orchestrator"
	"github.com/hubenschmidt/dubstream-gateway/internal/trace"
)

// StoreGateway is the subset of *store.Gateway the HTTP layer needs.
type StoreGateway interface {
	CreateTask(ctx context.Context, taskID, transcriptionID, targetLanguage string) error
	GetTask(ctx context.Context, taskID string) (domain.Task, error)
}

type deps struct {
	store      StoreGateway
	orch       *orchestrator.Orchestrator
	traceStore *trace.Store
	hub        *eventHub
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("GET /", d.handleRoot)
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/start_tts", d.handleStartTTS)
	mux.HandleFunc("GET /api/task/{id}/status", d.handleTaskStatus)
	mux.HandleFunc("GET /api/task/{id}/events", d.hub.handleTaskEvents)
	mux.Handle("GET /metrics", promhttp.Handler())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "dubstream-gateway",
		"status":  "ok",
	})
}

type startTTSRequest struct {
	TaskID          string `json:"task_id"`
	TranscriptionID string `json:"transcription_id"`
	TargetLanguage  string `json:"target_language"`
}

type startTTSResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// handleStartTTS kicks off the orchestrator run for an existing task_id in
// the background; the endpoint itself returns immediately. The documented
// contract takes a bare task_id, assuming the row was created out of band;
// transcription_id/target_language are an additive convenience that creates
// the row on the fly when the task_id given is not yet known.
func (d deps) handleStartTTS(w http.ResponseWriter, r *http.Request) {
	var req startTTSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TaskID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id is required"})
		return
	}

	if _, err := d.store.GetTask(r.Context(), req.TaskID); err != nil {
		if req.TranscriptionID == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown task_id; transcription_id is required to create it"})
			return
		}
		if req.TargetLanguage == "" {
			req.TargetLanguage = "en"
		}
		if err := d.store.CreateTask(r.Context(), req.TaskID, req.TranscriptionID, req.TargetLanguage); err != nil {
			slog.Error("create task failed", "task_id", req.TaskID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create task"})
			return
		}
	}

	go func() {
		ctx := context.Background()
		if err := d.orch.Run(ctx, req.TaskID); err != nil {
			slog.Error("orchestrator run failed", "task_id", req.TaskID, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, startTTSResponse{TaskID: req.TaskID, Status: string(domain.TaskProcessing)})
}

func (d deps) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	task, err := d.store.GetTask(r.Context(), taskID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "task not found"})
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
