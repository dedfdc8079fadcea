// Package api exposes the HTTP submission surface: a thin adapter over the
// task coordinator with no lifecycle logic of its own.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/ViNN280801/SominAI-task/internal/task"
)

// CrawlRequest is the POST /crawl payload.
type CrawlRequest struct {
	Keyword string `json:"keyword" validate:"required,min=1"`
	Region  string `json:"region"`
}

// CrawlResponse acknowledges an accepted submission.
type CrawlResponse struct {
	TaskID string `json:"task_id"`
}

// Handler serves the task submission and polling endpoints.
type Handler struct {
	tasks    *task.Coordinator
	validate *validator.Validate
	logger   *slog.Logger
}

func NewHandler(tasks *task.Coordinator, logger *slog.Logger) *Handler {
	return &Handler{
		tasks:    tasks,
		validate: validator.New(),
		logger:   logger,
	}
}

// Router builds the chi router with the standard middleware stack.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Post("/crawl", h.Crawl)
	r.Get("/result/{task_id}", h.Result)
	r.Delete("/task/{task_id}", h.Delete)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			h.logger.Error("failed to write health response", "error", err)
		}
	})
	return r
}

// Crawl handles POST /crawl: validates the keyword, creates the task and
// returns its id. Submission-time failures are returned to the caller
// immediately; nothing is silently dropped.
func (h *Handler) Crawl(w http.ResponseWriter, r *http.Request) {
	var req CrawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Missing 'keyword' in request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Missing 'keyword' in request body")
		return
	}

	id, err := h.tasks.Create(r.Context(), req.Keyword, req.Region)
	if err != nil {
		if errors.Is(err, task.ErrInvalidTaskData) {
			respondError(w, http.StatusBadRequest, "Missing 'keyword' in request body")
			return
		}
		h.logger.Error("task submission failed", "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to enqueue task")
		return
	}
	respondJSON(w, http.StatusOK, CrawlResponse{TaskID: id})
}

// Result handles GET /result/{task_id}: returns the task record or 404.
func (h *Handler) Result(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	rec, err := h.tasks.Status(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			respondError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, task.ErrInvalidTaskData):
			h.logger.Error("stored task record invalid", "task_id", id)
			respondError(w, http.StatusInternalServerError, "Task data is invalid")
		default:
			h.logger.Error("task status fetch failed", "task_id", id, "error", err)
			respondError(w, http.StatusInternalServerError, "Failed to fetch task status")
		}
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /task/{task_id}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "task_id")
	ok, err := h.tasks.Delete(r.Context(), id)
	if err != nil {
		h.logger.Error("task deletion failed", "task_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete task")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "Task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorResponse{Error: message})
}
