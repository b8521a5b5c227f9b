package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/SanjayB2005/TaskManagement/internal/log"
	"github.com/SanjayB2005/TaskManagement/pkg/lifecycle"
	"github.com/SanjayB2005/TaskManagement/pkg/models"
	"github.com/SanjayB2005/TaskManagement/pkg/service"
	"github.com/pkg/errors"
)

// TaskService is what the handlers need from the service layer.
type TaskService interface {
	CreateTask(ctx context.Context, in models.NewTask) (models.Task, error)
	ListTasks(ctx context.Context, filter service.Filter) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (models.Task, error)
	UpdateTask(ctx context.Context, id string, patch models.TaskPatch) (models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	RunTimeoutSweep(ctx context.Context, thresholdMinutes int) (lifecycle.Summary, error)
	Stats(ctx context.Context) (service.Stats, error)
	Health(ctx context.Context) service.Health
}

// NewHandler builds the REST API. Every request gets requestTimeout to
// finish its store work; zero means no limit.
func NewHandler(svc TaskService, requestTimeout time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler(svc))
	mux.HandleFunc("GET /todos", listTasksHandler(svc))
	mux.HandleFunc("POST /todos", createTaskHandler(svc))
	mux.HandleFunc("GET /todos/check-timeout", checkTimeoutHandler(svc))
	mux.HandleFunc("GET /todos/stats", statsHandler(svc))
	mux.HandleFunc("GET /todos/{id}", getTaskHandler(svc))
	mux.HandleFunc("PUT /todos/{id}", updateTaskHandler(svc))
	mux.HandleFunc("DELETE /todos/{id}", deleteTaskHandler(svc))

	return accessLog(withCORS(withTimeout(requestTimeout, mux)))
}

// StartServer serves handler on addr until ctx is cancelled, then drains
// in-flight requests for up to shutdownTimeout.
func StartServer(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.GetLogger().Infof("Starting kanban server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	log.GetLogger().Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}

func healthHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := svc.Health(r.Context())
		status := http.StatusOK
		if !health.OK() {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, health)
	}
}

func listTasksHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := service.Filter{
			Status: r.URL.Query().Get("status"),
			Query:  r.URL.Query().Get("q"),
		}
		tasks, err := svc.ListTasks(r.Context(), filter)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, tasks)
	}
}

func createTaskHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in models.NewTask
		if err := decodeBody(r, &in); err != nil {
			writeError(w, err)
			return
		}
		task, err := svc.CreateTask(r.Context(), in)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, task)
	}
}

func getTaskHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		task, err := svc.GetTask(r.Context(), r.PathValue("id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func updateTaskHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch models.TaskPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, err)
			return
		}
		task, err := svc.UpdateTask(r.Context(), r.PathValue("id"), patch)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, task)
	}
}

func deleteTaskHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.DeleteTask(r.Context(), r.PathValue("id")); err != nil {
			writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func checkTimeoutHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		threshold := service.DefaultThresholdMinutes
		if raw := r.URL.Query().Get("maxDuration"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeMessage(w, http.StatusBadRequest, "maxDuration must be a whole number of minutes")
				return
			}
			threshold = n
		}
		summary, err := svc.RunTimeoutSweep(r.Context(), threshold)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func statsHandler(svc TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

type badRequest struct{ msg string }

func (e badRequest) Error() string { return e.msg }

func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return badRequest{"request body is required"}
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return badRequest{"invalid JSON body: " + err.Error()}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeError maps service errors onto status codes. Internal details are
// logged, not returned.
func writeError(w http.ResponseWriter, err error) {
	var bErr badRequest
	switch {
	case service.IsValidation(err):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &bErr):
		writeMessage(w, http.StatusBadRequest, bErr.Error())
	case errors.Is(err, service.ErrNotFound):
		writeMessage(w, http.StatusNotFound, "Task not found")
	case errors.Is(err, context.DeadlineExceeded):
		log.GetLogger().Errorf("Request timed out: %v", err)
		writeMessage(w, http.StatusServiceUnavailable, "Request timed out")
	case errors.Is(err, service.ErrStoreUnavailable):
		log.GetLogger().Errorf("Store unavailable: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Database unavailable")
	default:
		log.GetLogger().Errorf("Request failed: %v", err)
		writeMessage(w, http.StatusInternalServerError, "Internal server error")
	}
}
