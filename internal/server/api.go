package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"dojotap/internal/dojo"
	"dojotap/internal/loader"
	"dojotap/internal/models"
	"dojotap/internal/prefs"
	"dojotap/internal/prefsync"
	"dojotap/internal/shared"
	"dojotap/internal/storage"
)

// SubmissionRecorder persists successful submissions for local history. The
// SQLite store implements it; front-ends running without a database pass nil.
type SubmissionRecorder interface {
	RecordSubmission(req models.SubmitProgressRequest, newCount int) error
}

// APIHandler serves the /api surface of the local proxy.
type APIHandler struct {
	client  dojo.Client
	loader  *loader.Loader
	prefs   *prefs.Store
	engine  *prefsync.Engine
	history SubmissionRecorder
	logger  *log.Logger
}

// NewAPIHandler wires the proxy endpoints over the core collaborators.
// history may be nil when no local database is configured.
func NewAPIHandler(client dojo.Client, ld *loader.Loader, ps *prefs.Store, engine *prefsync.Engine, history SubmissionRecorder, logger *log.Logger) *APIHandler {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &APIHandler{
		client:  client,
		loader:  ld,
		prefs:   ps,
		engine:  engine,
		history: history,
		logger:  logger,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *APIHandler) Routes() []string {
	return []string{
		"/api/health",
		"/api/bootstrap",
		"/api/progress",
		"/api/preferences",
		"/api/preferences/pin",
		"/api/preferences/entry",
		"/api/preferences/sync",
		"/api/auth/status",
		"/api/auth/login",
		"/api/auth/logout",
		"/api/timeline",
	}
}

// ServeHTTP dispatches to the endpoint implementations.
func (h *APIHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/health":
		h.requireMethod(w, r, http.MethodGet, h.handleHealth)
	case "/api/bootstrap":
		h.requireMethod(w, r, http.MethodGet, h.handleBootstrap)
	case "/api/progress":
		h.requireMethod(w, r, http.MethodPost, h.handleProgress)
	case "/api/preferences":
		h.requireMethod(w, r, http.MethodGet, h.handlePreferences)
	case "/api/preferences/pin":
		h.requireMethod(w, r, http.MethodPost, h.handleTogglePin)
	case "/api/preferences/entry":
		h.requireMethod(w, r, http.MethodPost, h.handleSetEntry)
	case "/api/preferences/sync":
		h.requireMethod(w, r, http.MethodPost, h.handleForceSync)
	case "/api/auth/status":
		h.requireMethod(w, r, http.MethodGet, h.handleAuthStatus)
	case "/api/auth/login":
		h.requireMethod(w, r, http.MethodPost, h.handleLogin)
	case "/api/auth/logout":
		h.requireMethod(w, r, http.MethodPost, h.handleLogout)
	case "/api/timeline":
		h.requireMethod(w, r, http.MethodGet, h.handleTimeline)
	default:
		http.NotFound(w, r)
	}
}

func (h *APIHandler) requireMethod(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fn(w, r)
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Warn("failed to encode response", "err", err)
	}
}

// writeError maps the error taxonomy onto HTTP status codes.
func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, shared.ErrAuthRequired), errors.Is(err, shared.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, shared.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, shared.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, shared.ErrServiceUnavailable):
		status = http.StatusBadGateway
	case errors.Is(err, shared.ErrTaskNotFound):
		status = http.StatusNotFound
	case errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrInvalidInput):
		status = http.StatusBadRequest
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleBootstrap runs one load attempt and returns the decision alongside
// the usable snapshot, if any.
func (h *APIHandler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	result := h.loader.Load(r.Context())

	if result.State == loader.StateFresh {
		h.engine.Enable()
	}
	if result.State == loader.StateAuthRequired {
		h.engine.Disable()
	}

	payload := map[string]any{
		"state":    result.State,
		"notice":   result.Notice,
		"snapshot": result.Snapshot,
		"can_log":  h.loader.CanLog(),
	}
	if result.Err != nil {
		payload["error"] = result.Err.Error()
	}
	h.writeJSON(w, http.StatusOK, payload)
}

func (h *APIHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	if !h.loader.CanLog() {
		h.writeJSON(w, http.StatusConflict, map[string]string{
			"error": "logging is disabled while showing stale data; refresh first",
		})
		return
	}

	var req models.SubmitProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.TaskID == "" || req.MinutesSpent < 1 || req.CountIncrement < 0 {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id and positive minutes_spent are required"})
		return
	}

	result, err := h.client.SubmitProgress(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	if h.history != nil {
		if err := h.history.RecordSubmission(req, result.NewCount); err != nil {
			h.logger.Warn("failed to record submission history", "err", err)
		}
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) handlePreferences(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.prefs.Preferences())
}

func (h *APIHandler) handleTogglePin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TaskID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id is required"})
		return
	}

	pinned := h.prefs.TogglePin(body.TaskID)
	h.engine.ScheduleSync()
	h.writeJSON(w, http.StatusOK, map[string]any{"task_id": body.TaskID, "pinned": pinned})
}

func (h *APIHandler) handleSetEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID         string  `json:"task_id"`
		CountLabelMode *string `json:"count_label_mode"`
		TileSize       *string `json:"tile_size"`
		CountCap       *int    `json:"count_cap"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.TaskID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id is required"})
		return
	}

	if body.CountLabelMode != nil {
		if err := h.prefs.SetCountLabelMode(body.TaskID, models.CountLabelMode(*body.CountLabelMode)); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if body.TileSize != nil {
		if err := h.prefs.SetTileSize(body.TaskID, models.TileSize(*body.TileSize)); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if body.CountCap != nil {
		if err := h.prefs.SetCountCap(body.TaskID, *body.CountCap); err != nil {
			h.writeError(w, err)
			return
		}
	}

	h.engine.ScheduleSync()
	h.writeJSON(w, http.StatusOK, h.prefs.Entry(body.TaskID))
}

func (h *APIHandler) handleForceSync(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Flush(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"version": h.prefs.Preferences().Version})
}

func (h *APIHandler) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.client.FetchAuthStatus(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *APIHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email == "" || body.Password == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	if err := h.client.Login(r.Context(), body.Email, body.Password); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "signed in"})
}

func (h *APIHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Logout(r.Context()); err != nil {
		h.writeError(w, err)
		return
	}
	h.engine.Disable()
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

func (h *APIHandler) handleTimeline(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("task_id")
	if taskID == "" {
		h.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "task_id is required"})
		return
	}

	entries, err := h.client.FetchTimeline(r.Context(), taskID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

var _ Handler = (*APIHandler)(nil)
var _ SubmissionRecorder = (*storage.SQLiteStore)(nil)
