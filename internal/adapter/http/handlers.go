package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/avesafe/taskpilot/internal/domain/overlay"
	"github.com/avesafe/taskpilot/internal/domain/query"
	"github.com/avesafe/taskpilot/internal/domain/session"
	"github.com/avesafe/taskpilot/internal/domain/task"
	"github.com/avesafe/taskpilot/internal/port/oracle"
	"github.com/avesafe/taskpilot/internal/service"
)

// Handlers bundles the services behind the HTTP surface.
type Handlers struct {
	Tasks    *service.TaskService
	Optimize *service.OptimizeService
	Views    *service.ViewService
}

// NewHandlers creates the handler set.
func NewHandlers(tasks *service.TaskService, optimize *service.OptimizeService, views *service.ViewService) *Handlers {
	return &Handlers{Tasks: tasks, Optimize: optimize, Views: views}
}

// sessionKey extracts the session key from the URL, writing a 400 when a
// segment is missing.
func sessionKey(w http.ResponseWriter, r *http.Request) (session.Key, bool) {
	key := session.Key{
		Department:    urlParam(r, "department"),
		SubDepartment: urlParam(r, "subDepartment"),
	}
	if !requireField(w, key.Department, "department") {
		return session.Key{}, false
	}
	if !requireField(w, key.SubDepartment, "subDepartment") {
		return session.Key{}, false
	}
	return key, true
}

// taskID parses the {id} URL segment.
func taskID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(urlParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

// --- Stateless optimization ---

type optimizeRequest struct {
	Department    string      `json:"department"`
	SubDepartment string      `json:"subDepartment"`
	Tasks         []task.Task `json:"tasks"`
}

type optimizeResponse struct {
	ReorderedTasks []overlay.Entry `json:"reorderedTasks"`
	Summary        string          `json:"summary"`
	OmittedCount   int             `json:"omittedCount"`
}

// OptimizeTasks runs one optimization pass over the posted task list
// without touching any stored session.
func (h *Handlers) OptimizeTasks(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[optimizeRequest](w, r)
	if !ok {
		return
	}
	if len(req.Tasks) == 0 {
		writeError(w, http.StatusBadRequest, "tasks are required")
		return
	}

	rec, omitted, err := h.Optimize.Optimize(r.Context(), req.Tasks)
	if err != nil {
		writeDomainError(w, err, "optimization failed")
		return
	}

	writeJSON(w, http.StatusOK, optimizeResponse{
		ReorderedTasks: rec.ReorderedTasks,
		Summary:        rec.Summary,
		OmittedCount:   omitted,
	})
}

// --- Free-text extraction ---

type parseRequest struct {
	Text string `json:"text"`
}

type parseResponse struct {
	Tasks []oracle.Draft `json:"tasks"`
}

// ParseTasks extracts task drafts from a free-text blob.
func (h *Handlers) ParseTasks(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[parseRequest](w, r)
	if !ok {
		return
	}

	drafts, err := h.Optimize.Extract(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, err, "extraction failed")
		return
	}

	writeJSON(w, http.StatusOK, parseResponse{Tasks: drafts})
}

// --- Session task collection ---

type tasksResponse struct {
	Tasks []task.Task `json:"tasks"`
}

// ListTasks returns the session's raw task collection.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	tasks, err := h.Tasks.List(r.Context(), key)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasksResponse{Tasks: tasks})
}

// CreateTask validates and appends a new task to the session.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[task.CreateRequest](w, r)
	if !ok {
		return
	}

	created, err := h.Tasks.Create(r.Context(), key, req)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// DeleteTask removes a task from the session.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}

	if err := h.Tasks.Delete(r.Context(), key, id); err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type statusRequest struct {
	Status task.Status `json:"status"`
}

// SetTaskStatus toggles a task between active and completed.
func (h *Handlers) SetTaskStatus(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	id, ok := taskID(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[statusRequest](w, r)
	if !ok {
		return
	}

	updated, err := h.Tasks.SetStatus(r.Context(), key, id, req.Status)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// --- Views ---

// ViewTasks returns the reconciled collection filtered and sorted by the
// query string.
func (h *Handlers) ViewTasks(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	f := query.Filter{
		Search:   q.Get("search"),
		Status:   q.Get("status"),
		Priority: q.Get("priority"),
		Risk:     q.Get("risk"),
		Sort:     q.Get("sort"),
	}

	tasks, err := h.Views.View(r.Context(), key, f)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasksResponse{Tasks: tasks})
}

// GetOptimization reports the session's optimization state.
func (h *Handlers) GetOptimization(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	report, err := h.Views.Staleness(r.Context(), key)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// --- Session-scoped optimization ---

type runResponse struct {
	ReorderedTasks []overlay.Entry `json:"reorderedTasks"`
	Summary        string          `json:"summary"`
	OmittedCount   int             `json:"omittedCount"`
	OptimizedAt    time.Time       `json:"optimizedAt"`
}

// RunOptimization optimizes the session's stored collection and persists
// the resulting record.
func (h *Handlers) RunOptimization(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}

	stored, omitted, err := h.Optimize.Run(r.Context(), key)
	if err != nil {
		writeDomainError(w, err, "session not found")
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		ReorderedTasks: stored.Record.ReorderedTasks,
		Summary:        stored.Record.Summary,
		OmittedCount:   omitted,
		OptimizedAt:    stored.OptimizedAt,
	})
}

// --- Import ---

type importResponse struct {
	Tasks []task.Task `json:"tasks"`
	Count int         `json:"count"`
}

// ImportTasks extracts tasks from free text and appends them to the
// session in one step.
func (h *Handlers) ImportTasks(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[parseRequest](w, r)
	if !ok {
		return
	}

	drafts, err := h.Optimize.Extract(r.Context(), req.Text)
	if err != nil {
		writeDomainError(w, err, "extraction failed")
		return
	}

	added, err := h.Tasks.CreateBatch(r.Context(), key, drafts)
	if err != nil {
		writeDomainError(w, err, "import failed")
		return
	}
	writeJSON(w, http.StatusCreated, importResponse{Tasks: added, Count: len(added)})
}
