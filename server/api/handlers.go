// Package api implements the roster REST handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/GoCodeAlone/roster/comms"
	"github.com/GoCodeAlone/roster/department"
	"github.com/GoCodeAlone/roster/task"
)

// DepartmentStore is the department directory used by the handlers.
type DepartmentStore interface {
	Create(ctx context.Context, name string) (*department.Department, error)
	Get(ctx context.Context, id int64) (*department.Department, error)
	List(ctx context.Context) ([]*department.Department, error)
}

// Handlers bundles all REST API handler dependencies.
type Handlers struct {
	Engine      *task.Engine
	Departments DepartmentStore
	Bus         comms.Bus // optional
	Logger      *slog.Logger
	Version     string
	StartAt     time.Time
}

// RegisterRoutes registers the authenticated API routes on r. Callers must
// install middleware that attaches the actor with WithActor.
func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", h.listTasks)
		r.Post("/", h.createTask)
		r.Get("/pending", h.listPending)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getTask)
			r.Post("/complete", h.completeTask)
			r.Post("/approve", h.approveTask)
			r.Post("/reject", h.rejectTask)
			r.Get("/notes", h.listNotes)
			r.Post("/notes", h.addNote)
		})
	})

	r.Get("/api/departments", h.listDepartments)
	r.Post("/api/departments", h.createDepartment)
	r.Get("/api/departments/{id}", h.getDepartment)

	r.Get("/api/events", h.listEvents)
	r.Get("/api/version", h.version)
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps engine and directory errors to HTTP statuses.
// Store failures are logged and reported without detail.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, task.ErrStore):
	case errors.Is(err, task.ErrValidation), errors.Is(err, department.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, task.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, task.ErrNotFound), errors.Is(err, department.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, task.ErrInvalidTransition), errors.Is(err, department.ErrDuplicate):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("err", err),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

// decodeBody decodes an optional JSON body into v. An empty body is not an error.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (h *Handlers) actor(w http.ResponseWriter, r *http.Request) (task.Actor, bool) {
	a, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "not authenticated")
	}
	return a, ok
}

func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) (task.Actor, bool) {
	a, ok := h.actor(w, r)
	if !ok {
		return a, false
	}
	if !a.IsAdmin {
		writeError(w, http.StatusForbidden, "admin role required")
		return a, false
	}
	return a, true
}

// publish emits a lifecycle event. Delivery failures are logged, never
// returned to the client: the command has already been committed.
func (h *Handlers) publish(ctx context.Context, typ comms.EventType, actor task.Actor, t *task.Task) {
	if h.Bus == nil {
		return
	}
	ev := &comms.Event{
		Type:         typ,
		TaskID:       t.ID,
		DepartmentID: t.DepartmentID,
		ActorID:      actor.UserID,
		Status:       string(t.Status),
	}
	if err := h.Bus.Publish(ctx, ev); err != nil {
		h.Logger.Warn("publish event", slog.String("type", string(typ)), slog.Any("err", err))
	}
}

// --- Task handlers ---

func (h *Handlers) listTasks(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	statuses, err := task.ParseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	tasks, err := h.Engine.ListTasks(r.Context(), actor, statuses...)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *Handlers) listPending(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	tasks, err := h.Engine.ListPending(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	DepartmentID int64  `json:"department_id"`
	DueDate      string `json:"due_date"`
}

func (h *Handlers) createTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	due, err := task.ParseDate(req.DueDate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	t, err := h.Engine.CreateTask(r.Context(), actor, task.CreateInput{
		Title:        req.Title,
		Description:  req.Description,
		DepartmentID: req.DepartmentID,
		DueDate:      due,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.publish(r.Context(), comms.TypeTaskCreated, actor, t)
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handlers) getTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	t, err := h.Engine.GetTask(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

type completeRequest struct {
	Note string `json:"note"`
}

func (h *Handlers) completeTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req completeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	t, err := h.Engine.CompleteTask(r.Context(), actor, chi.URLParam(r, "id"), req.Note)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.publish(r.Context(), comms.TypeTaskCompleted, actor, t)
	writeJSON(w, http.StatusOK, t)
}

func (h *Handlers) approveTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	t, err := h.Engine.ApproveTask(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.publish(r.Context(), comms.TypeTaskApproved, actor, t)
	writeJSON(w, http.StatusOK, t)
}

type rejectRequest struct {
	Reason     string `json:"reason"`
	NewDueDate string `json:"new_due_date"`
}

func (h *Handlers) rejectTask(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	due, err := task.ParseDate(req.NewDueDate)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	t, err := h.Engine.RejectTask(r.Context(), actor, chi.URLParam(r, "id"), req.Reason, due)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	h.publish(r.Context(), comms.TypeTaskRejected, actor, t)
	writeJSON(w, http.StatusOK, t)
}

// --- Note handlers ---

type noteRequest struct {
	Body string `json:"body"`
}

func (h *Handlers) addNote(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var req noteRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	id := chi.URLParam(r, "id")
	n, err := h.Engine.AddNote(r.Context(), actor, id, req.Body)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	// The note does not carry the department; re-read for event scoping.
	if t, err := h.Engine.GetTask(r.Context(), actor, id); err == nil {
		h.publish(r.Context(), comms.TypeNoteAdded, actor, t)
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *Handlers) listNotes(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	notes, err := h.Engine.ListNotes(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if notes == nil {
		notes = []*task.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// --- Department handlers ---

func (h *Handlers) listDepartments(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	depts, err := h.Departments.List(r.Context())
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if depts == nil {
		depts = []*department.Department{}
	}
	writeJSON(w, http.StatusOK, depts)
}

func (h *Handlers) createDepartment(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r); !ok {
		return
	}
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	d, err := h.Departments.Create(r.Context(), req.Name)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handlers) getDepartment(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.actor(w, r); !ok {
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid department id")
		return
	}
	d, err := h.Departments.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// --- Event handlers ---

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}
	var events []*comms.Event
	if h.Bus != nil {
		var err error
		events, err = h.Bus.History(task.ScopeFor(actor), limit)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
	}
	if events == nil {
		events = []*comms.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

// --- Status / version ---

func (h *Handlers) status(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]string{
		"status":  "ok",
		"version": h.Version,
	}
	if !h.StartAt.IsZero() {
		resp["uptime"] = time.Since(h.StartAt).Round(time.Second).String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// StatusHandler returns the status handler function for external registration.
func (h *Handlers) StatusHandler() http.HandlerFunc {
	return h.status
}

func (h *Handlers) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": h.Version,
	})
}
