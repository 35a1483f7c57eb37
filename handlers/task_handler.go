package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"taskmap-backend/lifecycle"
	"taskmap-backend/storage"
	"taskmap-backend/wallet"
)

// TaskHandler handles task lifecycle HTTP endpoints
type TaskHandler struct {
	ctrl    *lifecycle.Controller
	wallets wallet.Provider
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(ctrl *lifecycle.Controller, wallets wallet.Provider) *TaskHandler {
	return &TaskHandler{ctrl: ctrl, wallets: wallets}
}

// Tasks routes /api/tasks and its nested actions.
func (h *TaskHandler) Tasks(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tasks")
	path = strings.Trim(path, "/")

	switch r.Method {
	case http.MethodGet:
		if path == "" {
			h.handleList(w, r)
			return
		}
		parts := strings.Split(path, "/")
		taskID, ok := h.parseID(w, parts[0])
		if !ok {
			return
		}
		if len(parts) > 1 {
			Error(w, http.StatusNotFound, "unknown task resource")
			return
		}
		h.handleGet(w, r, taskID)
	case http.MethodPost:
		if path == "" {
			h.handleCreate(w, r)
			return
		}
		parts := strings.Split(path, "/")
		if len(parts) != 2 {
			Error(w, http.StatusBadRequest, "expected /api/tasks/{id}/{action}")
			return
		}
		taskID, ok := h.parseID(w, parts[0])
		if !ok {
			return
		}
		switch parts[1] {
		case "accept":
			h.handleAccept(w, r, taskID)
		case "submit":
			h.handleSubmit(w, r, taskID)
		case "request-changes":
			h.handleRequestChanges(w, r, taskID)
		case "fund":
			h.handleFund(w, r, taskID)
		case "approve":
			h.handleApprove(w, r, taskID)
		case "mark-paid":
			h.handleMarkPaid(w, r, taskID)
		default:
			Error(w, http.StatusNotFound, "unknown task action")
		}
	default:
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *TaskHandler) parseID(w http.ResponseWriter, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		Error(w, http.StatusBadRequest, "invalid task id")
		return 0, false
	}
	return id, true
}

func (h *TaskHandler) actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	addr, err := h.wallets.Actor(r)
	if err != nil {
		ResolveError(w, err)
		return "", false
	}
	return addr, true
}

// handleList handles GET /api/tasks. Finished tasks are excluded so the
// board only shows actionable work.
func (h *TaskHandler) handleList(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.ctrl.List(r.Context())
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tasks": tasks,
		"total": len(tasks),
	})
}

func (h *TaskHandler) handleGet(w http.ResponseWriter, r *http.Request, taskID int64) {
	task, err := h.ctrl.Get(r.Context(), taskID)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var fields storage.NewTask
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := h.ctrl.Create(r.Context(), actor, fields)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (h *TaskHandler) handleAccept(w http.ResponseWriter, r *http.Request, taskID int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	task, err := h.ctrl.Accept(r.Context(), taskID, actor)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleSubmit(w http.ResponseWriter, r *http.Request, taskID int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		URL   string `json:"url"`
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := h.ctrl.Submit(r.Context(), taskID, actor, lifecycle.SubmissionRef{
		URL:   body.URL,
		Notes: body.Notes,
	})
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleRequestChanges(w http.ResponseWriter, r *http.Request, taskID int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	task, err := h.ctrl.RequestChanges(r.Context(), taskID, actor, body.Notes)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleFund(w http.ResponseWriter, r *http.Request, taskID int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	receipt, err := h.ctrl.Fund(r.Context(), taskID, actor)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tx_hash": receipt.TxHash,
		"status":  receipt.Status,
	})
}

func (h *TaskHandler) handleApprove(w http.ResponseWriter, r *http.Request, taskID int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	task, err := h.ctrl.Approve(r.Context(), taskID, actor)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) handleMarkPaid(w http.ResponseWriter, r *http.Request, taskID int64) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var body struct {
		PayoutTx string `json:"payout_tx"`
	}
	// The body is optional for mark-paid.
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	task, err := h.ctrl.MarkPaid(r.Context(), taskID, actor, body.PayoutTx)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}
