package handlers

import (
	"bytes"
	"fmt"
	"image/png"
	"net/http"
	"strconv"
	"strings"

	"github.com/skip2/go-qrcode"

	"taskmap-backend/chain"
	"taskmap-backend/lifecycle"
)

// EscrowHandler serves on-chain escrow state and funding helpers.
type EscrowHandler struct {
	ctrl     *lifecycle.Controller
	escrow   lifecycle.EscrowReader
	contract string
	chainID  uint64
}

// NewEscrowHandler creates a new escrow handler. contract and chainID
// feed the wallet payment URI in funding QR codes.
func NewEscrowHandler(ctrl *lifecycle.Controller, escrow lifecycle.EscrowReader, contract string, chainID uint64) *EscrowHandler {
	return &EscrowHandler{ctrl: ctrl, escrow: escrow, contract: contract, chainID: chainID}
}

// Escrow routes /api/escrow/{id} and /api/escrow/{id}/funding-qr.
func (h *EscrowHandler) Escrow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/escrow")
	path = strings.Trim(path, "/")
	if path == "" {
		Error(w, http.StatusBadRequest, "expected /api/escrow/{task_id}")
		return
	}

	parts := strings.Split(path, "/")
	taskID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || taskID <= 0 {
		Error(w, http.StatusBadRequest, "invalid task id")
		return
	}

	if len(parts) > 1 {
		if parts[1] == "funding-qr" {
			h.handleFundingQR(w, r, taskID)
			return
		}
		Error(w, http.StatusNotFound, "unknown escrow resource")
		return
	}
	h.handleStatus(w, r, taskID)
}

// handleStatus handles GET /api/escrow/{id}: the raw on-chain record plus
// the funded verdict the lifecycle uses.
func (h *EscrowHandler) handleStatus(w http.ResponseWriter, r *http.Request, taskID int64) {
	task, err := h.ctrl.Get(r.Context(), taskID)
	if err != nil {
		ResolveError(w, err)
		return
	}
	rec, err := h.escrow.Read(r.Context(), taskID)
	if err != nil {
		ResolveError(w, err)
		return
	}
	funded, err := h.ctrl.Funding().IsFunded(r.Context(), task)
	if err != nil {
		ResolveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":    taskID,
		"poster":     rec.Poster,
		"worker":     rec.Worker,
		"locked_eth": chain.FormatEther(rec.LockedWei),
		"released":   rec.Released,
		"cancelled":  rec.Cancelled,
		"funded":     funded,
	})
}

// handleFundingQR handles GET /api/escrow/{id}/funding-qr. The encoded
// payment URI targets the escrow contract with the task reward as value.
func (h *EscrowHandler) handleFundingQR(w http.ResponseWriter, r *http.Request, taskID int64) {
	task, err := h.ctrl.Get(r.Context(), taskID)
	if err != nil {
		ResolveError(w, err)
		return
	}
	weiAmount, err := chain.ParseEther(task.Reward)
	if err != nil {
		ResolveError(w, err)
		return
	}

	uri := fmt.Sprintf("ethereum:%s@%d?value=%s", h.contract, h.chainID, weiAmount.String())
	qr, err := qrcode.New(uri, qrcode.Medium)
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to generate QR code")
		return
	}
	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(256)); err != nil {
		Error(w, http.StatusInternalServerError, "failed to encode QR code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
