package handler

import (
	"net/http"
	"strconv"

	"findebt/internal/ledger"
	"findebt/internal/middleware"
	"findebt/internal/settlement"
	"findebt/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// SettlementHandler manages netting run initiation and settlement history.
type SettlementHandler struct {
	runs   *settlement.Service
	ledger *ledger.Service
	stream *StreamHub
	logger Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(runs *settlement.Service, led *ledger.Service, stream *StreamHub, log Logger) *SettlementHandler {
	return &SettlementHandler{runs: runs, ledger: led, stream: stream, logger: log}
}

// Initiate starts a netting run over the given participant set. With no
// participant_ids the run covers all active participants.
func (h *SettlementHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	initiatorID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		ParticipantIDs []uuid.UUID `json:"participant_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	var report *settlement.RunReport
	var err error
	if len(req.ParticipantIDs) == 0 {
		report, err = h.runs.RunAll(r.Context())
	} else {
		report, err = h.runs.Run(r.Context(), initiatorID, req.ParticipantIDs)
	}
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrRunInProgress):
			respondError(w, http.StatusConflict, "A settlement run is already in progress for these participants")
		case errors.Is(err, errors.ErrParticipantNotFound):
			respondError(w, http.StatusNotFound, "Participant not found")
		case errors.Is(err, errors.ErrInvariantViolation):
			h.logger.Error("Settlement run aborted", map[string]interface{}{"error": err.Error()})
			respondError(w, http.StatusUnprocessableEntity, "Settlement run aborted; no changes were applied")
		default:
			h.logger.Error("Settlement run failed", map[string]interface{}{"error": err.Error()})
			respondError(w, http.StatusInternalServerError, "Settlement run failed")
		}
		return
	}

	if report.Applied {
		h.stream.Broadcast("settlement_completed", report)
	}

	respondJSON(w, http.StatusCreated, report)
}

// List returns settlements involving the authenticated participant.
func (h *SettlementHandler) List(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	settlements, err := h.ledger.ListSettlements(r.Context(), participantID, limit)
	if err != nil {
		h.logger.Error("Failed to list settlements", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to list settlements")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"settlements": settlements,
		"total":       len(settlements),
	})
}

// Get returns one settlement with its transfers.
func (h *SettlementHandler) Get(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	settlementID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid settlement ID")
		return
	}

	detail, err := h.ledger.GetSettlement(r.Context(), settlementID)
	if err != nil {
		if errors.Is(err, errors.ErrSettlementNotFound) {
			respondError(w, http.StatusNotFound, "Settlement not found")
			return
		}

		h.logger.Error("Failed to fetch settlement", map[string]interface{}{
			"error":         err.Error(),
			"settlement_id": settlementID,
		})
		respondError(w, http.StatusInternalServerError, "Failed to fetch settlement")
		return
	}

	respondJSON(w, http.StatusOK, detail)
}
