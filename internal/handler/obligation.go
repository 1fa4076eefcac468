package handler

import (
	"net/http"
	"strconv"
	"time"

	"findebt/internal/domain"
	"findebt/internal/ledger"
	"findebt/internal/middleware"
	"findebt/internal/repository/postgres"
	"findebt/pkg/errors"
	"findebt/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ObligationHandler manages obligation endpoints.
type ObligationHandler struct {
	service   *ledger.Service
	validator *validator.Validator
	logger    Logger
}

// NewObligationHandler creates an ObligationHandler.
func NewObligationHandler(service *ledger.Service, val *validator.Validator, log Logger) *ObligationHandler {
	return &ObligationHandler{service: service, validator: val, logger: log}
}

// Create records a new obligation owed by the authenticated participant.
func (h *ObligationHandler) Create(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req ledger.CreateObligationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.SenderID = participantID

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	obligation, err := h.service.CreateObligation(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrSelfObligation):
			respondError(w, http.StatusBadRequest, "Sender and receiver must differ")
		case errors.Is(err, errors.ErrInvalidAmount):
			respondError(w, http.StatusBadRequest, "Amount must be a positive decimal")
		case errors.Is(err, errors.ErrParticipantNotFound):
			respondError(w, http.StatusNotFound, "Receiver not found")
		case errors.Is(err, errors.ErrChannelNotFound):
			respondError(w, http.StatusNotFound, "Channel not found")
		case errors.Is(err, errors.ErrChannelInactive):
			respondError(w, http.StatusBadRequest, "Channel is inactive")
		default:
			h.logger.Error("Failed to create obligation", map[string]interface{}{
				"error":     err.Error(),
				"sender_id": participantID,
			})
			respondError(w, http.StatusInternalServerError, "Failed to create obligation")
		}
		return
	}

	respondJSON(w, http.StatusCreated, obligation)
}

// History returns obligations involving the authenticated participant.
// Supports ?status=, ?from=, ?to= (RFC 3339) and ?limit=.
func (h *ObligationHandler) History(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	filter := postgres.HistoryFilter{}
	q := r.URL.Query()

	if v := q.Get("status"); v != "" {
		filter.Status = domain.ObligationStatus(v)
	}
	if v := q.Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid from timestamp")
			return
		}
		filter.DateFrom = &ts
	}
	if v := q.Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid to timestamp")
			return
		}
		filter.DateTo = &ts
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	obligations, err := h.service.ObligationHistory(r.Context(), participantID, filter)
	if err != nil {
		h.logger.Error("Failed to fetch obligation history", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to fetch obligations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"obligations": obligations,
		"total":       len(obligations),
	})
}

// Cancel cancels a pending obligation owned by the authenticated participant.
func (h *ObligationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	vars := mux.Vars(r)
	obligationID, err := uuid.Parse(vars["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid obligation ID")
		return
	}

	if err := h.service.CancelObligation(r.Context(), participantID, obligationID); err != nil {
		switch {
		case errors.Is(err, errors.ErrObligationNotFound):
			respondError(w, http.StatusNotFound, "Obligation not found")
		case errors.Is(err, errors.ErrObligationNotPending):
			respondError(w, http.StatusConflict, "Obligation is not pending")
		default:
			h.logger.Error("Failed to cancel obligation", map[string]interface{}{
				"error":         err.Error(),
				"obligation_id": obligationID,
			})
			respondError(w, http.StatusInternalServerError, "Failed to cancel obligation")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Obligation cancelled"})
}
