package handler

import (
	"net/http"

	"findebt/internal/ledger"
	"findebt/internal/middleware"
	"findebt/pkg/errors"
)

// ParticipantHandler serves participant dashboard endpoints.
type ParticipantHandler struct {
	service *ledger.Service
	logger  Logger
}

// NewParticipantHandler creates a ParticipantHandler.
func NewParticipantHandler(service *ledger.Service, log Logger) *ParticipantHandler {
	return &ParticipantHandler{service: service, logger: log}
}

// Summary returns the authenticated participant's net position and totals.
func (h *ParticipantHandler) Summary(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	summary, err := h.service.Summary(r.Context(), participantID)
	if err != nil {
		if errors.Is(err, errors.ErrParticipantNotFound) {
			respondError(w, http.StatusNotFound, "Participant not found")
			return
		}

		h.logger.Error("Failed to fetch summary", map[string]interface{}{
			"error":          err.Error(),
			"participant_id": participantID,
		})
		respondError(w, http.StatusInternalServerError, "Failed to fetch summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}
