package handler

import (
	"net/http"

	"findebt/internal/ledger"
	"findebt/internal/middleware"
	"findebt/pkg/errors"
	"findebt/pkg/validator"

	"github.com/google/uuid"
)

// ChannelHandler manages payment channel endpoints.
type ChannelHandler struct {
	service   *ledger.Service
	validator *validator.Validator
	logger    Logger
}

// NewChannelHandler creates a ChannelHandler.
func NewChannelHandler(service *ledger.Service, val *validator.Validator, log Logger) *ChannelHandler {
	return &ChannelHandler{service: service, validator: val, logger: log}
}

// List returns active channels; ?all=true includes inactive ones.
func (h *ChannelHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"

	channels, err := h.service.ListChannels(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error("Failed to list channels", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to list channels")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"channels": channels})
}

// Create registers a new payment channel.
func (h *ChannelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ledger.CreateChannelRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if errs := h.validator.ValidateStructured(&req); errs != nil {
		respondValidationErrors(w, errs)
		return
	}

	channel, err := h.service.CreateChannel(r.Context(), &req)
	if err != nil {
		if errors.Is(err, errors.ErrChannelAlreadyExists) {
			respondError(w, http.StatusConflict, "Channel already exists")
			return
		}

		h.logger.Error("Failed to create channel", map[string]interface{}{"error": err.Error()})
		respondError(w, http.StatusInternalServerError, "Failed to create channel")
		return
	}

	respondJSON(w, http.StatusCreated, channel)
}

// SetMine replaces the authenticated participant's supported channels.
func (h *ChannelHandler) SetMine(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.ParticipantIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req struct {
		ChannelIDs []uuid.UUID `json:"channel_ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.SetParticipantChannels(r.Context(), participantID, req.ChannelIDs); err != nil {
		switch {
		case errors.Is(err, errors.ErrChannelNotFound):
			respondError(w, http.StatusNotFound, "Channel not found")
		case errors.Is(err, errors.ErrChannelInactive):
			respondError(w, http.StatusBadRequest, "Channel is inactive")
		default:
			h.logger.Error("Failed to set channels", map[string]interface{}{
				"error":          err.Error(),
				"participant_id": participantID,
			})
			respondError(w, http.StatusInternalServerError, "Failed to set channels")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Channels updated"})
}
