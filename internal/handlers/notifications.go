package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/services"
)

// NotificationHandler receives study lifecycle callbacks from the modality
// service.
type NotificationHandler struct {
	worklist *services.WorklistService
}

func NewNotificationHandler(worklist *services.WorklistService) *NotificationHandler {
	return &NotificationHandler{worklist: worklist}
}

type studyNotification struct {
	AccessionNumber string `json:"accession_number"`
	StudyUID        string `json:"study_uid"`
}

// StudyStarted marks an order in progress when acquisition begins
func (h *NotificationHandler) StudyStarted(w http.ResponseWriter, r *http.Request) {
	var req studyNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessionNumber == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.worklist.StudyStarted(r.Context(), req.AccessionNumber)
	if err != nil {
		log.Warn().Err(err).Str("accession_number", req.AccessionNumber).Msg("Failed to record study start")
		respondError(w, err, "Failed to record study start")
		return
	}

	respondJSON(w, http.StatusOK, order)
}

// StudyStabilized records the study end once all instances are stored
func (h *NotificationHandler) StudyStabilized(w http.ResponseWriter, r *http.Request) {
	var req studyNotification
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AccessionNumber == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.worklist.StudyStabilized(r.Context(), req.AccessionNumber, req.StudyUID)
	if err != nil {
		log.Warn().Err(err).Str("accession_number", req.AccessionNumber).Msg("Failed to record study end")
		respondError(w, err, "Failed to record study end")
		return
	}

	respondJSON(w, http.StatusOK, order)
}
