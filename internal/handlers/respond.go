package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/otcheredev/ris-hl7-service/internal/records"
	"github.com/otcheredev/ris-hl7-service/internal/scheduling"
	"github.com/otcheredev/ris-hl7-service/internal/services"
)

func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError maps service errors onto HTTP statuses: missing records are
// 404, state and slot conflicts 409, unknown stations 400, counterpart
// rejections 502, the rest 500.
func respondError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, records.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, services.ErrWrongState), errors.Is(err, services.ErrAlreadyReported):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, scheduling.ErrSlotTaken):
		http.Error(w, "Slot no longer available", http.StatusConflict)
	case errors.Is(err, scheduling.ErrUnknownStation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrRejected):
		http.Error(w, "Counterpart rejected the operation", http.StatusBadGateway)
	default:
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}
