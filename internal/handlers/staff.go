package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/ris-hl7-service/internal/middleware"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/scheduling"
	"github.com/otcheredev/ris-hl7-service/internal/services"
)

// StaffHandler serves the authenticated staff API: slot search, booking,
// worklist generation, reporting and patient edits.
type StaffHandler struct {
	schedule *services.ScheduleService
	worklist *services.WorklistService
	report   *services.ReportService
	patient  *services.PatientService
}

func NewStaffHandler(schedule *services.ScheduleService, worklist *services.WorklistService, report *services.ReportService, patient *services.PatientService) *StaffHandler {
	return &StaffHandler{
		schedule: schedule,
		worklist: worklist,
		report:   report,
		patient:  patient,
	}
}

// GetSlots lists the bookable proposals for an order
func (h *StaffHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	proposals, err := h.schedule.GetPossibleSchedules(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Failed to compute slots")
		respondError(w, err, "Failed to compute slots")
		return
	}
	if proposals == nil {
		proposals = []scheduling.Proposal{}
	}

	respondJSON(w, http.StatusOK, proposals)
}

// Schedule books an order into one of its proposed slots
func (h *StaffHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	var proposal scheduling.Proposal
	if err := json.NewDecoder(r.Body).Decode(&proposal); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	booked, err := h.schedule.Book(r.Context(), orderID, proposal)
	if err != nil {
		log.Warn().Err(err).Str("order_id", orderID).Msg("Failed to book order")
		respondError(w, err, "Failed to book order")
		return
	}

	respondJSON(w, http.StatusOK, booked)
}

// GenerateWorklist pushes the worklist entry for a scheduled order
func (h *StaffHandler) GenerateWorklist(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	order, err := h.worklist.GenerateWorklist(r.Context(), orderID)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Failed to generate worklist entry")
		respondError(w, err, "Failed to generate worklist entry")
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

// CreateReport writes the report for an order and finishes it
func (h *StaffHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	staff, ok := middleware.GetStaff(r.Context())
	if !ok {
		http.Error(w, "Authorization required", http.StatusUnauthorized)
		return
	}

	var req services.ReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.report.CreateReport(r.Context(), orderID, staff.UserID, req)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Failed to create report")
		respondError(w, err, "Failed to create report")
		return
	}

	respondJSON(w, http.StatusCreated, report)
}

// GetReport retrieves the report attached to an order
func (h *StaffHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	report, err := h.report.GetReport(r.Context(), orderID)
	if err != nil {
		respondError(w, err, "Failed to get report")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetPatient retrieves a patient record
func (h *StaffHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	patient, err := h.patient.GetPatient(r.Context(), patientID)
	if err != nil {
		respondError(w, err, "Failed to get patient")
		return
	}

	respondJSON(w, http.StatusOK, patient)
}

// UpdatePatient applies a demographic patch to a patient record
func (h *StaffHandler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "id")

	var patch models.PatientPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	patient, err := h.patient.UpdatePatient(r.Context(), patientID, patch)
	if err != nil {
		log.Error().Err(err).Str("patient_id", patientID).Msg("Failed to update patient")
		respondError(w, err, "Failed to update patient")
		return
	}

	respondJSON(w, http.StatusOK, patient)
}
