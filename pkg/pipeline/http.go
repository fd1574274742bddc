package pipeline

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	apperrors "github.com/biohubbc/biohub-platform/pkg/common/errors"
	"github.com/biohubbc/biohub-platform/pkg/common/logger"
	"github.com/biohubbc/biohub-platform/pkg/submission"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/intake", h.handleIntake).Methods(http.MethodPost)
	router.HandleFunc("/validate", h.handleValidate).Methods(http.MethodPost)
	router.HandleFunc("/secure", h.handleSecure).Methods(http.MethodPost)
	router.HandleFunc("/normalize", h.handleNormalize).Methods(http.MethodPost)
	router.HandleFunc("/scrape-occurrences", h.handleScrapeOccurrences).Methods(http.MethodPost)
	router.HandleFunc("/artifacts", h.handleIntakeArtifact).Methods(http.MethodPost)
	router.HandleFunc("/queue", h.handleQueue).Methods(http.MethodGet)
	router.HandleFunc("/submissions/{id}/status", h.handleStatusHistory).Methods(http.MethodGet)
	router.HandleFunc("/submissions/{id}/artifacts", h.handleListArtifacts).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleIntake(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		http.Error(w, "missing media file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "unreadable media file", http.StatusBadRequest)
		return
	}

	packageID := r.FormValue("data_package_id")
	source := r.FormValue("source")

	result, err := h.service.Intake(r.Context(), header.Filename, data, packageID, source)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type submissionRequest struct {
	SubmissionID uint `json:"submission_id"`
	StyleID      uint `json:"style_id,omitempty"`
}

func (h *HTTPHandler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	report, err := h.service.Validate(r.Context(), req.SubmissionID, req.StyleID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	// a failing report is a successful validation run
	writeJSON(w, http.StatusOK, report)
}

func (h *HTTPHandler) handleSecure(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.Secure(r.Context(), req.SubmissionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	normalized, err := h.service.Normalize(r.Context(), req.SubmissionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"normalized_source": normalized})
}

func (h *HTTPHandler) handleScrapeOccurrences(w http.ResponseWriter, r *http.Request) {
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.ScrapeOccurrences(r.Context(), req.SubmissionID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (h *HTTPHandler) handleIntakeArtifact(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	if err := r.ParseMultipartForm(h.maxBody); err != nil {
		http.Error(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("media")
	if err != nil {
		http.Error(w, "missing media file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "unreadable media file", http.StatusBadRequest)
		return
	}

	submissionID, err := strconv.ParseUint(r.FormValue("submission_id"), 10, 32)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	artifact, err := h.service.IntakeArtifact(r.Context(), uint(submissionID),
		header.Filename, r.FormValue("file_type"), data)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, artifact)
}

// Caller identity arrives from the gateway that terminates auth, as
// X-Client-ID and X-Admin headers on the forwarded request.
func (h *HTTPHandler) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	callerID := r.Header.Get("X-Client-ID")
	isAdmin := r.Header.Get("X-Admin") == "true"

	artifacts, err := h.service.ListArtifacts(r.Context(), uint(id), callerID, isAdmin)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, artifacts)
}

func (h *HTTPHandler) handleQueue(w http.ResponseWriter, r *http.Request) {
	queue, err := h.service.JobQueue(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, queue)
}

func (h *HTTPHandler) handleStatusHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 32)
	if err != nil {
		http.Error(w, "invalid submission id", http.StatusBadRequest)
		return
	}

	history, err := h.service.StatusHistory(r.Context(), uint(id))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	var illegal *submission.IllegalTransitionError

	switch {
	case errors.Is(err, ErrVirusDetected),
		errors.Is(err, apperrors.ErrMalformedMedia):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &illegal):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, apperrors.ErrSubmissionNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case apperrors.IsExecuteSQLError(err):
		logger.Log.WithError(err).Error("sql execution error")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error":  "ExecuteSQLError",
			"detail": err.Error(),
		})
	default:
		logger.Log.WithError(err).Error("pipeline request failed")
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
