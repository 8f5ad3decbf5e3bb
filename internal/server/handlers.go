package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/swapstudio/swap-studio-api/internal/job"
)

const apiVersion = "1.0.0"

// Handlers contains the HTTP handlers for the API.
type Handlers struct {
	service   *job.SwapService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(service *job.SwapService, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		service:   service,
		validator: validator.New(),
		logger:    logger,
	}
}

// Info handles GET / requests with the service banner.
func (h *Handlers) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, InfoResponse{
		Message:   "Swap Studio API",
		Version:   apiVersion,
		Providers: h.service.ProviderNames(),
	})
}

// Health handles GET /health requests.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:              "healthy",
		ConfiguredProviders: h.service.ProviderNames(),
	})
}

// CreateSwap handles POST /api/swap requests.
func (h *Handlers) CreateSwap(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	h.submit(w, r, job.SubmitInput{
		Mode:      req.SwapMode,
		Quality:   req.Quality,
		VideoData: req.VideoData,
		ImageData: req.ImageData,
		Prompt:    req.Prompt,
	})
}

// CreateLipSync handles POST /api/lipsync requests.
func (h *Handlers) CreateLipSync(w http.ResponseWriter, r *http.Request) {
	var req LipSyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode request body",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, "invalid JSON body", "INVALID_JSON")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		h.logger.Warn("request validation failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusBadRequest, err.Error(), "VALIDATION_ERROR")
		return
	}

	h.submit(w, r, job.SubmitInput{
		Mode:      string(job.ModeLipSync),
		VideoData: req.VideoData,
		AudioData: req.AudioData,
	})
}

// submit dispatches a validated submission through the service and
// writes the accepted job or the mapped error.
func (h *Handlers) submit(w http.ResponseWriter, r *http.Request, input job.SubmitInput) {
	created, err := h.service.Submit(r.Context(), input)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toJobResponse(created))
}

// GetJob handles GET /api/swap/{job_id} and GET /api/lipsync/{job_id}
// requests. Fetching a live job syncs it against the provider first.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	found, err := h.service.Get(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(found))
}

// CancelJob handles DELETE /api/swap/{job_id} requests.
func (h *Handlers) CancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job ID is required", "MISSING_JOB_ID")
		return
	}

	canceled, err := h.service.Cancel(r.Context(), jobID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(canceled))
}

// writeServiceError maps service errors onto HTTP responses. Upstream
// provider detail stays in the logs, not in client responses.
func (h *Handlers) writeServiceError(w http.ResponseWriter, err error) {
	var verr *job.ValidationError
	var perr *job.ProviderError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error(), "VALIDATION_ERROR")
	case errors.Is(err, job.ErrNotFound):
		writeError(w, http.StatusNotFound, "job not found", "JOB_NOT_FOUND")
	case errors.Is(err, job.ErrProviderUnavailable):
		writeError(w, http.StatusServiceUnavailable, "no provider configured for this request", "PROVIDER_UNAVAILABLE")
	case errors.As(err, &perr):
		writeError(w, http.StatusBadGateway, fmt.Sprintf("provider %s rejected the request", perr.Provider), "PROVIDER_ERROR")
	default:
		h.logger.Error("unexpected service error",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}

// toJobResponse converts a job into its wire representation. OutputURL
// and Error serialize as explicit nulls when unset.
func toJobResponse(j *job.Job) JobResponse {
	resp := JobResponse{
		JobID:    j.ID,
		Status:   string(j.Status),
		Progress: j.Progress,
	}
	if j.OutputURL != "" {
		resp.OutputURL = &j.OutputURL
	}
	if j.Error != "" {
		resp.Error = &j.Error
	}
	return resp
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
	}
}

// writeError writes an error response in the standard format.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
