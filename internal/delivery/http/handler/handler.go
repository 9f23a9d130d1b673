package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/user/designaudit-service/internal/delivery/http/request"
	"github.com/user/designaudit-service/internal/delivery/http/response"
	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
	"github.com/user/designaudit-service/internal/usecase"
)

type Handler struct {
	audits usecase.AuditManager
}

func NewHandler(audits usecase.AuditManager) *Handler {
	return &Handler{audits: audits}
}

func (h *Handler) HandleStartAudit(w http.ResponseWriter, r *http.Request) {
	var req request.StartAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	opts := usecase.StartOptions{
		Domain:            req.Domain,
		URLs:              req.URLs,
		Mode:              parseMode(req.Mode),
		MaxPages:          req.MaxPages,
		DelayBetweenPages: time.Duration(req.DelayBetweenPagesMS) * time.Millisecond,
	}

	jobID, err := h.audits.Start(r.Context(), opts)
	if err != nil {
		if errors.Is(err, usecase.ErrNoPagesRequested) {
			h.writeJSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("Failed to start audit", "domain", req.Domain, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, response.StartAuditResponse{
		Status:  "accepted",
		Message: "domain analysis started",
		JobID:   jobID,
	})
}

func (h *Handler) HandleCancelAudit(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	if err := h.audits.Cancel(jobID); err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to cancel audit", "job_id", jobID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "cancellation requested",
	})
}

func (h *Handler) HandleAuditStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	view, err := h.audits.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to read audit status", "job_id", jobID, "error", err)
		h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, response.StatusResponse{
		JobID:      view.JobID,
		Status:     string(view.Status),
		Completed:  view.Completed,
		Failed:     view.Failed,
		Total:      view.Total,
		Percent:    view.Percent,
		CurrentURL: view.CurrentURL,
	})
}

func (h *Handler) HandleAuditResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.audits.Result(r.Context(), jobID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrJobNotFinished):
			h.writeJSONError(w, "Job has not finished yet", http.StatusConflict)
		default:
			slog.Error("Failed to read audit result", "job_id", jobID, "error", err)
			h.writeJSONError(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resultResponse(job))
}

func (h *Handler) HandleRetryPage(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var req request.RetryPageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		h.writeJSONError(w, "Request body must carry the failed page URL", http.StatusBadRequest)
		return
	}

	job, err := h.audits.RetryPage(r.Context(), jobID, req.URL)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			h.writeJSONError(w, "Job not found", http.StatusNotFound)
		case errors.Is(err, repository.ErrJobNotFinished):
			h.writeJSONError(w, "Job has not finished yet", http.StatusConflict)
		case errors.Is(err, usecase.ErrPageNotFailed):
			h.writeJSONError(w, "URL is not among the job's failed pages", http.StatusBadRequest)
		default:
			// The page failed again; the failure is already recorded.
			h.writeJSONError(w, err.Error(), http.StatusBadGateway)
		}
		return
	}

	h.writeJSON(w, http.StatusOK, resultResponse(job))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func resultResponse(job *entity.DomainAnalysisJob) response.ResultResponse {
	resp := response.ResultResponse{
		JobID:          job.ID,
		Domain:         job.Domain,
		Status:         string(job.Status),
		StartedAt:      job.StartedAt,
		FinishedAt:     job.FinishedAt,
		Notices:        job.Notices,
		FailedPages:    job.FailedPages,
		Merged:         job.Merged,
		DroppedInvalid: job.DroppedInvalid,
	}
	if job.Merged != nil {
		resp.AnalyzedPages = job.Merged.AnalyzedPages
	}
	if resp.FailedPages == nil {
		resp.FailedPages = []entity.FailedPage{}
	}
	if resp.AnalyzedPages == nil {
		resp.AnalyzedPages = []string{}
	}
	return resp
}

func parseMode(s string) entity.AnalysisMode {
	switch s {
	case "desktop":
		return entity.DesktopOnly
	case "mobile":
		return entity.MobileOnly
	case "desktop+mobile":
		return entity.DesktopPlusMobile
	default:
		return ""
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message string, status int) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
