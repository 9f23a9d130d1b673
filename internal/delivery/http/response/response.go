package response

import (
	"time"

	"github.com/user/designaudit-service/internal/entity"
)

// StartAuditResponse acknowledges a started job.
type StartAuditResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	JobID   string `json:"job_id"`
}

// StatusResponse is the poll-friendly progress view.
type StatusResponse struct {
	JobID      string  `json:"job_id"`
	Status     string  `json:"status"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	Total      int     `json:"total"`
	Percent    float64 `json:"percent"`
	CurrentURL string  `json:"current_url,omitempty"`
}

// ResultResponse carries the merged aggregate of a finished job. The
// report clearly separates analyzed pages from failed pages, each failed
// page carrying its reason and retry path.
type ResultResponse struct {
	JobID          string               `json:"job_id"`
	Domain         string               `json:"domain,omitempty"`
	Status         string               `json:"status"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     *time.Time           `json:"finished_at,omitempty"`
	Notices        []string             `json:"notices,omitempty"`
	AnalyzedPages  []string             `json:"analyzed_pages"`
	FailedPages    []entity.FailedPage  `json:"failed_pages"`
	Merged         *entity.MergedResult `json:"merged"`
	DroppedInvalid int                  `json:"dropped_invalid_colors"`
}
