package entity

import "time"

// JobStatus is the lifecycle state of a whole domain analysis job.
type JobStatus string

const (
	JobRunning            JobStatus = "running"
	JobSucceeded          JobStatus = "succeeded"
	JobPartiallySucceeded JobStatus = "partially_succeeded"
	JobCancelled          JobStatus = "cancelled"
	// JobInterrupted is reported from a persisted snapshot when the
	// process died while the job was still running.
	JobInterrupted JobStatus = "interrupted"
)

// FailedPage records one page that exhausted its attempt schedule.
type FailedPage struct {
	URL               string    `json:"url"`
	Reason            string    `json:"reason"`
	AttemptedTimeouts []int64   `json:"attempted_timeouts"` // milliseconds, one per attempt
	Timestamp         time.Time `json:"timestamp"`
}

// MergedResult is the running aggregate a crawl folds every page's
// extraction record into, plus the consolidated color table computed
// once the crawl finishes.
type MergedResult struct {
	AnalyzedPages    []string                 `json:"analyzed_pages"`
	Headings         []PageElement            `json:"headings"`
	Paragraphs       []PageElement            `json:"paragraphs"`
	Buttons          []PageElement            `json:"buttons"`
	Links            []PageElement            `json:"links"`
	Images           []PageElement            `json:"images"`
	Colors           []ColorObservation       `json:"colors"`
	ContrastFailures []ContrastFailure        `json:"contrast_failures"`
	MobileIssues     []MobileIssue            `json:"mobile_issues"`
	ColorTable       map[string]*ColorCluster `json:"color_table,omitempty"`
	ColorSummary     *ColorSummary            `json:"color_summary,omitempty"`
}

// DomainAnalysisJob is the aggregate state of one crawl. The job's
// goroutine is its single writer; readers go through the orchestrator,
// which copies under the job lock.
type DomainAnalysisJob struct {
	ID             string        `json:"id"`
	Domain         string        `json:"domain"`
	Status         JobStatus     `json:"status"`
	Mode           AnalysisMode  `json:"mode"`
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	FailedPages    []FailedPage  `json:"failed_pages"`
	CurrentURL     string        `json:"current_url,omitempty"`
	Notices        []string      `json:"notices,omitempty"`
	Merged         *MergedResult `json:"merged,omitempty"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     *time.Time    `json:"finished_at,omitempty"`
	CancelledAt    *time.Time    `json:"cancelled_at,omitempty"`
	DroppedInvalid int           `json:"dropped_invalid"`
}

// Percent returns crawl progress as 0-100.
func (j *DomainAnalysisJob) Percent() float64 {
	if j.Total == 0 {
		return 0
	}
	return float64(j.Completed+len(j.FailedPages)) / float64(j.Total) * 100
}

// ProgressSnapshot is the compact view written to the progress store
// after every terminal page, so an observer can poll status without
// blocking the crawl and a restarted process can report finished or
// interrupted jobs.
type ProgressSnapshot struct {
	JobID      string    `json:"job_id"`
	Status     JobStatus `json:"status"`
	Total      int       `json:"total"`
	Completed  int       `json:"completed"`
	Failed     int       `json:"failed"`
	CurrentURL string    `json:"current_url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}
