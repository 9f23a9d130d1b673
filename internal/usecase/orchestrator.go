package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/user/designaudit-service/internal/colors"
	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
	"github.com/user/designaudit-service/pkg/metrics"
	"github.com/user/designaudit-service/pkg/utils"
)

var (
	ErrNoPagesRequested = errors.New("either a domain or an explicit URL list is required")
	ErrPageNotFailed    = errors.New("URL is not in the job's failed pages")
)

// StartOptions describes one crawl request.
type StartOptions struct {
	// Domain is resolved to a page set via sitemap discovery. Ignored
	// when URLs is non-empty.
	Domain string
	// URLs is an explicit page list.
	URLs []string
	Mode entity.AnalysisMode
	// MaxPages caps the page set; 0 uses the configured default.
	MaxPages int
	// DelayBetweenPages overrides the configured inter-page delay when
	// positive.
	DelayBetweenPages time.Duration
}

// JobStatusView is the poll-friendly status projection.
type JobStatusView struct {
	JobID      string           `json:"job_id"`
	Status     entity.JobStatus `json:"status"`
	Completed  int              `json:"completed"`
	Failed     int              `json:"failed"`
	Total      int              `json:"total"`
	Percent    float64          `json:"percent"`
	CurrentURL string           `json:"current_url,omitempty"`
}

// AuditManager is the crawl control surface exposed to the delivery
// layer.
type AuditManager interface {
	Start(ctx context.Context, opts StartOptions) (string, error)
	Cancel(jobID string) error
	Status(ctx context.Context, jobID string) (*JobStatusView, error)
	Result(ctx context.Context, jobID string) (*entity.DomainAnalysisJob, error)
	RetryPage(ctx context.Context, jobID, pageURL string) (*entity.DomainAnalysisJob, error)
}

// jobHandle pairs a live job with its cancel func and merge state. The
// job goroutine is the single writer; the handle mutex exists because
// the HTTP layer reads status concurrently, and counts plus failedPages
// must move together.
type jobHandle struct {
	mu     sync.Mutex
	job    *entity.DomainAnalysisJob
	merger *ResultMerger
	cancel context.CancelFunc
}

type auditOrchestrator struct {
	attempts    *AttemptManager
	sitemap     repository.SitemapDiscovery
	progress    repository.ProgressStore
	results     repository.AuditResultRepository
	failedPages repository.FailedPageRepository

	colorOpts         colors.Options
	delayBetweenPages time.Duration
	defaultMaxPages   int

	mu   sync.RWMutex
	jobs map[string]*jobHandle
}

// NewAuditOrchestrator creates the crawl orchestrator. Pages are
// processed sequentially, one render session at a time: sessions are
// expensive and concurrent ones would defeat the deterministic
// inter-page throttling.
func NewAuditOrchestrator(
	attempts *AttemptManager,
	sitemap repository.SitemapDiscovery,
	progress repository.ProgressStore,
	results repository.AuditResultRepository,
	failedPages repository.FailedPageRepository,
	colorOpts colors.Options,
	delayBetweenPages time.Duration,
	defaultMaxPages int,
) AuditManager {
	if defaultMaxPages <= 0 {
		defaultMaxPages = 200
	}
	return &auditOrchestrator{
		attempts:          attempts,
		sitemap:           sitemap,
		progress:          progress,
		results:           results,
		failedPages:       failedPages,
		colorOpts:         colorOpts,
		delayBetweenPages: delayBetweenPages,
		defaultMaxPages:   defaultMaxPages,
		jobs:              make(map[string]*jobHandle),
	}
}

// Start registers a new job and launches its crawl goroutine. Returns
// the job ID immediately; discovery and analysis run in the background.
func (o *auditOrchestrator) Start(_ context.Context, opts StartOptions) (string, error) {
	if opts.Domain == "" && len(opts.URLs) == 0 {
		return "", ErrNoPagesRequested
	}
	if opts.Mode == "" {
		opts.Mode = entity.DesktopPlusMobile
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = o.defaultMaxPages
	}
	if opts.DelayBetweenPages <= 0 {
		opts.DelayBetweenPages = o.delayBetweenPages
	}

	jobID := uuid.NewString()
	jobCtx, cancel := context.WithCancel(context.Background())

	h := &jobHandle{
		job: &entity.DomainAnalysisJob{
			ID:        jobID,
			Domain:    opts.Domain,
			Status:    entity.JobRunning,
			Mode:      opts.Mode,
			Merged:    &entity.MergedResult{},
			StartedAt: time.Now(),
		},
		merger: NewResultMerger(),
		cancel: cancel,
	}

	o.mu.Lock()
	o.jobs[jobID] = h
	o.mu.Unlock()

	metrics.ActiveJobs.Inc()
	go o.run(jobCtx, h, opts)

	return jobID, nil
}

// Cancel requests cooperative cancellation of a running job. The crawl
// observes it at its next suspension point.
func (o *auditOrchestrator) Cancel(jobID string) error {
	o.mu.RLock()
	h, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if !ok {
		return repository.ErrJobNotFound
	}

	h.mu.Lock()
	if h.job.Status == entity.JobRunning && h.job.CancelledAt == nil {
		now := time.Now()
		h.job.CancelledAt = &now
	}
	h.mu.Unlock()

	h.cancel()
	return nil
}

// Status reports progress for live jobs, falling back to the progress
// store (and then durable results) so a restarted process can still
// answer.
func (o *auditOrchestrator) Status(ctx context.Context, jobID string) (*JobStatusView, error) {
	o.mu.RLock()
	h, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		return &JobStatusView{
			JobID:      jobID,
			Status:     h.job.Status,
			Completed:  h.job.Completed,
			Failed:     len(h.job.FailedPages),
			Total:      h.job.Total,
			Percent:    h.job.Percent(),
			CurrentURL: h.job.CurrentURL,
		}, nil
	}

	snap, err := o.progress.Get(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("read progress snapshot: %w", err)
	}
	if snap != nil {
		status := snap.Status
		if status == entity.JobRunning {
			// A snapshot claiming to run with no live handle means the
			// process died mid-crawl.
			status = entity.JobInterrupted
		}
		percent := 0.0
		if snap.Total > 0 {
			percent = float64(snap.Completed+snap.Failed) / float64(snap.Total) * 100
		}
		return &JobStatusView{
			JobID:      jobID,
			Status:     status,
			Completed:  snap.Completed,
			Failed:     snap.Failed,
			Total:      snap.Total,
			Percent:    percent,
			CurrentURL: snap.CurrentURL,
		}, nil
	}

	job, err := o.results.FindByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("read stored result: %w", err)
	}
	if job == nil {
		return nil, repository.ErrJobNotFound
	}
	return &JobStatusView{
		JobID:     jobID,
		Status:    job.Status,
		Completed: job.Completed,
		Failed:    len(job.FailedPages),
		Total:     job.Total,
		Percent:   job.Percent(),
	}, nil
}

// Result returns the merged result of a finished job.
func (o *auditOrchestrator) Result(ctx context.Context, jobID string) (*entity.DomainAnalysisJob, error) {
	o.mu.RLock()
	h, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if ok {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.job.Status == entity.JobRunning {
			return nil, repository.ErrJobNotFinished
		}
		return h.job, nil
	}

	job, err := o.results.FindByJobID(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("read stored result: %w", err)
	}
	if job == nil {
		return nil, repository.ErrJobNotFound
	}
	return job, nil
}

// RetryPage re-runs a single failed page of a finished job, folding the
// result into the aggregate on success without re-running the crawl.
// The attempt itself runs outside the handle lock so status and result
// reads are never blocked behind a full retry schedule.
func (o *auditOrchestrator) RetryPage(ctx context.Context, jobID, pageURL string) (*entity.DomainAnalysisJob, error) {
	job, h, err := o.finishedJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if h != nil {
		h.mu.Lock()
	}
	idx := failedPageIndex(job, pageURL)
	mode := job.Mode
	if h != nil {
		h.mu.Unlock()
	}
	if idx < 0 {
		return nil, ErrPageNotFailed
	}

	task := &entity.PageTask{URL: pageURL, Status: entity.TaskPending, Mode: mode}
	rec, attempted, err := o.attempts.Run(ctx, task)

	if h != nil {
		h.mu.Lock()
		defer h.mu.Unlock()
	}
	// Re-resolve under the lock: a concurrent retry may have drained
	// this page while the attempt ran.
	idx = failedPageIndex(job, pageURL)
	if idx < 0 {
		return job, nil
	}

	if err != nil {
		job.FailedPages[idx] = entity.FailedPage{
			URL:               pageURL,
			Reason:            err.Error(),
			AttemptedTimeouts: attempted,
			Timestamp:         time.Now(),
		}
		if serr := o.failedPages.SaveOrUpdate(ctx, jobID, &job.FailedPages[idx]); serr != nil {
			slog.Warn("failed to persist failed page", "job_id", jobID, "url", pageURL, "error", serr)
		}
		return nil, err
	}

	merger := NewResultMergerFromAggregate(job.Merged)
	if merger.Merge(job.Merged, rec) {
		job.Completed++
	}
	job.FailedPages = append(job.FailedPages[:idx], job.FailedPages[idx+1:]...)
	o.consolidate(job)
	if job.Status == entity.JobPartiallySucceeded && len(job.FailedPages) == 0 {
		job.Status = entity.JobSucceeded
	}

	if err := o.results.Save(ctx, job); err != nil {
		slog.Error("failed to persist retried job result", "job_id", jobID, "error", err)
	}
	if err := o.failedPages.Delete(ctx, jobID, pageURL); err != nil {
		slog.Warn("failed to delete failed page record", "job_id", jobID, "url", pageURL, "error", err)
	}

	return job, nil
}

func failedPageIndex(job *entity.DomainAnalysisJob, pageURL string) int {
	for i, fp := range job.FailedPages {
		if fp.URL == pageURL {
			return i
		}
	}
	return -1
}

// finishedJob resolves a terminal job either from the live registry or
// from durable storage.
func (o *auditOrchestrator) finishedJob(ctx context.Context, jobID string) (*entity.DomainAnalysisJob, *jobHandle, error) {
	o.mu.RLock()
	h, ok := o.jobs[jobID]
	o.mu.RUnlock()
	if ok {
		h.mu.Lock()
		running := h.job.Status == entity.JobRunning
		h.mu.Unlock()
		if running {
			return nil, nil, repository.ErrJobNotFinished
		}
		return h.job, h, nil
	}

	job, err := o.results.FindByJobID(ctx, jobID)
	if err != nil {
		return nil, nil, fmt.Errorf("read stored result: %w", err)
	}
	if job == nil {
		return nil, nil, repository.ErrJobNotFound
	}
	return job, nil, nil
}

// run is the crawl loop: discover, then analyze pages sequentially with
// the inter-page delay, folding successes and recording exhausted pages.
// A single page's permanent failure never aborts the crawl; only
// cancellation does.
func (o *auditOrchestrator) run(ctx context.Context, h *jobHandle, opts StartOptions) {
	defer metrics.ActiveJobs.Dec()

	pages, notice := o.resolvePages(ctx, opts)
	h.mu.Lock()
	h.job.Total = len(pages)
	if notice != "" {
		h.job.Notices = append(h.job.Notices, notice)
	}
	h.mu.Unlock()
	o.writeSnapshot(ctx, h)

	slog.Info("domain analysis started",
		"job_id", h.job.ID, "domain", opts.Domain, "pages", len(pages), "mode", opts.Mode)

	cancelledMidCrawl := false

	for i, pageURL := range pages {
		if ctx.Err() != nil {
			cancelledMidCrawl = true
			break
		}

		// Throttle between successive task starts, not between retries.
		// Skipped when cancellation is already pending.
		if i > 0 {
			select {
			case <-ctx.Done():
				cancelledMidCrawl = true
			case <-time.After(opts.DelayBetweenPages):
			}
			if cancelledMidCrawl {
				break
			}
		}

		h.mu.Lock()
		h.job.CurrentURL = pageURL
		h.mu.Unlock()

		task := &entity.PageTask{URL: pageURL, Status: entity.TaskPending, Mode: opts.Mode}
		start := time.Now()
		rec, attempted, err := o.attempts.Run(ctx, task)
		metrics.PageAnalysisDuration.WithLabelValues(hostOf(pageURL)).Observe(time.Since(start).Seconds())
		metrics.AttemptsPerPage.Observe(float64(len(attempted)))

		switch {
		case err == nil:
			h.mu.Lock()
			if h.merger.Merge(h.job.Merged, rec) {
				h.job.Completed++
			}
			h.mu.Unlock()
			metrics.PagesAnalyzedTotal.WithLabelValues("success", "").Inc()

		case errors.Is(err, repository.ErrAnalysisCancelled):
			cancelledMidCrawl = true
			metrics.PagesAnalyzedTotal.WithLabelValues("cancelled", "").Inc()

		default:
			fp := entity.FailedPage{
				URL:               pageURL,
				Reason:            err.Error(),
				AttemptedTimeouts: attempted,
				Timestamp:         time.Now(),
			}
			h.mu.Lock()
			h.job.FailedPages = append(h.job.FailedPages, fp)
			h.mu.Unlock()
			metrics.PagesAnalyzedTotal.WithLabelValues("failure", errorType(err)).Inc()
			if serr := o.failedPages.SaveOrUpdate(ctx, h.job.ID, &fp); serr != nil {
				slog.Warn("failed to persist failed page", "job_id", h.job.ID, "url", pageURL, "error", serr)
			}
			slog.Error("page exhausted its attempt schedule",
				"job_id", h.job.ID, "url", pageURL, "reason", err.Error())
		}

		if cancelledMidCrawl {
			break
		}
		o.writeSnapshot(ctx, h)
	}

	o.finish(h, cancelledMidCrawl)
}

// finish settles the terminal status, consolidates colors and persists
// the aggregate.
func (o *auditOrchestrator) finish(h *jobHandle, wasCancelled bool) {
	h.mu.Lock()
	now := time.Now()
	h.job.CurrentURL = ""
	h.job.FinishedAt = &now
	switch {
	case wasCancelled:
		h.job.Status = entity.JobCancelled
		if h.job.CancelledAt == nil {
			h.job.CancelledAt = &now
		}
	case len(h.job.FailedPages) > 0:
		h.job.Status = entity.JobPartiallySucceeded
	default:
		h.job.Status = entity.JobSucceeded
	}
	o.consolidate(h.job)
	h.mu.Unlock()

	// Persistence happens outside the job lock; the goroutine is done
	// writing, readers only see terminal state from here on.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := o.results.Save(ctx, h.job); err != nil {
		slog.Error("failed to persist job result", "job_id", h.job.ID, "error", err)
	}
	o.writeSnapshot(ctx, h)

	slog.Info("domain analysis finished",
		"job_id", h.job.ID,
		"status", h.job.Status,
		"completed", h.job.Completed,
		"failed", len(h.job.FailedPages),
	)
}

// consolidate runs the color engine over the aggregate. Pure and total:
// it cannot fail, malformed observations are dropped and counted.
func (o *auditOrchestrator) consolidate(job *entity.DomainAnalysisJob) {
	table, dropped := colors.Consolidate(job.Merged.Colors, o.colorOpts)
	job.Merged.ColorTable = table
	job.Merged.ColorSummary = colors.DeriveSummary(table, o.colorOpts, dropped)
	job.DroppedInvalid = dropped
}

// resolvePages turns the request into a concrete page list, capped at
// MaxPages. Sitemap absence degrades to the discovery fallback's notice,
// never an error.
func (o *auditOrchestrator) resolvePages(ctx context.Context, opts StartOptions) ([]string, string) {
	if len(opts.URLs) > 0 {
		urls := dedupePages(opts.URLs)
		if len(urls) > opts.MaxPages {
			urls = urls[:opts.MaxPages]
		}
		return urls, ""
	}

	urls, notice, err := o.sitemap.Discover(ctx, opts.Domain)
	if err != nil {
		slog.Warn("sitemap discovery failed", "domain", opts.Domain, "error", err)
		return nil, fmt.Sprintf("page discovery failed for %s: %v", opts.Domain, err)
	}
	if len(urls) > opts.MaxPages {
		urls = urls[:opts.MaxPages]
	}
	return urls, notice
}

func (o *auditOrchestrator) writeSnapshot(ctx context.Context, h *jobHandle) {
	h.mu.Lock()
	snap := &entity.ProgressSnapshot{
		JobID:      h.job.ID,
		Status:     h.job.Status,
		Total:      h.job.Total,
		Completed:  h.job.Completed,
		Failed:     len(h.job.FailedPages),
		CurrentURL: h.job.CurrentURL,
		UpdatedAt:  time.Now(),
	}
	h.mu.Unlock()

	if err := o.progress.Set(ctx, snap); err != nil {
		slog.Warn("failed to write progress snapshot", "job_id", snap.JobID, "error", err)
	}
}

// dedupePages collapses URLs that normalize to the same page path,
// keeping the first occurrence. Total counts each page exactly once;
// the merger keys by the same normalized path.
func dedupePages(urls []string) []string {
	seen := make(map[string]bool, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		key := utils.NormalizePagePath(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, u)
	}
	return out
}

func errorType(err error) string {
	switch {
	case errors.Is(err, repository.ErrSessionTimeout):
		return "timeout"
	case errors.Is(err, repository.ErrSessionCreationFailed):
		return "session_creation"
	case errors.Is(err, repository.ErrExtractionFailed):
		return "extraction"
	default:
		return "unknown"
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return u.Hostname()
}
