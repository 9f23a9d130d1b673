package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/designaudit-service/internal/colors"
	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
)

type orchestratorFixture struct {
	manager     AuditManager
	factory     *fakeFactory
	collector   *fakeCollector
	sitemap     *fakeSitemap
	progress    *fakeProgressStore
	results     *fakeResultRepo
	failedPages *fakeFailedPageRepo
}

func newOrchestratorFixture() *orchestratorFixture {
	f := &orchestratorFixture{
		factory:     &fakeFactory{},
		collector:   newFakeCollector(),
		sitemap:     &fakeSitemap{},
		progress:    newFakeProgressStore(),
		results:     newFakeResultRepo(),
		failedPages: newFakeFailedPageRepo(),
	}
	attempts := NewAttemptManager(f.factory, f.collector, fakeMobileAuditor{}, nil, 5*time.Millisecond, 0, 0)
	f.manager = NewAuditOrchestrator(
		attempts,
		f.sitemap,
		f.progress,
		f.results,
		f.failedPages,
		colors.DefaultOptions(),
		time.Millisecond,
		0,
	)
	return f
}

// waitForTerminal blocks until the job leaves the running state.
func waitForTerminal(t *testing.T, manager AuditManager, jobID string) *JobStatusView {
	t.Helper()
	var view *JobStatusView
	require.Eventually(t, func() bool {
		v, err := manager.Status(context.Background(), jobID)
		if err != nil {
			return false
		}
		view = v
		return v.Status != entity.JobRunning
	}, 5*time.Second, 10*time.Millisecond, "job never reached a terminal state")
	return view
}

func TestStartRequiresPages(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	_, err := f.manager.Start(context.Background(), StartOptions{})
	require.ErrorIs(t, err, ErrNoPagesRequested)
}

func TestCrawlAllPagesSucceed(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	urls := []string{
		"https://example.com/",
		"https://example.com/about",
		"https://example.com/pricing",
	}

	jobID, err := f.manager.Start(context.Background(), StartOptions{URLs: urls, Mode: entity.DesktopOnly})
	require.NoError(t, err)

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, entity.JobSucceeded, view.Status)
	assert.Equal(t, 3, view.Completed)
	assert.Zero(t, view.Failed)
	assert.Equal(t, view.Total, view.Completed+view.Failed)
	assert.InDelta(t, 100.0, view.Percent, 0.01)

	job, err := f.manager.Result(context.Background(), jobID)
	require.NoError(t, err)
	assert.Len(t, job.Merged.AnalyzedPages, 3)
	assert.NotEmpty(t, job.Merged.ColorTable, "consolidation ran at finish")
	assert.True(t, f.factory.allDisposedOnce())

	stored, err := f.results.FindByJobID(context.Background(), jobID)
	require.NoError(t, err)
	require.NotNil(t, stored, "terminal job is persisted")
	assert.Equal(t, entity.JobSucceeded, stored.Status)
}

func TestCrawlRetriesWithEscalatingBudgets(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	f.collector.failuresPerURL["https://example.com/flaky"] = 2

	jobID, err := f.manager.Start(context.Background(), StartOptions{
		URLs: []string{"https://example.com/flaky"},
		Mode: entity.DesktopOnly,
	})
	require.NoError(t, err)

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, entity.JobSucceeded, view.Status)
	assert.Equal(t, 1, view.Completed)
	assert.Equal(t, 3, f.collector.callCount("https://example.com/flaky"),
		"two failures then a success consume exactly three attempts")
}

func TestCrawlContinuesPastExhaustedPage(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	urls := []string{
		"https://example.com/",
		"https://example.com/broken",
		"https://example.com/contact",
	}
	f.collector.failuresPerURL["https://example.com/broken"] = 3

	jobID, err := f.manager.Start(context.Background(), StartOptions{URLs: urls, Mode: entity.DesktopOnly})
	require.NoError(t, err)

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, entity.JobPartiallySucceeded, view.Status)
	assert.Equal(t, 2, view.Completed)
	assert.Equal(t, 1, view.Failed)
	assert.Equal(t, view.Total, view.Completed+view.Failed)

	job, err := f.manager.Result(context.Background(), jobID)
	require.NoError(t, err)
	require.Len(t, job.FailedPages, 1)

	fp := job.FailedPages[0]
	assert.Equal(t, "https://example.com/broken", fp.URL)
	assert.NotEmpty(t, fp.Reason)
	assert.Equal(t, []int64{15000, 20000, 25000}, fp.AttemptedTimeouts)
	assert.False(t, fp.Timestamp.IsZero())

	assert.True(t, f.failedPages.has(jobID, "https://example.com/broken"))
	assert.True(t, f.factory.allDisposedOnce())
}

func TestCancelStopsCrawlWithoutRecordingFailures(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	urls := []string{"https://example.com/slow", "https://example.com/next"}
	f.collector.blockUntilCancel["https://example.com/slow"] = true

	jobID, err := f.manager.Start(context.Background(), StartOptions{URLs: urls, Mode: entity.DesktopOnly})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.collector.callCount("https://example.com/slow") == 1
	}, 5*time.Second, 10*time.Millisecond, "first page never started")

	require.NoError(t, f.manager.Cancel(jobID))

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, entity.JobCancelled, view.Status)

	job, err := f.manager.Result(context.Background(), jobID)
	require.NoError(t, err)
	assert.Empty(t, job.FailedPages, "cancellation must not record failed pages")
	assert.NotNil(t, job.CancelledAt)
	assert.Zero(t, f.collector.callCount("https://example.com/next"), "no page starts after cancellation")
	assert.True(t, f.factory.allDisposedOnce())
}

func TestResultBeforeFinishIsRejected(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	f.collector.blockUntilCancel["https://example.com/slow"] = true

	jobID, err := f.manager.Start(context.Background(), StartOptions{
		URLs: []string{"https://example.com/slow"},
		Mode: entity.DesktopOnly,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return f.collector.callCount("https://example.com/slow") == 1
	}, 5*time.Second, 10*time.Millisecond)

	_, err = f.manager.Result(context.Background(), jobID)
	require.ErrorIs(t, err, repository.ErrJobNotFinished)

	require.NoError(t, f.manager.Cancel(jobID))
	waitForTerminal(t, f.manager, jobID)
}

func TestRetryPageFoldsIntoAggregate(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	urls := []string{"https://example.com/", "https://example.com/broken"}
	f.collector.failuresPerURL["https://example.com/broken"] = 3

	jobID, err := f.manager.Start(context.Background(), StartOptions{URLs: urls, Mode: entity.DesktopOnly})
	require.NoError(t, err)
	waitForTerminal(t, f.manager, jobID)

	// The failure budget is spent; the next attempt succeeds.
	job, err := f.manager.RetryPage(context.Background(), jobID, "https://example.com/broken")
	require.NoError(t, err)

	assert.Equal(t, entity.JobSucceeded, job.Status, "draining the failures upgrades the status")
	assert.Empty(t, job.FailedPages)
	assert.Equal(t, 2, job.Completed)
	assert.Len(t, job.Merged.AnalyzedPages, 2)
	assert.False(t, f.failedPages.has(jobID, "https://example.com/broken"))
}

func TestRetryPageRejectsNonFailedURL(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	jobID, err := f.manager.Start(context.Background(), StartOptions{
		URLs: []string{"https://example.com/"},
		Mode: entity.DesktopOnly,
	})
	require.NoError(t, err)
	waitForTerminal(t, f.manager, jobID)

	_, err = f.manager.RetryPage(context.Background(), jobID, "https://example.com/never-crawled")
	require.ErrorIs(t, err, ErrPageNotFailed)
}

func TestUnknownJobID(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	ctx := context.Background()

	_, err := f.manager.Status(ctx, "no-such-job")
	require.ErrorIs(t, err, repository.ErrJobNotFound)

	_, err = f.manager.Result(ctx, "no-such-job")
	require.ErrorIs(t, err, repository.ErrJobNotFound)

	require.ErrorIs(t, f.manager.Cancel("no-such-job"), repository.ErrJobNotFound)
}

func TestStatusMarksOrphanedSnapshotInterrupted(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	require.NoError(t, f.progress.Set(context.Background(), &entity.ProgressSnapshot{
		JobID:     "ghost-job",
		Status:    entity.JobRunning,
		Total:     10,
		Completed: 4,
		Failed:    1,
	}))

	view, err := f.manager.Status(context.Background(), "ghost-job")
	require.NoError(t, err)
	assert.Equal(t, entity.JobInterrupted, view.Status)
	assert.Equal(t, 4, view.Completed)
	assert.InDelta(t, 50.0, view.Percent, 0.01)
}

func TestSitemapDiscoveryDrivesPageSetAndNotices(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	f.sitemap.urls = []string{"https://example.com/", "https://example.com/blog"}
	f.sitemap.notice = "sitemap.xml not found, fell back to homepage links"

	jobID, err := f.manager.Start(context.Background(), StartOptions{Domain: "example.com", Mode: entity.DesktopOnly})
	require.NoError(t, err)

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, 2, view.Total)

	job, err := f.manager.Result(context.Background(), jobID)
	require.NoError(t, err)
	assert.Contains(t, job.Notices, f.sitemap.notice)
}

func TestDuplicateExplicitURLsCountOnce(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	jobID, err := f.manager.Start(context.Background(), StartOptions{
		URLs: []string{"https://example.com/about", "https://example.com/about/"},
		Mode: entity.DesktopOnly,
	})
	require.NoError(t, err)

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, entity.JobSucceeded, view.Status)
	assert.Equal(t, 1, view.Total, "trailing-slash variant is the same page")
	assert.Equal(t, 1, view.Completed)
	assert.Zero(t, view.Failed)
	assert.Equal(t, view.Total, view.Completed+view.Failed)
	assert.InDelta(t, 100.0, view.Percent, 0.01)

	job, err := f.manager.Result(context.Background(), jobID)
	require.NoError(t, err)
	assert.Len(t, job.Merged.AnalyzedPages, 1)
	assert.Equal(t, 1, f.collector.callCount("https://example.com/about"))
	assert.Zero(t, f.collector.callCount("https://example.com/about/"))
}

func TestStatusReadsDoNotBlockBehindRetry(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	const broken = "https://example.com/broken"
	f.collector.failuresPerURL[broken] = 3

	jobID, err := f.manager.Start(context.Background(), StartOptions{
		URLs: []string{broken},
		Mode: entity.DesktopOnly,
	})
	require.NoError(t, err)
	waitForTerminal(t, f.manager, jobID)

	f.collector.mu.Lock()
	f.collector.blockUntilCancel[broken] = true
	f.collector.mu.Unlock()

	retryCtx, cancelRetry := context.WithCancel(context.Background())
	retryDone := make(chan error, 1)
	go func() {
		_, rerr := f.manager.RetryPage(retryCtx, jobID, broken)
		retryDone <- rerr
	}()

	require.Eventually(t, func() bool {
		return f.collector.callCount(broken) == 4
	}, 5*time.Second, 10*time.Millisecond, "retry attempt never started")

	statusDone := make(chan struct{})
	go func() {
		_, serr := f.manager.Status(context.Background(), jobID)
		assert.NoError(t, serr)
		close(statusDone)
	}()
	select {
	case <-statusDone:
	case <-time.After(2 * time.Second):
		t.Fatal("status read blocked behind the in-flight retry")
	}

	cancelRetry()
	require.ErrorIs(t, <-retryDone, repository.ErrAnalysisCancelled)
}

func TestMaxPagesCapsExplicitList(t *testing.T) {
	t.Parallel()

	f := newOrchestratorFixture()
	jobID, err := f.manager.Start(context.Background(), StartOptions{
		URLs:     []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"},
		Mode:     entity.DesktopOnly,
		MaxPages: 2,
	})
	require.NoError(t, err)

	view := waitForTerminal(t, f.manager, jobID)
	assert.Equal(t, 2, view.Total)
	assert.Equal(t, 2, view.Completed)
	assert.Zero(t, f.collector.callCount("https://example.com/c"))
}
