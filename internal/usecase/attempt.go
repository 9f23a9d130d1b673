package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
)

// DefaultTimeoutSchedule is the escalating per-attempt budget. Transient
// slow loads are common, so retries get a larger budget instead of a
// fixed one, which cuts false negatives on first-load-heavy pages.
var DefaultTimeoutSchedule = []time.Duration{15 * time.Second, 20 * time.Second, 25 * time.Second}

// AttemptManager runs the analysis attempts for one page task. Each
// attempt uses a fresh render session with a hard per-attempt deadline;
// the session is disposed on every exit path.
type AttemptManager struct {
	sessions  repository.RenderSessionFactory
	collector repository.SampleCollector
	mobile    repository.MobileAuditor

	schedule     []time.Duration
	pollInterval time.Duration
	settleDelay  time.Duration
	// cmsSettleDelay applies when the session detects a CMS-rendered
	// page, which empirically needs more settle time before style
	// extraction is reliable.
	cmsSettleDelay time.Duration
}

// NewAttemptManager wires an attempt manager. A nil or empty schedule
// falls back to DefaultTimeoutSchedule.
func NewAttemptManager(
	sessions repository.RenderSessionFactory,
	collector repository.SampleCollector,
	mobile repository.MobileAuditor,
	schedule []time.Duration,
	pollInterval, settleDelay, cmsSettleDelay time.Duration,
) *AttemptManager {
	if len(schedule) == 0 {
		schedule = DefaultTimeoutSchedule
	}
	if pollInterval <= 0 {
		pollInterval = 250 * time.Millisecond
	}
	return &AttemptManager{
		sessions:       sessions,
		collector:      collector,
		mobile:         mobile,
		schedule:       schedule,
		pollInterval:   pollInterval,
		settleDelay:    settleDelay,
		cmsSettleDelay: cmsSettleDelay,
	}
}

// Schedule returns the configured timeout schedule.
func (m *AttemptManager) Schedule() []time.Duration {
	return m.schedule
}

// Run executes up to len(schedule) attempts for the task. It returns the
// extraction record on success, the list of attempted timeouts in
// milliseconds (one entry per consumed attempt), and the terminal error:
// nil on success, ErrAnalysisCancelled when cancellation was observed,
// or the last attempt's failure once the schedule is exhausted.
func (m *AttemptManager) Run(ctx context.Context, task *entity.PageTask) (*entity.ExtractionRecord, []int64, error) {
	var attempted []int64
	var lastErr error

	for i, budget := range m.schedule {
		task.AttemptIndex = i
		task.Status = entity.TaskRunning
		attempted = append(attempted, budget.Milliseconds())

		rec, err := m.runAttempt(ctx, task, budget)
		if err == nil {
			task.Status = entity.TaskSucceeded
			return rec, attempted, nil
		}
		if errors.Is(err, repository.ErrAnalysisCancelled) {
			task.Status = entity.TaskCancelled
			return nil, attempted, err
		}

		lastErr = err
		slog.Warn("page analysis attempt failed",
			"url", task.URL,
			"attempt", i+1,
			"budget_ms", budget.Milliseconds(),
			"error", err,
		)
	}

	task.Status = entity.TaskFailed
	return nil, attempted, lastErr
}

// runAttempt performs one attempt against a fresh render session.
// Cancellation is checked at every suspension point: before creating the
// session, on each ready-poll tick, around the settle delay, and before
// returning the result.
func (m *AttemptManager) runAttempt(ctx context.Context, task *entity.PageTask, budget time.Duration) (*entity.ExtractionRecord, error) {
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	attemptCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	session, err := m.sessions.Create(attemptCtx, task.URL)
	if err != nil {
		if cerr := m.classify(ctx, attemptCtx, err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrSessionCreationFailed, err)
	}
	defer session.Dispose()

	if err := m.waitReady(ctx, attemptCtx, session); err != nil {
		return nil, err
	}

	if err := m.settle(ctx, attemptCtx, session); err != nil {
		return nil, err
	}

	if task.Mode == entity.MobileOnly {
		if err := session.EmulateMobile(attemptCtx); err != nil {
			return nil, fmt.Errorf("%w: mobile emulation: %v", repository.ErrExtractionFailed, err)
		}
	}

	rec, err := m.collector.Collect(attemptCtx, session, task.URL)
	if err != nil {
		if cerr := m.classify(ctx, attemptCtx, err); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("%w: %v", repository.ErrExtractionFailed, err)
	}

	// The mobile audit is sequenced after extraction because it consumes
	// the contrast data the style pass produced.
	if task.Mode == entity.DesktopPlusMobile || task.Mode == entity.MobileOnly {
		if task.Mode == entity.DesktopPlusMobile {
			if err := session.EmulateMobile(attemptCtx); err != nil {
				return nil, fmt.Errorf("%w: mobile emulation: %v", repository.ErrExtractionFailed, err)
			}
		}
		audit, err := m.mobile.Audit(attemptCtx, session, task.URL, rec.ContrastFailures)
		if err != nil {
			if cerr := m.classify(ctx, attemptCtx, err); cerr != nil {
				return nil, cerr
			}
			return nil, fmt.Errorf("%w: mobile audit: %v", repository.ErrExtractionFailed, err)
		}
		rec.Mobile = audit
	}

	if err := cancelled(ctx); err != nil {
		return nil, err
	}
	return rec, nil
}

// waitReady polls the session at a bounded interval until it reports
// ready, the attempt budget expires, or cancellation is observed.
func (m *AttemptManager) waitReady(ctx, attemptCtx context.Context, session repository.RenderSession) error {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		ready, err := session.PollReady(attemptCtx)
		if err != nil {
			if cerr := m.classify(ctx, attemptCtx, err); cerr != nil {
				return cerr
			}
			return fmt.Errorf("%w: readiness probe: %v", repository.ErrExtractionFailed, err)
		}
		if ready {
			return nil
		}

		select {
		case <-ctx.Done():
			return repository.ErrAnalysisCancelled
		case <-attemptCtx.Done():
			return repository.ErrSessionTimeout
		case <-ticker.C:
		}
	}
}

// settle applies the post-ready delay, doubled for CMS-rendered pages.
func (m *AttemptManager) settle(ctx, attemptCtx context.Context, session repository.RenderSession) error {
	if err := cancelled(ctx); err != nil {
		return err
	}

	delay := m.settleDelay
	if session.IsCMSRendered(attemptCtx) {
		delay = m.cmsSettleDelay
	}
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return repository.ErrAnalysisCancelled
	case <-attemptCtx.Done():
		return repository.ErrSessionTimeout
	case <-timer.C:
		return nil
	}
}

// classify maps a failure observed during an attempt to the taxonomy:
// caller cancellation beats everything, then the attempt deadline.
// Returns nil when the error is neither, leaving classification to the
// caller.
func (m *AttemptManager) classify(ctx, attemptCtx context.Context, _ error) error {
	if ctx.Err() != nil {
		return repository.ErrAnalysisCancelled
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return repository.ErrSessionTimeout
	}
	return nil
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return repository.ErrAnalysisCancelled
	}
	return nil
}
