package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/designaudit-service/internal/delivery/http/handler"
	"github.com/user/designaudit-service/internal/delivery/http/router"
	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/internal/repository"
	"github.com/user/designaudit-service/internal/usecase"
	"github.com/user/designaudit-service/pkg/metrics"
)

func TestMain(m *testing.M) {
	metrics.Init()
	os.Exit(m.Run())
}

// stubAudits scripts the manager responses and records received inputs.
type stubAudits struct {
	startID   string
	startErr  error
	startOpts usecase.StartOptions

	cancelErr error

	statusView *usecase.JobStatusView
	statusErr  error

	resultJob *entity.DomainAnalysisJob
	resultErr error

	retryJob *entity.DomainAnalysisJob
	retryErr error
	retryURL string
}

func (s *stubAudits) Start(_ context.Context, opts usecase.StartOptions) (string, error) {
	s.startOpts = opts
	return s.startID, s.startErr
}

func (s *stubAudits) Cancel(string) error { return s.cancelErr }

func (s *stubAudits) Status(context.Context, string) (*usecase.JobStatusView, error) {
	return s.statusView, s.statusErr
}

func (s *stubAudits) Result(context.Context, string) (*entity.DomainAnalysisJob, error) {
	return s.resultJob, s.resultErr
}

func (s *stubAudits) RetryPage(_ context.Context, _, pageURL string) (*entity.DomainAnalysisJob, error) {
	s.retryURL = pageURL
	return s.retryJob, s.retryErr
}

func serve(t *testing.T, stub *stubAudits, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.New(handler.NewHandler(stub)).ServeHTTP(rec, req)
	return rec
}

func finishedJob() *entity.DomainAnalysisJob {
	finished := time.Now()
	return &entity.DomainAnalysisJob{
		ID:         "job-1",
		Domain:     "example.com",
		Status:     entity.JobSucceeded,
		Total:      1,
		Completed:  1,
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: &finished,
		Merged: &entity.MergedResult{
			AnalyzedPages: []string{"https://example.com/"},
		},
	}
}

func TestHandleStartAudit(t *testing.T) {
	t.Parallel()

	stub := &stubAudits{startID: "job-42"}
	rec := serve(t, stub, http.MethodPost, "/api/audits",
		`{"domain":"example.com","mode":"desktop+mobile","max_pages":10,"delay_between_pages_ms":500}`)

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "job-42", resp["job_id"])
	assert.Equal(t, "accepted", resp["status"])

	assert.Equal(t, "example.com", stub.startOpts.Domain)
	assert.Equal(t, entity.DesktopPlusMobile, stub.startOpts.Mode)
	assert.Equal(t, 10, stub.startOpts.MaxPages)
	assert.Equal(t, 500*time.Millisecond, stub.startOpts.DelayBetweenPages)
}

func TestHandleStartAuditBadRequests(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubAudits{}, http.MethodPost, "/api/audits", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub := &stubAudits{startErr: usecase.ErrNoPagesRequested}
	rec = serve(t, stub, http.MethodPost, "/api/audits", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAuditStatus(t *testing.T) {
	t.Parallel()

	stub := &stubAudits{statusView: &usecase.JobStatusView{
		JobID:      "job-1",
		Status:     entity.JobRunning,
		Completed:  2,
		Failed:     1,
		Total:      5,
		Percent:    60,
		CurrentURL: "https://example.com/pricing",
	}}

	rec := serve(t, stub, http.MethodGet, "/api/audits/job-1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp["status"])
	assert.EqualValues(t, 2, resp["completed"])
	assert.EqualValues(t, 5, resp["total"])
	assert.Equal(t, "https://example.com/pricing", resp["current_url"])
}

func TestHandleAuditStatusNotFound(t *testing.T) {
	t.Parallel()

	stub := &stubAudits{statusErr: repository.ErrJobNotFound}
	rec := serve(t, stub, http.MethodGet, "/api/audits/missing/status", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCancelAudit(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubAudits{}, http.MethodPost, "/api/audits/job-1/cancel", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	stub := &stubAudits{cancelErr: repository.ErrJobNotFound}
	rec = serve(t, stub, http.MethodPost, "/api/audits/missing/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAuditResult(t *testing.T) {
	t.Parallel()

	stub := &stubAudits{resultJob: finishedJob()}
	rec := serve(t, stub, http.MethodGet, "/api/audits/job-1/result", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "succeeded", resp["status"])
	// Empty collections serialize as arrays, not null.
	assert.NotNil(t, resp["failed_pages"])
	assert.Equal(t, []any{"https://example.com/"}, resp["analyzed_pages"])
}

func TestHandleAuditResultErrors(t *testing.T) {
	t.Parallel()

	stub := &stubAudits{resultErr: repository.ErrJobNotFinished}
	rec := serve(t, stub, http.MethodGet, "/api/audits/job-1/result", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	stub = &stubAudits{resultErr: repository.ErrJobNotFound}
	rec = serve(t, stub, http.MethodGet, "/api/audits/missing/result", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleRetryPage(t *testing.T) {
	t.Parallel()

	stub := &stubAudits{retryJob: finishedJob()}
	rec := serve(t, stub, http.MethodPost, "/api/audits/job-1/retry",
		`{"url":"https://example.com/broken"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/broken", stub.retryURL)
}

func TestHandleRetryPageErrors(t *testing.T) {
	t.Parallel()

	// Missing URL never reaches the manager.
	rec := serve(t, &stubAudits{}, http.MethodPost, "/api/audits/job-1/retry", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub := &stubAudits{retryErr: usecase.ErrPageNotFailed}
	rec = serve(t, stub, http.MethodPost, "/api/audits/job-1/retry", `{"url":"https://example.com/ok"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	stub = &stubAudits{retryErr: errors.New("render session timed out")}
	rec = serve(t, stub, http.MethodPost, "/api/audits/job-1/retry", `{"url":"https://example.com/broken"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHandleHealthCheck(t *testing.T) {
	t.Parallel()

	rec := serve(t, &stubAudits{}, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
