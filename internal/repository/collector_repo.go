package repository

import (
	"context"

	"github.com/user/designaudit-service/internal/entity"
)

// SampleCollector walks a rendered page and produces its raw extraction
// record: element buckets, color observations and contrast failures.
// A collector failure maps to ErrExtractionFailed and is retried, since
// it is often load-order related.
type SampleCollector interface {
	Collect(ctx context.Context, session RenderSession, pageURL string) (*entity.ExtractionRecord, error)
}

// MobileAuditor runs the mobile-usability pass against an already
// rendered session. It consumes the contrast data produced by the style
// pass, so the two are sequenced, never parallel.
type MobileAuditor interface {
	Audit(ctx context.Context, session RenderSession, pageURL string, contrast []entity.ContrastFailure) (*entity.MobileAudit, error)
}
