package usecase

import (
	"github.com/user/designaudit-service/internal/entity"
	"github.com/user/designaudit-service/pkg/utils"
)

// ResultMerger folds per-page extraction records into a running
// aggregate. Merging is idempotent: a record whose page path has
// already been folded is a no-op, and contrast failures deduplicate by
// (page path, selector) so duplicate pages never double-count.
type ResultMerger struct {
	seenPages    map[string]bool
	seenContrast map[string]bool
}

// NewResultMerger creates a merger with empty dedup state.
func NewResultMerger() *ResultMerger {
	return &ResultMerger{
		seenPages:    make(map[string]bool),
		seenContrast: make(map[string]bool),
	}
}

// NewResultMergerFromAggregate rebuilds dedup state from an existing
// aggregate, used when a finished job is reloaded for a single-page
// retry.
func NewResultMergerFromAggregate(agg *entity.MergedResult) *ResultMerger {
	m := NewResultMerger()
	for _, page := range agg.AnalyzedPages {
		m.seenPages[utils.NormalizePagePath(page)] = true
	}
	for _, cf := range agg.ContrastFailures {
		m.seenContrast[contrastKey(cf)] = true
	}
	return m
}

// Merge folds one extraction record into the aggregate. Returns false
// when the record's page was already merged and nothing changed.
func (m *ResultMerger) Merge(agg *entity.MergedResult, rec *entity.ExtractionRecord) bool {
	key := utils.NormalizePagePath(rec.PageURL)
	if m.seenPages[key] {
		return false
	}
	m.seenPages[key] = true

	agg.AnalyzedPages = append(agg.AnalyzedPages, rec.PageURL)
	agg.Headings = append(agg.Headings, rec.Headings...)
	agg.Paragraphs = append(agg.Paragraphs, rec.Paragraphs...)
	agg.Buttons = append(agg.Buttons, rec.Buttons...)
	agg.Links = append(agg.Links, rec.Links...)
	agg.Images = append(agg.Images, rec.Images...)
	agg.Colors = append(agg.Colors, rec.Colors...)

	for _, cf := range rec.ContrastFailures {
		ck := contrastKey(cf)
		if m.seenContrast[ck] {
			continue
		}
		m.seenContrast[ck] = true
		agg.ContrastFailures = append(agg.ContrastFailures, cf)
	}

	if rec.Mobile != nil {
		agg.MobileIssues = append(agg.MobileIssues, rec.Mobile.Issues...)
	}

	return true
}

func contrastKey(cf entity.ContrastFailure) string {
	return utils.NormalizePagePath(cf.PageURL) + "|" + cf.Selector
}
