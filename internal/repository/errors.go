package repository

import "errors"

// Error taxonomy for page analysis. The attempt manager retries the
// first three with the next larger timeout; cancellation propagates
// immediately and halts the whole crawl.
var (
	ErrSessionTimeout        = errors.New("render session exceeded its attempt budget")
	ErrSessionCreationFailed = errors.New("render session could not be created")
	ErrExtractionFailed      = errors.New("style extraction failed")
	ErrAnalysisCancelled     = errors.New("analysis cancelled")

	ErrJobNotFound    = errors.New("job not found")
	ErrJobNotFinished = errors.New("job has not finished")
)
