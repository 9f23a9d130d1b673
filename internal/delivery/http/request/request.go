package request

// StartAuditRequest starts a domain analysis job. Either Domain or URLs
// must be set; URLs wins when both are present.
type StartAuditRequest struct {
	Domain   string   `json:"domain,omitempty"`
	URLs     []string `json:"urls,omitempty"`
	Mode     string   `json:"mode,omitempty"` // desktop, desktop+mobile, mobile
	MaxPages int      `json:"max_pages,omitempty"`
	// DelayBetweenPagesMS overrides the configured inter-page throttle.
	DelayBetweenPagesMS int `json:"delay_between_pages_ms,omitempty"`
}

// RetryPageRequest re-runs one failed page of a finished job.
type RetryPageRequest struct {
	URL string `json:"url"`
}
