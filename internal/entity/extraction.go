package entity

// ColorUsage classifies how a color was applied to the element it was
// observed on.
type ColorUsage string

const (
	UsageBackground ColorUsage = "background"
	UsageText       ColorUsage = "text"
	UsageBorder     ColorUsage = "border"
	UsageFill       ColorUsage = "fill"
)

// ColorObservation is one raw (hex, usage, location) sample scraped from
// a rendered page. Observations are never mutated; many observations may
// map to one cluster after consolidation.
type ColorObservation struct {
	Hex            string     `json:"hex"`
	UsedAs         ColorUsage `json:"used_as"`
	PageURL        string     `json:"page_url"`
	ElementTag     string     `json:"element_tag"`
	Selector       string     `json:"selector"`
	ContextSnippet string     `json:"context_snippet,omitempty"`
}

// PageElement is one located instance of a heading, paragraph, button,
// link or image, with the computed style properties the audit cares about.
type PageElement struct {
	Tag        string `json:"tag"`
	Selector   string `json:"selector"`
	Text       string `json:"text,omitempty"`
	FontFamily string `json:"font_family,omitempty"`
	FontSize   string `json:"font_size,omitempty"`
	FontWeight string `json:"font_weight,omitempty"`
	Color      string `json:"color,omitempty"`
	Background string `json:"background,omitempty"`
}

// ContrastFailure records one element whose text/background contrast
// ratio fell below the WCAG AA threshold.
type ContrastFailure struct {
	PageURL    string  `json:"page_url"`
	Selector   string  `json:"selector"`
	Foreground string  `json:"foreground"`
	Background string  `json:"background"`
	Ratio      float64 `json:"ratio"`
}

// MobileIssue is one mobile-usability finding (missing viewport meta,
// undersized tap target, horizontal overflow, ...).
type MobileIssue struct {
	Kind     string `json:"kind"`
	Selector string `json:"selector,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// MobileAudit is the output of the mobile-usability pass.
type MobileAudit struct {
	ViewportMeta string        `json:"viewport_meta"`
	Issues       []MobileIssue `json:"issues"`
}

// ExtractionRecord is one page's raw analysis output. It is produced
// exactly once per successful PageTask and is immutable after creation;
// the result merger owns it until it is folded into the aggregate.
type ExtractionRecord struct {
	PageURL          string             `json:"page_url"`
	Headings         []PageElement      `json:"headings"`
	Paragraphs       []PageElement      `json:"paragraphs"`
	Buttons          []PageElement      `json:"buttons"`
	Links            []PageElement      `json:"links"`
	Images           []PageElement      `json:"images"`
	Colors           []ColorObservation `json:"colors"`
	ContrastFailures []ContrastFailure  `json:"contrast_failures"`
	Mobile           *MobileAudit       `json:"mobile,omitempty"`
	CMSRendered      bool               `json:"cms_rendered"`
}
