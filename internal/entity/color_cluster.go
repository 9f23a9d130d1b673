package entity

// ColorCluster groups perceptually indistinguishable color observations
// under one canonical hex. Invariants: Count == len(Instances), and
// MergedHexes never contains CanonicalHex itself. The canonical hex may
// be re-keyed after the scan (majority rule), but the cluster and its
// instance list persist across re-keying.
type ColorCluster struct {
	CanonicalHex string             `json:"canonical_hex"`
	Count        int                `json:"count"`
	Instances    []ColorObservation `json:"instances"`
	MergedHexes  map[string]bool    `json:"merged_hexes"`
}

// ColorFamily is a display-only grouping of canonical clusters that sit
// within the family threshold of each other. Member counts are never
// merged.
type ColorFamily struct {
	RepresentativeHex string   `json:"representative_hex"`
	MemberHexes       []string `json:"member_hexes"`
	TotalCount        int      `json:"total_count"`
}

// ColorSummary is the derived report view of a consolidated color table.
// All counts are recomputed from the final cluster keys, never cached
// from pre-re-keying state.
type ColorSummary struct {
	TotalCanonical int                `json:"total_canonical"`
	ByUsage        map[ColorUsage]int `json:"by_usage"`
	Neutrals       []string           `json:"neutrals"`
	Outliers       []string           `json:"outliers"`
	Families       []ColorFamily      `json:"families"`
	DroppedInvalid int                `json:"dropped_invalid"`
}
