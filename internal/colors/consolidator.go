package colors

import (
	"sort"
	"strings"

	"github.com/user/designaudit-service/internal/entity"
)

// Options tunes the consolidation thresholds. Both distances are in
// redmean units; the defaults merge sub-visible rendering differences
// while keeping intentional brand-palette variations apart. They are
// tuned empirically, not claimed optimal.
type Options struct {
	// MergeThreshold is the Step 1 binning distance. Observations below
	// it join an existing cluster permanently.
	MergeThreshold float64
	// FamilyThreshold is the Step 3 grouping distance. Canonical
	// clusters below it report as one family, without merging counts.
	FamilyThreshold float64
	// NeutralTolerance is the max channel spread for the gray subset.
	NeutralTolerance int
	// OutlierMaxCount flags clusters at or below this total count as
	// possibly accidental.
	OutlierMaxCount int
}

// DefaultOptions returns the tuned defaults.
func DefaultOptions() Options {
	return Options{
		MergeThreshold:   12.0,
		FamilyThreshold:  55.0,
		NeutralTolerance: 10,
		OutlierMaxCount:  2,
	}
}

// cluster is the working representation during the scan.
type cluster struct {
	canonical RGB
	instances []entity.ColorObservation
	// originalHex per instance, normalized; parallel to instances.
	hexes []string
}

// Consolidate reduces raw color observations to a canonical color table.
// Every valid observation is assigned to exactly one cluster; malformed
// color strings are dropped and counted in the second return value.
//
// The result is a pure function of the observation set: input is sorted
// canonically before the incremental scan, so any input order yields the
// same canonical-hex set and per-cluster counts.
func Consolidate(observations []entity.ColorObservation, opts Options) (map[string]*entity.ColorCluster, int) {
	valid := make([]entity.ColorObservation, 0, len(observations))
	parsed := make([]RGB, 0, len(observations))
	dropped := 0

	for _, obs := range observations {
		c, ok := ParseHex(obs.Hex)
		if !ok {
			dropped++
			continue
		}
		obs.Hex = c.Hex()
		valid = append(valid, obs)
		parsed = append(parsed, c)
	}

	order := make([]int, len(valid))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		oa, ob := valid[order[a]], valid[order[b]]
		if oa.Hex != ob.Hex {
			return oa.Hex < ob.Hex
		}
		if oa.PageURL != ob.PageURL {
			return oa.PageURL < ob.PageURL
		}
		return oa.Selector < ob.Selector
	})

	// Step 1: incremental fuzzy binning against current canonicals.
	var clusters []*cluster
	for _, idx := range order {
		obs, rgb := valid[idx], parsed[idx]

		best := -1
		bestDist := 0.0
		for i, cl := range clusters {
			d := Redmean(rgb, cl.canonical)
			if best == -1 || d < bestDist {
				best, bestDist = i, d
			}
		}

		if best >= 0 && bestDist < opts.MergeThreshold {
			cl := clusters[best]
			cl.instances = append(cl.instances, obs)
			cl.hexes = append(cl.hexes, obs.Hex)
		} else {
			clusters = append(clusters, &cluster{
				canonical: rgb,
				instances: []entity.ColorObservation{obs},
				hexes:     []string{obs.Hex},
			})
		}
	}

	// Step 2: majority-rule re-keying, building a new table rather than
	// mutating keys in place.
	table := make(map[string]*entity.ColorCluster, len(clusters))
	for _, cl := range clusters {
		canonical := electCanonical(cl)

		merged := make(map[string]bool)
		for _, h := range cl.hexes {
			if h != canonical {
				merged[h] = true
			}
		}
		oldCanonical := cl.canonical.Hex()
		if oldCanonical != canonical {
			merged[oldCanonical] = true
		}
		delete(merged, canonical)

		table[canonical] = &entity.ColorCluster{
			CanonicalHex: canonical,
			Count:        len(cl.instances),
			Instances:    cl.instances,
			MergedHexes:  merged,
		}
	}

	return table, dropped
}

// electCanonical picks the most frequent original hex in the cluster.
// Count ties break by the highest-priority element type among the tied
// hexes' observations (headings beat interactive elements beat body
// content), then lexicographically for full determinism.
func electCanonical(cl *cluster) string {
	counts := make(map[string]int)
	ranks := make(map[string]int)
	for i, h := range cl.hexes {
		counts[h]++
		if r := elementRank(cl.instances[i].ElementTag); r > ranks[h] {
			ranks[h] = r
		}
	}

	var winner string
	for h := range counts {
		if winner == "" {
			winner = h
			continue
		}
		switch {
		case counts[h] > counts[winner]:
			winner = h
		case counts[h] == counts[winner] && ranks[h] > ranks[winner]:
			winner = h
		case counts[h] == counts[winner] && ranks[h] == ranks[winner] && h < winner:
			winner = h
		}
	}
	return winner
}

// elementRank orders element types by how likely they are to carry
// brand-defining colors: headings, then interactive elements, then body
// content, then everything else.
func elementRank(tag string) int {
	switch strings.ToLower(tag) {
	case "h1", "h2", "h3", "h4", "h5", "h6":
		return 3
	case "a", "button":
		return 2
	case "p", "span", "li", "td", "blockquote", "label":
		return 1
	default:
		return 0
	}
}
