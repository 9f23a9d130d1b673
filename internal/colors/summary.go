package colors

import (
	"sort"

	"github.com/user/designaudit-service/internal/entity"
)

// DeriveSummary computes the report-time view of a consolidated color
// table: per-usage counts, the neutral/gray subset, low-count outliers
// and the broader color families. Everything is recomputed from the
// final cluster keys so re-keying can never leave a stale category
// table. droppedInvalid is carried through for diagnostics.
func DeriveSummary(table map[string]*entity.ColorCluster, opts Options, droppedInvalid int) *entity.ColorSummary {
	summary := &entity.ColorSummary{
		TotalCanonical: len(table),
		ByUsage:        make(map[entity.ColorUsage]int),
		DroppedInvalid: droppedInvalid,
	}

	hexes := sortedKeys(table)

	for _, hex := range hexes {
		cl := table[hex]

		usages := make(map[entity.ColorUsage]bool)
		for _, obs := range cl.Instances {
			usages[obs.UsedAs] = true
		}
		for u := range usages {
			summary.ByUsage[u]++
		}

		rgb, ok := ParseHex(hex)
		if !ok {
			continue // cannot happen for keys produced by Consolidate
		}
		if IsNeutral(rgb, opts.NeutralTolerance) {
			summary.Neutrals = append(summary.Neutrals, hex)
		}
		if cl.Count <= opts.OutlierMaxCount {
			summary.Outliers = append(summary.Outliers, hex)
		}
	}

	summary.Families = groupFamilies(table, opts.FamilyThreshold)

	return summary
}

// groupFamilies clusters canonical colors with a looser threshold for
// display ("5 shades of blue"). Unlike Step 1 binning this grouping is
// non-destructive: member clusters keep their own counts. Greedy pass
// over canonicals ordered by descending count, so the most used shade
// represents its family.
func groupFamilies(table map[string]*entity.ColorCluster, threshold float64) []entity.ColorFamily {
	hexes := sortedKeys(table)
	sort.SliceStable(hexes, func(a, b int) bool {
		return table[hexes[a]].Count > table[hexes[b]].Count
	})

	assigned := make(map[string]bool, len(hexes))
	var families []entity.ColorFamily

	for _, rep := range hexes {
		if assigned[rep] {
			continue
		}
		assigned[rep] = true
		repRGB, _ := ParseHex(rep)

		family := entity.ColorFamily{
			RepresentativeHex: rep,
			MemberHexes:       []string{rep},
			TotalCount:        table[rep].Count,
		}

		for _, hex := range hexes {
			if assigned[hex] {
				continue
			}
			rgb, _ := ParseHex(hex)
			if Redmean(repRGB, rgb) < threshold {
				assigned[hex] = true
				family.MemberHexes = append(family.MemberHexes, hex)
				family.TotalCount += table[hex].Count
			}
		}

		families = append(families, family)
	}

	return families
}

func sortedKeys(table map[string]*entity.ColorCluster) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
