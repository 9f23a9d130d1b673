package colors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/designaudit-service/internal/entity"
)

func buildTable(t *testing.T, observations []entity.ColorObservation) map[string]*entity.ColorCluster {
	t.Helper()
	table, _ := Consolidate(observations, DefaultOptions())
	return table
}

func TestDeriveSummaryCountsByUsage(t *testing.T) {
	t.Parallel()

	table := buildTable(t, []entity.ColorObservation{
		obs("#112233", "h1", entity.UsageText),
		obs("#112233", "div", entity.UsageBackground),
		obs("#ff0000", "button", entity.UsageBackground),
	})

	summary := DeriveSummary(table, DefaultOptions(), 0)

	assert.Equal(t, 2, summary.TotalCanonical)
	// #112233 serves both usages, so it counts once in each category.
	assert.Equal(t, 1, summary.ByUsage[entity.UsageText])
	assert.Equal(t, 2, summary.ByUsage[entity.UsageBackground])
}

func TestDeriveSummaryNeutralsAndOutliers(t *testing.T) {
	t.Parallel()

	observations := append(
		repeat(obs("#808080", "p", entity.UsageText), 5),
		obs("#cc2200", "h1", entity.UsageText), // count 1: outlier
	)

	summary := DeriveSummary(buildTable(t, observations), DefaultOptions(), 0)

	assert.Equal(t, []string{"#808080"}, summary.Neutrals)
	assert.Equal(t, []string{"#cc2200"}, summary.Outliers)
}

func TestFamilyGroupingIsNonDestructive(t *testing.T) {
	t.Parallel()

	// Three blues within the family threshold but beyond the merge
	// threshold, plus one red far from everything.
	observations := []entity.ColorObservation{}
	observations = append(observations, repeat(obs("#2244aa", "h1", entity.UsageText), 4)...)
	observations = append(observations, repeat(obs("#2244bb", "h2", entity.UsageText), 2)...)
	observations = append(observations, repeat(obs("#2244c8", "h3", entity.UsageText), 1)...)
	observations = append(observations, repeat(obs("#cc2200", "a", entity.UsageText), 3)...)

	table := buildTable(t, observations)
	require.Len(t, table, 4, "family candidates must stay separate clusters")

	summary := DeriveSummary(table, DefaultOptions(), 0)

	require.Len(t, summary.Families, 2)

	blues := summary.Families[0]
	assert.Equal(t, "#2244aa", blues.RepresentativeHex, "highest count represents the family")
	assert.ElementsMatch(t, []string{"#2244aa", "#2244bb", "#2244c8"}, blues.MemberHexes)
	assert.Equal(t, 7, blues.TotalCount)

	// Underlying clusters keep their own counts.
	assert.Equal(t, 4, table["#2244aa"].Count)
	assert.Equal(t, 2, table["#2244bb"].Count)
	assert.Equal(t, 1, table["#2244c8"].Count)
}

func TestDeriveSummaryCarriesDroppedCount(t *testing.T) {
	t.Parallel()

	summary := DeriveSummary(map[string]*entity.ColorCluster{}, DefaultOptions(), 7)

	assert.Equal(t, 7, summary.DroppedInvalid)
	assert.Zero(t, summary.TotalCanonical)
	assert.Empty(t, summary.Families)
}
