package search_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/mission-search-api/models"
	"github.com/linesmerrill/mission-search-api/search"
	"github.com/linesmerrill/mission-search-api/search/memstore"
)

func selected(p search.Predicate, missions []models.Mission) []string {
	var ids []string
	for i := range missions {
		if memstore.Match(&missions[i], p) {
			ids = append(ids, missions[i].ID)
		}
	}
	return ids
}

func TestCompileRules_Empty(t *testing.T) {
	assert.Nil(t, search.CompileRules(nil))
	assert.Nil(t, search.CompileRules([]models.Rule{}))
}

func TestCompileRules_DropsInvalidRules(t *testing.T) {
	rules := []models.Rule{
		{Field: "", Operator: "is", Value: "x", Combinator: "and"},
		{Field: "domain", Operator: "", Value: "x", Combinator: "and"},
		{Field: "domain", Operator: "is", Value: "", Combinator: "and"},
		{Field: "notAField", Operator: "is", Value: "x", Combinator: "and"},
		{Field: "domain", Operator: "is_roughly", Value: "x", Combinator: "and"},
	}
	assert.Nil(t, search.CompileRules(rules))
}

func TestCompileRules_ExistsIgnoresValue(t *testing.T) {
	p := search.CompileRules([]models.Rule{{Field: "tags", Operator: "exists", Combinator: "and"}})
	assert.Equal(t, search.Leaf{Field: search.FieldTags, Op: search.OpExists}, p)

	p = search.CompileRules([]models.Rule{{Field: "tags", Operator: "does_not_exist", Value: "ignored", Combinator: "and"}})
	assert.Equal(t, search.Leaf{Field: search.FieldTags, Op: search.OpNotExists}, p)
}

func TestCompileRules_Operators(t *testing.T) {
	missions := []models.Mission{
		{ID: "a", Domain: "environnement", Title: "Nettoyage de la forêt", Tags: []string{"nature"}, Duration: intp(4)},
		{ID: "b", Domain: "sport", Title: "Entraîneur de foot", Duration: intp(10)},
		{ID: "c", Domain: "culture-loisirs", Title: "Fête du village"},
	}

	cases := []struct {
		name string
		rule models.Rule
		want []string
	}{
		{"is", models.Rule{Field: "domain", Operator: "is", Value: "sport"}, []string{"b"}},
		{"is_not", models.Rule{Field: "domain", Operator: "is_not", Value: "sport"}, []string{"a", "c"}},
		{"contains accent insensitive", models.Rule{Field: "title", Operator: "contains", Value: "FORET"}, []string{"a"}},
		{"contains matches accented value", models.Rule{Field: "title", Operator: "contains", Value: "entraineur"}, []string{"b"}},
		{"does_not_contain", models.Rule{Field: "title", Operator: "does_not_contain", Value: "fete"}, []string{"a", "b"}},
		{"starts_with", models.Rule{Field: "title", Operator: "starts_with", Value: "fête"}, []string{"c"}},
		{"starts_with anchors", models.Rule{Field: "title", Operator: "starts_with", Value: "village"}, nil},
		{"is_greater_than", models.Rule{Field: "duration", Operator: "is_greater_than", Value: "4"}, []string{"b"}},
		{"is_less_than", models.Rule{Field: "duration", Operator: "is_less_than", Value: "10"}, []string{"a"}},
		{"exists", models.Rule{Field: "tags", Operator: "exists"}, []string{"a"}},
		{"does_not_exist", models.Rule{Field: "tags", Operator: "does_not_exist"}, []string{"b", "c"}},
		{"is on array", models.Rule{Field: "tags", Operator: "is", Value: "nature"}, []string{"a"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.rule.Combinator = "and"
			p := search.CompileRules([]models.Rule{tc.rule})
			require.NotNil(t, p)
			assert.Equal(t, tc.want, selected(p, missions))
		})
	}
}

func TestCompileRules_UnparsableComparisonIsDropped(t *testing.T) {
	p := search.CompileRules([]models.Rule{
		{Field: "duration", Operator: "is_greater_than", Value: "a lot", Combinator: "and"},
		{Field: "startAt", Operator: "is_less_than", Value: "yesterday", Combinator: "and"},
		{Field: "duration", Operator: "contains", Value: "4", Combinator: "and"},
	})
	assert.Nil(t, p)
}

func TestCompileRules_FirstCombinatorTakesTheSecondOne(t *testing.T) {
	rules := []models.Rule{
		{Field: "domain", Operator: "is", Value: "sport", Combinator: "or"},
		{Field: "city", Operator: "is", Value: "Paris", Combinator: "and"},
		{Field: "country", Operator: "is", Value: "FR", Combinator: "and"},
	}

	// R1 lands in the "and" group with R2 and R3, no "or" group is built
	want := search.And{Terms: []search.Predicate{
		search.Leaf{Field: search.FieldDomain, Op: search.OpEq, Value: "sport"},
		search.Leaf{Field: search.FieldCity, Op: search.OpEq, Value: "Paris"},
		search.Leaf{Field: search.FieldCountry, Op: search.OpEq, Value: "FR"},
	}}
	assert.Equal(t, want, search.CompileRules(rules))

	// the caller's slice is left untouched
	assert.Equal(t, "or", rules[0].Combinator)
}

func TestCompileRules_OrGroupNeedsOneMatch(t *testing.T) {
	missions := []models.Mission{
		{ID: "sport", Domain: "sport", Country: "FR"},
		{ID: "culture", Domain: "culture", Country: "FR"},
		{ID: "solidarite", Domain: "solidarite", Country: "FR"},
		{ID: "sport-be", Domain: "sport", Country: "BE"},
	}
	rules := []models.Rule{
		{Field: "domain", Operator: "is", Value: "sport", Combinator: "and"},
		{Field: "domain", Operator: "is", Value: "culture", Combinator: "or"},
		{Field: "country", Operator: "is", Value: "FR", Combinator: "and"},
	}
	// R1 takes "or": (country = FR) AND (domain = sport OR domain = culture)
	p := search.CompileRules(rules)
	assert.Equal(t, []string{"sport", "culture"}, selected(p, missions))
}

func TestCompileRules_Deterministic(t *testing.T) {
	rules := []models.Rule{
		{Field: "domain", Operator: "is", Value: "sport", Combinator: "or"},
		{Field: "title", Operator: "contains", Value: "été", Combinator: "or"},
		{Field: "city", Operator: "starts_with", Value: "Saint", Combinator: "and"},
	}
	assert.Equal(t, search.CompileRules(rules), search.CompileRules(rules))
}

func TestContainsPattern(t *testing.T) {
	p := search.ContainsPattern("Été (2024)")
	re := regexp.MustCompile("(?i)" + string(p))
	assert.True(t, re.MatchString("un bel ete (2024) a Paris"))
	assert.True(t, re.MatchString("UN BEL ÉTÉ (2024)"))
	assert.False(t, re.MatchString("ete 2024"))

	assert.Equal(t, search.Pattern("^[cç][aàâäáã]f[eéèêë]"), search.PrefixPattern("Café"))
}

func intp(v int) *int {
	return &v
}
