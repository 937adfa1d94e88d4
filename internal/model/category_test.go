package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllCategories(t *testing.T) {
	t.Parallel()

	cats := AllCategories()
	assert.Equal(t, []Category{
		CategoryGrowthRate,
		CategoryPerformance,
		CategoryMarginalChanges,
		CategoryCapex,
	}, cats)

	for _, c := range cats {
		assert.True(t, c.Valid(), "category %s", c)
		assert.NotNil(t, c.Pattern(), "category %s", c)
	}
}

func TestCategoryStringValues(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "growth_rate", string(CategoryGrowthRate))
	assert.Equal(t, "performance", string(CategoryPerformance))
	assert.Equal(t, "marginal_changes", string(CategoryMarginalChanges))
	assert.Equal(t, "capex", string(CategoryCapex))
}

func TestCategoryMatches(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cat  Category
		text string
		want bool
	}{
		{"growth keyword", CategoryGrowthRate, "Revenue Growth of 12%", true},
		{"cagr upper", CategoryGrowthRate, "5Y CAGR 18%", true},
		{"growth miss", CategoryGrowthRate, "Dividend declared", false},
		{"performance profit", CategoryPerformance, "Net profit rose", true},
		{"performance returns", CategoryPerformance, "1Y Returns", true},
		{"marginal qoq", CategoryMarginalChanges, "QoQ sales up", true},
		{"marginal year", CategoryMarginalChanges, "Fiscal Year 2024", true},
		{"capex phrase", CategoryCapex, "capital   expenditure plan", true},
		{"capex investment", CategoryCapex, "New investment in plant", true},
		{"capex miss", CategoryCapex, "Share price today", false},
		{"unknown category", Category("bogus"), "growth", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.cat.Matches(tt.text))
		})
	}
}

func TestFragmentsMarshalText(t *testing.T) {
	t.Parallel()

	b, err := Fragments{"Revenue up 12%", `quoted "x"`}.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, `["Revenue up 12%","quoted \"x\""]`, string(b))

	b, err = Fragments(nil).MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, "[]", string(b))

	b, err = Fragments{"M&M revenue <up> 4%"}.MarshalText()
	assert.NoError(t, err)
	assert.Equal(t, `["M&M revenue <up> 4%"]`, string(b))
}

func TestFragmentsMarshalJSON(t *testing.T) {
	t.Parallel()

	rec := CompanyCategoryResult{
		Company: "TCS",
		Source:  "screener",
		ExtractionRecord: ExtractionRecord{
			URL:       "https://www.screener.in/company/TCS/",
			Timestamp: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
			TextData:  Fragments{"Capex rose 5%"},
		},
	}
	b, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"company": "TCS",
		"source": "screener",
		"url": "https://www.screener.in/company/TCS/",
		"timestamp": "2024-03-01T10:00:00Z",
		"text_data": ["Capex rose 5%"]
	}`, string(b))
}

func TestDefaultTargetSites(t *testing.T) {
	t.Parallel()

	sites := DefaultTargetSites()
	assert.Len(t, sites, 5)
	assert.Equal(t, "moneycontrol", sites[0].Name)
	assert.Equal(t, "/stocks/company-info/{slug}", sites[0].PathTemplate)
	assert.Equal(t, "screener", sites[1].Name)
	for _, s := range sites[2:] {
		assert.Empty(t, s.PathTemplate, "site %s", s.Name)
	}
}
