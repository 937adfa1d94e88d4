package model

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(company, source, url string) CompanyCategoryResult {
	return CompanyCategoryResult{
		Company: company,
		Source:  source,
		ExtractionRecord: ExtractionRecord{
			URL:      url,
			TextData: Fragments{"Revenue grew 10% YoY"},
		},
	}
}

func TestAggregate_AppendAndResults(t *testing.T) {
	t.Parallel()

	a := NewAggregate()
	a.Append(CategoryCapex, result("TCS", "screener", "https://a"))
	a.Append(CategoryCapex, result("TCS", "screener", "https://b"))
	a.Append(CategoryGrowthRate, result("HDFC Bank", "tickertape", "https://c"))

	capex := a.Results(CategoryCapex)
	require.Len(t, capex, 2)
	assert.Equal(t, "https://a", capex[0].URL)
	assert.Equal(t, "https://b", capex[1].URL)
	assert.Equal(t, 3, a.Len())

	// Returned slices are copies.
	capex[0].URL = "mutated"
	assert.Equal(t, "https://a", a.Results(CategoryCapex)[0].URL)
}

func TestAggregate_SnapshotHasAllCategories(t *testing.T) {
	t.Parallel()

	snap := NewAggregate().Snapshot()
	for _, c := range AllCategories() {
		_, ok := snap[c]
		assert.True(t, ok, "missing %s", c)
	}
}

func TestAggregate_CompaniesAndForCompany(t *testing.T) {
	t.Parallel()

	a := NewAggregate()
	a.Append(CategoryPerformance, result("Reliance Industries", "moneycontrol", "https://r1"))
	a.Append(CategoryGrowthRate, result("TCS", "screener", "https://t1"))
	a.Append(CategoryCapex, result("TCS", "screener", "https://t2"))

	assert.Equal(t, []string{"TCS", "Reliance Industries"}, a.Companies())

	tcs := a.ForCompany("TCS")
	assert.Len(t, tcs, 4)
	assert.Len(t, tcs[CategoryGrowthRate], 1)
	assert.Len(t, tcs[CategoryCapex], 1)
	assert.Empty(t, tcs[CategoryPerformance])
	assert.NotNil(t, tcs[CategoryMarginalChanges])
}

func TestAggregate_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	a := NewAggregate()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Append(CategoryCapex, result("TCS", "screener", "https://x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, a.Len())
}

func TestVisitedSet(t *testing.T) {
	t.Parallel()

	v := NewVisitedSet()
	assert.False(t, v.Contains("https://a"))
	v.Add("https://a")
	v.Add("https://a")
	assert.True(t, v.Contains("https://a"))
	assert.Equal(t, 1, v.Len())
}

func TestNewRunContext(t *testing.T) {
	t.Parallel()

	rc := NewRunContext("run-1")
	assert.Equal(t, "run-1", rc.ID)
	require.NotNil(t, rc.Visited)
	require.NotNil(t, rc.Aggregate)
	assert.Zero(t, rc.Aggregate.Len())
}
