package model

import "regexp"

// Category is one of the financial-topic classifiers a text fragment can
// belong to.
type Category string

const (
	CategoryGrowthRate      Category = "growth_rate"
	CategoryPerformance     Category = "performance"
	CategoryMarginalChanges Category = "marginal_changes"
	CategoryCapex           Category = "capex"
)

// categoryPatterns holds the case-insensitive keyword pattern for each
// category. Adding a category means adding an entry here and to
// AllCategories.
var categoryPatterns = map[Category]*regexp.Regexp{
	CategoryGrowthRate:      regexp.MustCompile(`(?i)(?:growth|increase|yoy|cagr|growth\s+rate)`),
	CategoryPerformance:     regexp.MustCompile(`(?i)(?:performance|return|metric|profit|revenue)`),
	CategoryMarginalChanges: regexp.MustCompile(`(?i)(?:qoq|yoy|quarter|year|change)`),
	CategoryCapex:           regexp.MustCompile(`(?i)(?:capex|capital\s+expenditure|investment)`),
}

// AllCategories returns every category in the fixed order they are tested
// against a page.
func AllCategories() []Category {
	return []Category{
		CategoryGrowthRate,
		CategoryPerformance,
		CategoryMarginalChanges,
		CategoryCapex,
	}
}

// Pattern returns the keyword pattern for the category, or nil for an
// unknown category.
func (c Category) Pattern() *regexp.Regexp {
	return categoryPatterns[c]
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryPatterns[c]
	return ok
}

// Matches reports whether text mentions the category.
func (c Category) Matches(text string) bool {
	re := c.Pattern()
	return re != nil && re.MatchString(text)
}
