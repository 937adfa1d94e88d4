package model

import "sync"

// Aggregate accumulates results per category for the lifetime of a run.
// Entries are only ever appended.
type Aggregate struct {
	mu      sync.Mutex
	entries map[Category][]CompanyCategoryResult
}

// NewAggregate returns an empty aggregate with a slot for every category.
func NewAggregate() *Aggregate {
	a := &Aggregate{entries: make(map[Category][]CompanyCategoryResult)}
	for _, c := range AllCategories() {
		a.entries[c] = nil
	}
	return a
}

// Append adds a result under the given category.
func (a *Aggregate) Append(c Category, r CompanyCategoryResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries[c] = append(a.entries[c], r)
}

// Results returns a copy of the results stored under c.
func (a *Aggregate) Results(c Category) []CompanyCategoryResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]CompanyCategoryResult, len(a.entries[c]))
	copy(out, a.entries[c])
	return out
}

// Snapshot returns a copy of the whole aggregate keyed by category.
func (a *Aggregate) Snapshot() map[Category][]CompanyCategoryResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[Category][]CompanyCategoryResult, len(a.entries))
	for c, rs := range a.entries {
		cp := make([]CompanyCategoryResult, len(rs))
		copy(cp, rs)
		out[c] = cp
	}
	return out
}

// Len returns the total number of results across all categories.
func (a *Aggregate) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, rs := range a.entries {
		n += len(rs)
	}
	return n
}

// Companies returns the distinct companies present in the aggregate, in
// first-seen order walking categories in AllCategories order.
func (a *Aggregate) Companies() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, c := range AllCategories() {
		for _, r := range a.entries[c] {
			if !seen[r.Company] {
				seen[r.Company] = true
				out = append(out, r.Company)
			}
		}
	}
	return out
}

// ForCompany filters every category down to the given company. All
// categories are present in the result, possibly with empty lists.
func (a *Aggregate) ForCompany(company string) map[Category][]CompanyCategoryResult {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make(map[Category][]CompanyCategoryResult, len(a.entries))
	for _, c := range AllCategories() {
		filtered := []CompanyCategoryResult{}
		for _, r := range a.entries[c] {
			if r.Company == company {
				filtered = append(filtered, r)
			}
		}
		out[c] = filtered
	}
	return out
}

// VisitedSet records URLs that have already yielded at least one record
// during the current run.
type VisitedSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

// NewVisitedSet returns an empty set.
func NewVisitedSet() *VisitedSet {
	return &VisitedSet{urls: make(map[string]struct{})}
}

// Contains reports whether url has been marked.
func (v *VisitedSet) Contains(url string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.urls[url]
	return ok
}

// Add marks url as visited.
func (v *VisitedSet) Add(url string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.urls[url] = struct{}{}
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.urls)
}

// RunContext owns the state shared by every stage of a single run. It is
// created at the start of a run and handed to the result writer at the end.
type RunContext struct {
	ID        string
	Visited   *VisitedSet
	Aggregate *Aggregate
}

// NewRunContext creates a RunContext with empty shared state.
func NewRunContext(id string) *RunContext {
	return &RunContext{
		ID:        id,
		Visited:   NewVisitedSet(),
		Aggregate: NewAggregate(),
	}
}
