package discovery

import (
	"sort"
	"time"
)

// DateLayout is the on-disk form of discovery dates.
const DateLayout = "2006-01-02"

// MaxFetchAttempts bounds how many runs retry a failing identifier before
// it is declared permanently invalid.
const MaxFetchAttempts = 3

// Entry is one cached identifier's state.
type Entry struct {
	DiscoveredOn string `json:"discovered_on"`
	Fetched      bool   `json:"fetched"`
	Attempts     int    `json:"attempts,omitempty"`
}

// Cache tracks every race identifier ever discovered across runs.
type Cache struct {
	Entries map[string]Entry `json:"entries"`
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{Entries: make(map[string]Entry)}
}

// Add records a newly discovered identifier. Existing entries keep their
// fetched flag and attempt count.
func (c *Cache) Add(id string, day time.Time) {
	if _, exists := c.Entries[id]; exists {
		return
	}
	c.Entries[id] = Entry{DiscoveredOn: day.Format(DateLayout)}
}

// MarkFetched flags an identifier as fetched.
func (c *Cache) MarkFetched(id string) {
	e := c.Entries[id]
	e.Fetched = true
	c.Entries[id] = e
}

// RecordAttempt increments an identifier's failed-attempt counter and
// returns the new count.
func (c *Cache) RecordAttempt(id string) int {
	e := c.Entries[id]
	e.Attempts++
	c.Entries[id] = e
	return e.Attempts
}

// Bounds returns the earliest and latest discovery dates in the cache.
// ok is false for an empty cache or one with no parseable dates.
func (c *Cache) Bounds() (earliest, latest time.Time, ok bool) {
	for _, e := range c.Entries {
		d, err := time.Parse(DateLayout, e.DiscoveredOn)
		if err != nil {
			continue
		}
		if !ok {
			earliest, latest, ok = d, d, true
			continue
		}
		if d.Before(earliest) {
			earliest = d
		}
		if d.After(latest) {
			latest = d
		}
	}
	return earliest, latest, ok
}

// IDs returns all cached identifiers in sorted order.
func (c *Cache) IDs() []string {
	ids := make([]string, 0, len(c.Entries))
	for id := range c.Entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Size returns the number of cached identifiers.
func (c *Cache) Size() int {
	return len(c.Entries)
}
