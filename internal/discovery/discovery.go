package discovery

import (
	"context"
	"time"

	"github.com/keibalab/keibadb/internal/record"
	"go.uber.org/zap"
)

// Lister fetches the race identifiers run on one calendar day.
type Lister interface {
	RaceList(ctx context.Context, day time.Time) ([]string, error)
}

// listDelay spaces out race-list requests during backfill scans.
const listDelay = 500 * time.Millisecond

// Enumerator maintains the discovery cache and computes the set of race
// identifiers that still need fetching.
type Enumerator struct {
	lister   Lister
	cache    *Cache
	fromYear int
	log      *zap.Logger

	now   func() time.Time
	pause func(time.Duration)
}

// New creates an Enumerator over an existing cache.
func New(lister Lister, cache *Cache, fromYear int, log *zap.Logger) *Enumerator {
	return &Enumerator{
		lister:   lister,
		cache:    cache,
		fromYear: fromYear,
		log:      log,
		now:      time.Now,
		pause:    time.Sleep,
	}
}

// Refresh brings the cache up to date against the live site and the given
// profile table:
//
//  1. an empty cache bootstraps from existing profiles, which are by
//     definition already fetched;
//  2. dates before the earliest cached discovery are backfilled down to
//     January 1 of the start year;
//  3. dates after the latest cached discovery are filled forward up to
//     yesterday — today's races are still in progress and would otherwise
//     be misclassified as invalid;
//  4. every cached identifier's fetched flag is recomputed from the
//     profile table.
//
// A failed race-list fetch skips that day and continues; the day is
// revisited on the next run only if it stays outside the cached range.
func (e *Enumerator) Refresh(ctx context.Context, profiles map[string]record.RaceProfile) error {
	if e.cache.Size() == 0 && len(profiles) > 0 {
		for id, p := range profiles {
			e.cache.Entries[id] = Entry{
				DiscoveredOn: p.Start.Format(DateLayout),
				Fetched:      true,
			}
		}
		e.log.Info("bootstrapped discovery cache from profiles",
			zap.Int("identifiers", e.cache.Size()))
	}

	yesterday := truncateDay(e.now()).AddDate(0, 0, -1)
	lower := time.Date(e.fromYear, 1, 1, 0, 0, 0, 0, time.UTC)

	earliest, latest, ok := e.cache.Bounds()
	if !ok {
		e.scanRange(ctx, lower, yesterday)
	} else {
		e.scanRange(ctx, lower, earliest.AddDate(0, 0, -1))
		e.scanRange(ctx, latest.AddDate(0, 0, 1), yesterday)
	}

	for id, entry := range e.cache.Entries {
		_, fetched := profiles[id]
		entry.Fetched = fetched
		e.cache.Entries[id] = entry
	}

	return ctx.Err()
}

// Pending returns the sorted identifiers at or after the start year whose
// fetched flag is false, excluding permanently invalid identifiers and ones
// whose retry budget is exhausted.
func (e *Enumerator) Pending(invalid map[string]struct{}) []string {
	var pending []string
	for _, id := range e.cache.IDs() {
		entry := e.cache.Entries[id]
		if entry.Fetched || entry.Attempts >= MaxFetchAttempts {
			continue
		}
		if record.RaceIDYear(id) < e.fromYear {
			continue
		}
		if _, bad := invalid[id]; bad {
			continue
		}
		pending = append(pending, id)
	}
	return pending
}

// scanRange walks [from, to] one day at a time and caches every identifier
// linked from each day's race-list page.
func (e *Enumerator) scanRange(ctx context.Context, from, to time.Time) {
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		if ctx.Err() != nil {
			return
		}
		ids, err := e.lister.RaceList(ctx, day)
		e.pause(listDelay)
		if err != nil {
			e.log.Warn("race list fetch failed",
				zap.String("date", day.Format(DateLayout)), zap.Error(err))
			continue
		}
		for _, id := range ids {
			if !record.ValidRaceID(id) {
				continue
			}
			e.cache.Add(id, day)
		}
	}
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
