// Package update drives the fetch loop over the difference between the
// identifiers the dataset needs and the identifiers it already has.
//
// A run is three independent, resumable passes in sequence: races, then
// payout backfill, then horses. No failure on one identifier aborts a pass;
// failures are tallied, logged, and counted against the identifier's retry
// budget. The store checkpoints every 100 processed identifiers so an
// abrupt stop loses at most 99 units of work.
package update

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/keibalab/keibadb/internal/discovery"
	"github.com/keibalab/keibadb/internal/record"
	"github.com/keibalab/keibadb/internal/storage"
	"go.uber.org/zap"
)

const (
	checkpointEvery = 100
	requestDelay    = 500 * time.Millisecond
)

// Source fetches and parses one identifier's pages.
type Source interface {
	Race(ctx context.Context, raceID string) (record.RaceProfile, []record.RaceEntry, []record.PayoutRecord, error)
	Payouts(ctx context.Context, raceID string) ([]record.PayoutRecord, error)
	Horse(ctx context.Context, horseID string) (record.HorseRecord, error)
}

// Updater orchestrates one harvest run against the store.
type Updater struct {
	src   Source
	store *storage.Store
	enum  *discovery.Enumerator
	log   *zap.Logger

	out   io.Writer
	pause func(time.Duration)
}

// New creates an Updater writing progress to stdout.
func New(src Source, store *storage.Store, enum *discovery.Enumerator, log *zap.Logger) *Updater {
	return &Updater{
		src:   src,
		store: store,
		enum:  enum,
		log:   log,
		out:   os.Stdout,
		pause: time.Sleep,
	}
}

// Run refreshes discovery and executes the three passes, flushing the store
// at the end regardless of how far the passes got.
func (u *Updater) Run(ctx context.Context) error {
	if err := u.enum.Refresh(ctx, u.store.Profiles()); err != nil {
		return fmt.Errorf("refreshing discovery cache: %w", err)
	}
	if err := u.store.Flush(); err != nil {
		return fmt.Errorf("saving discovery cache: %w", err)
	}

	u.updateRaces(ctx)
	u.updatePayouts(ctx)
	u.updateHorses(ctx)

	if err := u.store.Flush(); err != nil {
		return fmt.Errorf("final flush: %w", err)
	}
	return ctx.Err()
}

// updateRaces fetches every pending race identifier in sorted order.
func (u *Updater) updateRaces(ctx context.Context) {
	ids := u.enum.Pending(u.store.InvalidIDs())
	succeeded, failed := 0, 0

	fmt.Fprintln(u.out)
	for n, id := range ids {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(u.out, "\rrace(%s): %d/%d ok=%d err=%d", id, n+1, len(ids), succeeded, failed)

		profile, entries, payouts, err := u.src.Race(ctx, id)
		u.pause(requestDelay)
		if err != nil {
			failed++
			u.store.LogError("race", id, err)
			if attempts := u.store.Cache().RecordAttempt(id); attempts >= discovery.MaxFetchAttempts {
				u.store.MarkInvalid(id)
				u.log.Warn("race permanently invalid",
					zap.String("id", id), zap.Int("attempts", attempts))
			}
			continue
		}

		succeeded++
		u.store.AddRace(profile, entries, payouts)
		u.store.Cache().MarkFetched(id)
		u.checkpoint(n)
	}
	fmt.Fprintln(u.out)

	u.log.Info("race pass complete",
		zap.Int("total", len(ids)), zap.Int("ok", succeeded), zap.Int("err", failed))
}

// updatePayouts backfills payout rows for races harvested before payouts
// were collected: the difference between all known race identifiers and the
// identifiers already present in the payout table.
func (u *Updater) updatePayouts(ctx context.Context) {
	have := u.store.PayoutRaceIDs()
	var ids []string
	for id := range u.store.Profiles() {
		if _, ok := have[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)
	succeeded, failed := 0, 0

	fmt.Fprintln(u.out)
	for n, id := range ids {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(u.out, "\rpayout(%s): %d/%d ok=%d err=%d", id, n+1, len(ids), succeeded, failed)

		payouts, err := u.src.Payouts(ctx, id)
		u.pause(requestDelay)
		if err != nil {
			failed++
			u.store.LogError("payout", id, err)
			continue
		}

		succeeded++
		u.store.AddPayouts(id, payouts)
		u.checkpoint(n)
	}
	fmt.Fprintln(u.out)

	u.log.Info("payout pass complete",
		zap.Int("total", len(ids)), zap.Int("ok", succeeded), zap.Int("err", failed))
}

// updateHorses fetches every horse referenced by a race entry but not yet
// in the horse table.
func (u *Updater) updateHorses(ctx context.Context) {
	known := u.store.Horses()
	var ids []string
	for id := range u.store.EntryHorseIDs() {
		if _, ok := known[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	sort.Strings(ids)
	succeeded, failed := 0, 0

	fmt.Fprintln(u.out)
	for n, id := range ids {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(u.out, "\rhorse(%s): %d/%d ok=%d err=%d", id, n+1, len(ids), succeeded, failed)

		horse, err := u.src.Horse(ctx, id)
		u.pause(requestDelay)
		if err != nil {
			failed++
			u.store.LogError("horse", id, err)
			continue
		}

		succeeded++
		u.store.AddHorse(horse)
		u.checkpoint(n)
	}
	fmt.Fprintln(u.out)

	u.log.Info("horse pass complete",
		zap.Int("total", len(ids)), zap.Int("ok", succeeded), zap.Int("err", failed))
}

// checkpoint flushes the store every checkpointEvery processed identifiers.
func (u *Updater) checkpoint(n int) {
	if (n+1)%checkpointEvery != 0 {
		return
	}
	if err := u.store.Flush(); err != nil {
		u.log.Warn("checkpoint flush failed", zap.Error(err))
	}
}
