package update

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/keibalab/keibadb/internal/discovery"
	"github.com/keibalab/keibadb/internal/record"
	"github.com/keibalab/keibadb/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSource serves canned responses keyed by identifier and records
// which identifiers were requested.
type fakeSource struct {
	races   map[string]record.RaceProfile
	horses  map[string]record.HorseRecord
	payouts map[string][]record.PayoutRecord
	failing map[string]error

	raceCalls   []string
	payoutCalls []string
	horseCalls  []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		races:   map[string]record.RaceProfile{},
		horses:  map[string]record.HorseRecord{},
		payouts: map[string][]record.PayoutRecord{},
		failing: map[string]error{},
	}
}

func (f *fakeSource) Race(_ context.Context, raceID string) (record.RaceProfile, []record.RaceEntry, []record.PayoutRecord, error) {
	f.raceCalls = append(f.raceCalls, raceID)
	if err, ok := f.failing[raceID]; ok {
		return record.RaceProfile{}, nil, nil, err
	}
	profile, ok := f.races[raceID]
	if !ok {
		return record.RaceProfile{}, nil, nil, fmt.Errorf("no fixture for race %s", raceID)
	}
	entries := []record.RaceEntry{{RaceID: raceID, Order: 1, HorseID: "2019104567"}}
	payouts := []record.PayoutRecord{{RaceID: raceID, BetType: record.BetWin, Numbers: []int{3}, Payout: 1230}}
	return profile, entries, payouts, nil
}

func (f *fakeSource) Payouts(_ context.Context, raceID string) ([]record.PayoutRecord, error) {
	f.payoutCalls = append(f.payoutCalls, raceID)
	if err, ok := f.failing[raceID]; ok {
		return nil, err
	}
	return f.payouts[raceID], nil
}

func (f *fakeSource) Horse(_ context.Context, horseID string) (record.HorseRecord, error) {
	f.horseCalls = append(f.horseCalls, horseID)
	if err, ok := f.failing[horseID]; ok {
		return record.HorseRecord{}, err
	}
	horse, ok := f.horses[horseID]
	if !ok {
		return record.HorseRecord{}, fmt.Errorf("no fixture for horse %s", horseID)
	}
	return horse, nil
}

// seedCache pre-populates the discovery cache with the first identifier on
// January 1 of fromYear and the last on yesterday, pinning the cached range
// to the full scan window so Refresh has no days left to scan.
func seedCache(cache *discovery.Cache, fromYear int, ids ...string) {
	lower := time.Date(fromYear, 1, 1, 0, 0, 0, 0, time.UTC)
	yesterday := time.Now().UTC().AddDate(0, 0, -1)
	for i, id := range ids {
		day := lower
		if i == len(ids)-1 {
			day = yesterday
		}
		cache.Entries[id] = discovery.Entry{DiscoveredOn: day.Format(discovery.DateLayout)}
	}
}

func newTestUpdater(t *testing.T, src Source, fromYear int) (*Updater, *storage.Store, string, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	enum := discovery.New(failingLister{}, store.Cache(), fromYear, zap.NewNop())
	u := New(src, store, enum, zap.NewNop())
	out := &bytes.Buffer{}
	u.out = out
	u.pause = func(time.Duration) {}
	return u, store, dir, out
}

// failingLister guards against tests accidentally triggering a live scan.
type failingLister struct{}

func (failingLister) RaceList(context.Context, time.Time) ([]string, error) {
	return nil, errors.New("no live fetches in tests")
}

func TestRunHarvestsPendingRaces(t *testing.T) {
	src := newFakeSource()
	src.races["202305021211"] = record.RaceProfile{
		RaceID: "202305021211", Title: "安田記念",
		Start: time.Date(2023, 6, 4, 15, 40, 0, 0, time.UTC),
	}
	src.races["202401010101"] = record.RaceProfile{
		RaceID: "202401010101", Title: "中山金杯",
		Start: time.Date(2024, 1, 5, 15, 45, 0, 0, time.UTC),
	}
	src.horses["2019104567"] = record.HorseRecord{HorseID: "2019104567", Name: "ソングライン"}

	u, store, _, out := newTestUpdater(t, src, 2023)
	seedCache(store.Cache(), 2023, "202305021211", "202401010101")

	require.NoError(t, u.Run(context.Background()))

	assert.Equal(t, []string{"202305021211", "202401010101"}, src.raceCalls)
	assert.Len(t, store.Profiles(), 2)
	assert.Len(t, store.Races(), 2)
	assert.Len(t, store.Payouts(), 2)

	// Both races arrived with payouts attached, so the backfill pass has
	// nothing to do.
	assert.Empty(t, src.payoutCalls)

	// The single referenced horse is fetched exactly once.
	assert.Equal(t, []string{"2019104567"}, src.horseCalls)
	assert.Contains(t, store.Horses(), "2019104567")

	assert.Contains(t, out.String(), "race(202305021211): 1/2")
	assert.Contains(t, out.String(), "horse(2019104567): 1/1")
}

func TestRunPersistsEverything(t *testing.T) {
	src := newFakeSource()
	src.races["202305021211"] = record.RaceProfile{RaceID: "202305021211", Title: "安田記念"}
	src.races["202401010101"] = record.RaceProfile{RaceID: "202401010101"}
	src.horses["2019104567"] = record.HorseRecord{HorseID: "2019104567", Name: "ソングライン"}

	u, store, dir, _ := newTestUpdater(t, src, 2023)
	seedCache(store.Cache(), 2023, "202305021211", "202401010101")
	require.NoError(t, u.Run(context.Background()))

	reopened, err := storage.Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Len(t, reopened.Profiles(), 2)
	assert.Len(t, reopened.Horses(), 1)
	assert.True(t, reopened.Cache().Entries["202305021211"].Fetched)
}

func TestRunRetriesAndInvalidates(t *testing.T) {
	src := newFakeSource()
	src.failing["202301010101"] = errors.New("unexpected page structure")
	src.races["202305021211"] = record.RaceProfile{RaceID: "202305021211"}
	src.horses["2019104567"] = record.HorseRecord{HorseID: "2019104567"}

	u, store, _, _ := newTestUpdater(t, src, 2023)
	seedCache(store.Cache(), 2023, "202301010101", "202305021211")

	for i := 1; i < discovery.MaxFetchAttempts; i++ {
		require.NoError(t, u.Run(context.Background()))
		assert.Equal(t, i, store.Cache().Entries["202301010101"].Attempts)
		assert.Empty(t, store.InvalidIDs())
	}

	require.NoError(t, u.Run(context.Background()))
	assert.Contains(t, store.InvalidIDs(), "202301010101")

	// Exhausted identifiers are never requested again.
	calls := len(src.raceCalls)
	require.NoError(t, u.Run(context.Background()))
	assert.Len(t, src.raceCalls, calls)
}

func TestRunBackfillsPayouts(t *testing.T) {
	src := newFakeSource()
	src.payouts["202301010101"] = []record.PayoutRecord{
		{RaceID: "202301010101", BetType: record.BetWin, Numbers: []int{1}, Payout: 310},
	}
	src.payouts["202305021211"] = []record.PayoutRecord{
		{RaceID: "202305021211", BetType: record.BetPlace, Numbers: []int{3}, Payout: 160},
	}

	u, store, _, _ := newTestUpdater(t, src, 2023)
	// Profiles harvested before payout collection existed: present in the
	// profile table but absent from the payout table.
	store.AddRace(record.RaceProfile{RaceID: "202301010101"}, nil, nil)
	store.AddRace(record.RaceProfile{RaceID: "202305021211", Title: "安田記念"}, nil, nil)
	seedCache(store.Cache(), 2023, "202301010101", "202305021211")

	require.NoError(t, u.Run(context.Background()))

	assert.Equal(t, []string{"202301010101", "202305021211"}, src.payoutCalls)
	assert.Len(t, store.Payouts(), 2)
	assert.Empty(t, src.raceCalls)
}

func TestRunContinuesPastFailures(t *testing.T) {
	src := newFakeSource()
	src.failing["202301010101"] = errors.New("boom")
	src.races["202305021211"] = record.RaceProfile{RaceID: "202305021211"}
	src.horses["2019104567"] = record.HorseRecord{HorseID: "2019104567"}

	u, store, _, _ := newTestUpdater(t, src, 2023)
	seedCache(store.Cache(), 2023, "202301010101", "202305021211")

	require.NoError(t, u.Run(context.Background()))

	assert.Equal(t, []string{"202301010101", "202305021211"}, src.raceCalls)
	assert.Len(t, store.Profiles(), 1)
	assert.Equal(t, 1, store.Cache().Entries["202301010101"].Attempts)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := newFakeSource()
	src.races["202305021211"] = record.RaceProfile{RaceID: "202305021211"}

	u, store, _, _ := newTestUpdater(t, src, 2023)
	seedCache(store.Cache(), 2023, "202301010101", "202305021211")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := u.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.raceCalls)
	assert.Empty(t, store.Profiles())
}
