package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/keibalab/keibadb/internal/discovery"
	"github.com/keibalab/keibadb/internal/record"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	racesFile        = "races.json"
	raceProfilesFile = "race_profiles.json"
	horsesFile       = "horses.json"
	payoutsFile      = "payouts.json"
	raceIDCacheFile  = "race_id_cache.json"
	invalidIDsFile   = "invalid_race_ids.json"
	errorLogFile     = "errors.log"
)

// Store owns the in-memory tables and is the sole writer of their durable
// snapshots.
type Store struct {
	dir string

	races    []record.RaceEntry
	profiles map[string]record.RaceProfile
	horses   map[string]record.HorseRecord
	payouts  []record.PayoutRecord
	invalid  map[string]struct{}
	cache    *discovery.Cache

	errFile *os.File
	errLog  *zap.Logger
}

// Open loads the dataset rooted at dir, creating the directory on demand.
// Missing table files load as empty tables.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	s := &Store{
		dir:      dir,
		profiles: make(map[string]record.RaceProfile),
		horses:   make(map[string]record.HorseRecord),
		invalid:  make(map[string]struct{}),
		cache:    discovery.NewCache(),
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(filepath.Join(dir, errorLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening error log: %w", err)
	}
	s.errFile = f

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	}
	s.errLog = zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(f), zap.ErrorLevel))

	return s, nil
}

func (s *Store) load() error {
	if err := readJSON(filepath.Join(s.dir, racesFile), &s.races); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(s.dir, raceProfilesFile), &s.profiles); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(s.dir, horsesFile), &s.horses); err != nil {
		return err
	}
	if err := readJSON(filepath.Join(s.dir, payoutsFile), &s.payouts); err != nil {
		return err
	}

	var invalid []string
	if err := readJSON(filepath.Join(s.dir, invalidIDsFile), &invalid); err != nil {
		return err
	}
	for _, id := range invalid {
		s.invalid[id] = struct{}{}
	}

	if err := readJSON(filepath.Join(s.dir, raceIDCacheFile), s.cache); err != nil {
		return err
	}
	if s.cache.Entries == nil {
		s.cache.Entries = make(map[string]discovery.Entry)
	}

	return nil
}

// Flush writes every table back to its file.
func (s *Store) Flush() error {
	invalid := make([]string, 0, len(s.invalid))
	for id := range s.invalid {
		invalid = append(invalid, id)
	}
	sort.Strings(invalid)

	writes := []struct {
		name string
		v    any
	}{
		{racesFile, s.races},
		{raceProfilesFile, s.profiles},
		{horsesFile, s.horses},
		{payoutsFile, s.payouts},
		{invalidIDsFile, invalid},
		{raceIDCacheFile, s.cache},
	}
	for _, w := range writes {
		if err := writeJSON(filepath.Join(s.dir, w.name), w.v); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes the tables and releases the error log.
func (s *Store) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	s.errLog.Sync() // nolint:errcheck
	return s.errFile.Close()
}

// AddRace merges one race's profile, entries, and payouts, replacing any
// rows previously held for that race identifier.
func (s *Store) AddRace(profile record.RaceProfile, entries []record.RaceEntry, payouts []record.PayoutRecord) {
	s.profiles[profile.RaceID] = profile
	s.races = dropByRaceID(s.races, profile.RaceID, func(e record.RaceEntry) string { return e.RaceID })
	s.races = append(s.races, entries...)
	s.AddPayouts(profile.RaceID, payouts)
}

// AddPayouts merges one race's payout rows, replacing any previously held.
func (s *Store) AddPayouts(raceID string, payouts []record.PayoutRecord) {
	s.payouts = dropByRaceID(s.payouts, raceID, func(p record.PayoutRecord) string { return p.RaceID })
	s.payouts = append(s.payouts, payouts...)
}

// AddHorse merges one horse's profile row.
func (s *Store) AddHorse(horse record.HorseRecord) {
	s.horses[horse.HorseID] = horse
}

// MarkInvalid permanently excludes a race identifier from future runs.
func (s *Store) MarkInvalid(raceID string) {
	s.invalid[raceID] = struct{}{}
}

// InvalidIDs returns the permanently excluded identifiers.
func (s *Store) InvalidIDs() map[string]struct{} {
	return s.invalid
}

// Cache returns the discovery cache. The store persists it on every flush.
func (s *Store) Cache() *discovery.Cache {
	return s.cache
}

// Profiles returns the race-profile table keyed by race identifier.
func (s *Store) Profiles() map[string]record.RaceProfile {
	return s.profiles
}

// Races returns the race-entry table.
func (s *Store) Races() []record.RaceEntry {
	return s.races
}

// Horses returns the horse table keyed by horse identifier.
func (s *Store) Horses() map[string]record.HorseRecord {
	return s.horses
}

// Payouts returns the payout table.
func (s *Store) Payouts() []record.PayoutRecord {
	return s.payouts
}

// PayoutRaceIDs returns the set of race identifiers with at least one
// payout row.
func (s *Store) PayoutRaceIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(s.payouts))
	for _, p := range s.payouts {
		ids[p.RaceID] = struct{}{}
	}
	return ids
}

// EntryHorseIDs returns the set of horse identifiers referenced by any
// race entry.
func (s *Store) EntryHorseIDs() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, e := range s.races {
		if e.HorseID != "" {
			ids[e.HorseID] = struct{}{}
		}
	}
	return ids
}

// LogError appends one line to the error log: timestamp, kind, identifier,
// and error detail.
func (s *Store) LogError(kind, id string, err error) {
	s.errLog.Error("scrape failed",
		zap.String("kind", kind),
		zap.String("id", id),
		zap.String("error", err.Error()),
	)
}

func dropByRaceID[T any](rows []T, raceID string, key func(T) string) []T {
	kept := rows[:0]
	for _, r := range rows {
		if key(r) != raceID {
			kept = append(kept, r)
		}
	}
	return kept
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
