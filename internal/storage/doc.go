// Package storage owns the harvested dataset on disk and in memory.
//
// The store holds the four tables (races, race_profiles, horses, payouts),
// the invalid-identifier set, and the discovery cache, loading them from
// JSON files under the output directory at startup (a missing file is an
// empty table, not an error). All mutation goes through the store's merge
// operations, which replace rows by their natural key so reprocessing an
// identifier never duplicates rows. Flush writes every table back; the
// orchestrator checkpoints periodically so at most one checkpoint interval
// of work is lost on a crash. A structured append-only error log sits next
// to the tables.
package storage
