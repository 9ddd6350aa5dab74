// Package record defines the typed rows produced by the harvester.
//
// The record package holds the four table row types (RaceProfile, RaceEntry,
// HorseRecord, PayoutRecord), the fixed-width race identifier helpers, the
// category enumerations used to classify course, weather, going and bet-type
// text, and the lenient numeric normalizers applied to race-result cells.
package record
