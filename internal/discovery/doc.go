// Package discovery enumerates the race identifiers that remain to be
// fetched.
//
// Identifiers are discovered per calendar day by scraping daily race-list
// pages rather than by combinatorial enumeration. A persisted cache records
// every identifier ever discovered together with its discovery date, a
// fetched flag recomputed from the profile table, and a failed-attempt
// counter that bounds how many runs retry a broken identifier.
package discovery
