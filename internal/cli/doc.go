// Package cli implements the command-line interface for keibadb.
//
// The cli package provides the Cobra-based CLI for running an incremental
// harvest. It coordinates the config, discovery, scraper, storage and update
// packages: discover new race identifiers, fetch and parse their pages, and
// persist the growing dataset under the output directory.
package cli
