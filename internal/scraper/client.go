package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/cenkalti/backoff/v4"
	"github.com/keibalab/keibadb/internal/record"
)

const (
	// DefaultBaseURL is the public racing database root.
	DefaultBaseURL = "https://db.netkeiba.com/"

	pedigreeRetries = 2
	pedigreeBackoff = 2 * time.Second
)

// Client fetches and parses pages of the racing database.
type Client struct {
	fetch *Fetcher
	base  string
}

// NewClient creates a Client against base, which must end with a slash.
func NewClient(base string) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return &Client{fetch: NewFetcher(), base: base}
}

// Race fetches one race page and returns its profile, result rows, and
// payout rows.
func (c *Client) Race(ctx context.Context, raceID string) (record.RaceProfile, []record.RaceEntry, []record.PayoutRecord, error) {
	html, err := c.fetch.Get(ctx, c.base+"race/"+raceID)
	if err != nil {
		return record.RaceProfile{}, nil, nil, err
	}
	return ParseRacePage(html, raceID)
}

// Payouts fetches one race page and returns only its payout rows. Used for
// historical backfill of races harvested before payouts were collected.
func (c *Client) Payouts(ctx context.Context, raceID string) ([]record.PayoutRecord, error) {
	html, err := c.fetch.Get(ctx, c.base+"race/"+raceID)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}
	return ParsePayouts(doc, raceID), nil
}

// Horse fetches one horse page and returns its profile row. The pedigree is
// looked up through the auxiliary endpoint with its own bounded retry; on
// any failure the pedigree fields stay empty.
func (c *Client) Horse(ctx context.Context, horseID string) (record.HorseRecord, error) {
	html, err := c.fetch.Get(ctx, c.base+"horse/"+horseID)
	if err != nil {
		return record.HorseRecord{}, err
	}
	horse, err := ParseHorsePage(html, horseID)
	if err != nil {
		return record.HorseRecord{}, err
	}

	if ped, err := c.pedigree(ctx, horseID); err == nil {
		horse.SireID = ped.SireID
		horse.SireName = ped.SireName
		horse.BMSID = ped.BMSID
		horse.BMSName = ped.BMSName
	}

	return horse, nil
}

func (c *Client) pedigree(ctx context.Context, horseID string) (Pedigree, error) {
	var ped Pedigree
	op := func() error {
		body, err := c.fetch.Get(ctx, c.base+"horse/ped_api/?horse_id="+horseID)
		if err != nil {
			return err
		}
		p, err := ParsePedigree(body)
		if err != nil {
			// Malformed payloads will not improve on retry.
			return backoff.Permanent(err)
		}
		ped = p
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(pedigreeBackoff), pedigreeRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return Pedigree{}, err
	}
	return ped, nil
}

// RaceList fetches the race-list page for one calendar day and returns the
// race identifiers run that day.
func (c *Client) RaceList(ctx context.Context, day time.Time) ([]string, error) {
	html, err := c.fetch.Get(ctx, c.base+"race/list/"+day.Format("20060102")+"/")
	if err != nil {
		return nil, err
	}
	return ParseRaceList(html)
}
