package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/encoding/japanese"
)

const (
	UserAgent = "keibadb/1.0 (github.com/keibalab/keibadb)"
	Timeout   = 30 * time.Second

	maxAttempts       = 3
	transportDelay    = 5 * time.Second  // scaled by attempt index
	statusRetryDelay  = 5 * time.Second  // any non-200 other than 400
	rateLimitCooldown = 30 * time.Second // HTTP 400, additive to the retry delay
)

// ErrUnavailable marks a fetch whose retry budget is exhausted.
// Callers treat it as "no page available", never as a crash.
var ErrUnavailable = errors.New("page unavailable")

// Sleeper abstracts the retry delays so tests can record them instead of
// sleeping for real.
type Sleeper interface {
	Sleep(d time.Duration)
}

type stdSleeper struct{}

func (stdSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Fetcher performs single GET requests with retry and EUC-JP decoding.
type Fetcher struct {
	http    *resty.Client
	sleeper Sleeper
}

// NewFetcher creates a Fetcher with the default transport and sleeper.
func NewFetcher() *Fetcher {
	return &Fetcher{
		http: resty.New().
			SetTimeout(Timeout).
			SetHeader("User-Agent", UserAgent),
		sleeper: stdSleeper{},
	}
}

// Get fetches url and returns the body decoded from EUC-JP. The site's pages
// are known to be EUC-JP regardless of any declared charset, so the header
// is ignored. Transport errors back off linearly per attempt; HTTP 400 is
// the site's rate-limit signal and adds a long cooldown before the next
// attempt; any other non-200 status retries after a short delay. Exhausting
// the budget returns ErrUnavailable.
func (f *Fetcher) Get(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := f.http.R().SetContext(ctx).Get(url)
		if err != nil {
			lastErr = err
			f.sleeper.Sleep(transportDelay * time.Duration(attempt))
			continue
		}

		status := resp.StatusCode()
		if status == http.StatusOK {
			decoded, err := japanese.EUCJP.NewDecoder().Bytes(resp.Body())
			if err != nil {
				return "", fmt.Errorf("decoding response body: %w", err)
			}
			return string(decoded), nil
		}

		lastErr = fmt.Errorf("unexpected status code: %d", status)
		if status == http.StatusBadRequest {
			f.sleeper.Sleep(rateLimitCooldown)
		}
		f.sleeper.Sleep(statusRetryDelay)
	}

	return "", fmt.Errorf("%w: %s: %v", ErrUnavailable, url, lastErr)
}
