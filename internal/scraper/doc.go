// Package scraper provides HTTP fetching and HTML parsing for the netkeiba
// racing database.
//
// The fetch layer performs single GET requests with a bounded retry ladder
// (linear backoff on transport errors, a long cooldown on the site's HTTP 400
// rate-limit signal, a short delay on other statuses) and always decodes
// response bodies as EUC-JP. The page parsers turn one fetched page's markup
// into typed rows: a race page yields a profile, the result table, and the
// payout tables; a horse page yields a horse profile; a daily race-list page
// yields the race identifiers run that day. Client composes the two into
// per-identifier operations against a base URL.
package scraper
