package scraper

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/keibalab/keibadb/internal/record"
	"golang.org/x/net/html"
)

// ParsePayouts scans the payout tables of a race page. Each row's first cell
// is an exact-match bet-type label; unrecognized labels are skipped. The
// combination, amount, and popularity cells hold one sub-result per <br>
// boundary and are zipped positionally. Sub-results whose amount does not
// parse are dropped individually; an unparseable popularity becomes 0.
func ParsePayouts(doc *goquery.Document, raceID string) []record.PayoutRecord {
	var rows []record.PayoutRecord

	doc.Find("table.pay_table_01 tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() < 3 {
			return
		}

		betType, ok := record.BetTypeForLabel(cells.Eq(0).Text())
		if !ok {
			return
		}

		numbersList := splitByBr(cells.Eq(1))
		payoutList := splitByBr(cells.Eq(2))
		var popularityList []string
		if cells.Length() >= 4 {
			popularityList = splitByBr(cells.Eq(3))
		}

		for i, numbersText := range numbersList {
			numbers := parseNumbers(numbersText)
			if len(numbers) == 0 {
				continue
			}

			payoutText := "0"
			if i < len(payoutList) {
				payoutText = payoutList[i]
			}
			payoutText = strings.NewReplacer(",", "", "円", "").Replace(payoutText)
			payout, err := strconv.Atoi(strings.TrimSpace(payoutText))
			if err != nil {
				continue
			}

			popularity := 0
			if i < len(popularityList) {
				popularity = record.SafeInt(strings.ReplaceAll(popularityList[i], "人気", ""), 0)
			}

			rows = append(rows, record.PayoutRecord{
				RaceID:     raceID,
				BetType:    betType,
				Numbers:    numbers,
				Payout:     payout,
				Popularity: popularity,
			})
		}
	})

	return rows
}

// splitByBr splits a cell's text at explicit <br> element boundaries,
// not by any whitespace heuristic. A cell with no breaks yields its full
// text as a single element.
func splitByBr(cell *goquery.Selection) []string {
	if cell.Length() == 0 {
		return nil
	}

	var parts []string
	var current strings.Builder
	flush := func() {
		if t := strings.TrimSpace(current.String()); t != "" {
			parts = append(parts, t)
		}
		current.Reset()
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.ElementNode && c.Data == "br":
				flush()
			case c.Type == html.TextNode:
				current.WriteString(c.Data)
			default:
				walk(c)
			}
		}
	}
	walk(cell.Nodes[0])
	flush()

	if len(parts) == 0 {
		return []string{strings.TrimSpace(cell.Text())}
	}
	return parts
}

// numberSeparators normalizes the separators seen between horse numbers
// (arrow for ordered bets, spaces, full-width dashes) to a plain hyphen.
var numberSeparators = strings.NewReplacer("→", "-", " ", "-", "　", "-", "－", "-")

// parseNumbers extracts the ordered horse numbers of one combination.
func parseNumbers(text string) []int {
	normalized := numberSeparators.Replace(text)
	parts := strings.FieldsFunc(normalized, func(r rune) bool {
		return r == '-' || r == 'ー'
	})

	var numbers []int
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		numbers = append(numbers, n)
	}
	return numbers
}
