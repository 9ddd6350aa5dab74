package scraper

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/keibalab/keibadb/internal/record"
)

// ErrPageStructure marks a structural parse failure: an expected markup
// element is absent or malformed. Non-retryable within a run.
var ErrPageStructure = errors.New("unexpected page structure")

// Race times are published in Japan Standard Time.
var jst = time.FixedZone("JST", 9*60*60)

var (
	reDigits    = regexp.MustCompile(`\d+`)
	reClockTime = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
)

// resultColumns are the result-table headers the parser consumes, keyed by
// their on-page names with embedded spaces removed. Headers outside this set
// (display names, commentary, trainer/owner, popularity, index score) are
// dropped without being read.
var resultColumns = []string{
	"着順", "枠番", "馬番", "性齢", "斤量", "タイム",
	"着差", "通過", "上り", "単勝", "馬体重", "賞金(万円)",
}

// ParseRacePage extracts the race profile, the result rows, and the payout
// rows from one race page's decoded markup.
func ParseRacePage(html, raceID string) (record.RaceProfile, []record.RaceEntry, []record.PayoutRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return record.RaceProfile{}, nil, nil, fmt.Errorf("parsing HTML: %w", err)
	}

	profile, err := parseRaceProfile(doc, raceID)
	if err != nil {
		return record.RaceProfile{}, nil, nil, err
	}

	entries, err := parseRaceResult(doc, raceID)
	if err != nil {
		return record.RaceProfile{}, nil, nil, err
	}

	payouts := ParsePayouts(doc, raceID)

	return profile, entries, payouts, nil
}

// parseRaceProfile reads the data_intro metadata block: the title heading,
// the slash-delimited condition string, and the smalltxt detail line.
func parseRaceProfile(doc *goquery.Document, raceID string) (record.RaceProfile, error) {
	intro := doc.Find("div.data_intro").First()
	if intro.Length() == 0 {
		return record.RaceProfile{}, fmt.Errorf("%w: data_intro block missing", ErrPageStructure)
	}

	profile := record.RaceProfile{
		RaceID: raceID,
		Title:  strings.TrimSpace(intro.Find("h1").First().Text()),
	}

	condText := intro.Find("diary_snap_cut span").First().Text()
	conds := strings.Split(condText, "/")
	if len(conds) < 4 {
		return record.RaceProfile{}, fmt.Errorf("%w: condition string %q", ErrPageStructure, condText)
	}
	for i := range conds {
		conds[i] = strings.TrimSpace(conds[i])
	}

	courseType, err := record.ParseCourseType(conds[0])
	if err != nil {
		return record.RaceProfile{}, fmt.Errorf("%w: %v", ErrPageStructure, err)
	}
	profile.CourseType = courseType

	// Course length is the last digit run of the first segment ("芝右1600m").
	lens := reDigits.FindAllString(conds[0], -1)
	if len(lens) == 0 {
		return record.RaceProfile{}, fmt.Errorf("%w: no course length in %q", ErrPageStructure, conds[0])
	}
	profile.CourseLength = record.SafeInt(lens[len(lens)-1], 0)

	weather, err := record.ParseWeather(conds[1])
	if err != nil {
		return record.RaceProfile{}, fmt.Errorf("%w: %v", ErrPageStructure, err)
	}
	profile.Weather = weather

	going, err := record.ParseGoing(conds[2])
	if err != nil {
		return record.RaceProfile{}, fmt.Errorf("%w: %v", ErrPageStructure, err)
	}
	profile.Going = going

	clock := reClockTime.FindStringSubmatch(conds[3])
	if clock == nil {
		return record.RaceProfile{}, fmt.Errorf("%w: no start time in %q", ErrPageStructure, conds[3])
	}
	hour := record.SafeInt(clock[1], 0)
	minute := record.SafeInt(clock[2], 0)

	detail := strings.Fields(intro.Find("p.smalltxt").First().Text())
	if len(detail) == 0 {
		return record.RaceProfile{}, fmt.Errorf("%w: detail line missing", ErrPageStructure)
	}
	year, month, day, err := parseJPDate(detail[0])
	if err != nil {
		return record.RaceProfile{}, fmt.Errorf("%w: %v", ErrPageStructure, err)
	}
	profile.Start = time.Date(year, time.Month(month), day, hour, minute, 0, 0, jst)

	// Regional tracks publish shorter detail lines without class/requirements.
	if len(detail) > 2 {
		profile.RaceClass = detail[2]
	}
	if len(detail) > 3 {
		profile.Requirements = detail[3]
	}

	return profile, nil
}

// parseRaceResult reads the result table into entries and zips in the
// horse/jockey identifiers extracted from the table's anchor tags. The
// anchors appear in table row order; that positional alignment is the only
// join between IDs and rows, so a count mismatch is a structural failure
// rather than a truncation.
func parseRaceResult(doc *goquery.Document, raceID string) ([]record.RaceEntry, error) {
	table := doc.Find(`table[summary="レース結果"]`).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: result table missing", ErrPageStructure)
	}

	cols := make(map[string]int)
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		cols[squashSpaces(th.Text())] = i
	})
	for _, name := range resultColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: result column %q missing", ErrPageStructure, name)
		}
	}

	var entries []record.RaceEntry
	var rowErr error
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if rowErr != nil {
			return
		}
		cells := tr.Find("td")
		if cells.Length() == 0 {
			return // header row
		}
		texts := make([]string, cells.Length())
		cells.Each(func(i int, td *goquery.Selection) {
			texts[i] = strings.TrimSpace(td.Text())
		})
		cell := func(name string) string {
			idx := cols[name]
			if idx >= len(texts) {
				return ""
			}
			return texts[idx]
		}

		entry := record.RaceEntry{
			RaceID:   raceID,
			Order:    record.SafeInt(cell("着順"), 0),
			Position: record.SafeInt(cell("枠番"), 0),
			Number:   record.SafeInt(cell("馬番"), 0),
			Carry:    record.SafeFloat(cell("斤量"), 0),
			Lap:      record.ParseLap(orDefault(cell("タイム"), "0")),
			Last:     record.SafeFloat(cell("上り"), 0),
			WinOdds:  record.SafeFloat(cell("単勝"), 0),
			Prize:    record.SafeFloat(strings.ReplaceAll(cell("賞金(万円)"), ",", ""), 0),
		}

		margin, err := record.ParseMargin(orDefault(cell("着差"), "0"))
		if err != nil {
			rowErr = fmt.Errorf("%w: %v", ErrPageStructure, err)
			return
		}
		entry.Margin = margin

		entry.Sex, entry.Age = splitSexAge(cell("性齢"))
		entry.Weight, entry.WeightDiff = splitWeight(cell("馬体重"))
		entry.OrderDuringRace = splitPassingOrder(cell("通過"))

		entries = append(entries, entry)
	})
	if rowErr != nil {
		return nil, rowErr
	}

	horseIDs := anchorIDs(table, "/horse")
	jockeyIDs := anchorIDs(table, "/jockey")
	if len(horseIDs) != len(entries) || len(jockeyIDs) != len(entries) {
		return nil, fmt.Errorf("%w: %d rows vs %d horse / %d jockey anchors",
			ErrPageStructure, len(entries), len(horseIDs), len(jockeyIDs))
	}
	for i := range entries {
		entries[i].HorseID = horseIDs[i]
		entries[i].JockeyID = jockeyIDs[i]
	}

	return entries, nil
}

// anchorIDs collects the first digit run of every anchor href under sel
// whose path starts with prefix, preserving document order.
func anchorIDs(sel *goquery.Selection, prefix string) []string {
	var ids []string
	sel.Find(fmt.Sprintf(`a[href^="%s"]`, prefix)).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if id := reDigits.FindString(href); id != "" {
			ids = append(ids, id)
		}
	})
	return ids
}

// splitSexAge splits a combined token such as "牡3" into sex code and age.
func splitSexAge(s string) (string, int) {
	runes := []rune(s)
	if len(runes) == 0 {
		return "", 0
	}
	return string(runes[0]), record.SafeInt(string(runes[1:]), 0)
}

// splitWeight splits a "480(+4)" body-weight token into weight and delta.
// Cells without the parenthesized delta (e.g. 計不) yield zeros.
func splitWeight(s string) (int, int) {
	open := strings.Index(s, "(")
	if open < 0 {
		return 0, 0
	}
	weight := record.SafeInt(s[:open], 0)
	diff := record.SafeInt(strings.TrimSuffix(s[open+1:], ")"), 0)
	return weight, diff
}

// splitPassingOrder splits a hyphen-delimited running-position token such as
// "3-3-2-1" into the per-segment positions.
func splitPassingOrder(s string) []int {
	if !strings.Contains(s, "-") {
		return []int{}
	}
	parts := strings.Split(s, "-")
	order := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return []int{}
		}
		order = append(order, n)
	}
	return order
}

// parseJPDate splits a "<year>年<month>月<day>日..." token.
func parseJPDate(s string) (int, int, int, error) {
	yparts := strings.SplitN(s, "年", 2)
	if len(yparts) != 2 {
		return 0, 0, 0, fmt.Errorf("no year in date %q", s)
	}
	mparts := strings.SplitN(yparts[1], "月", 2)
	if len(mparts) != 2 {
		return 0, 0, 0, fmt.Errorf("no month in date %q", s)
	}
	dparts := strings.SplitN(mparts[1], "日", 2)
	if len(dparts) != 2 {
		return 0, 0, 0, fmt.Errorf("no day in date %q", s)
	}

	year, err := strconv.Atoi(yparts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad year in date %q", s)
	}
	month, err := strconv.Atoi(mparts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad month in date %q", s)
	}
	day, err := strconv.Atoi(dparts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("bad day in date %q", s)
	}
	return year, month, day, nil
}

// squashSpaces removes all whitespace from a header name, matching the
// space-stripped column names the site intersperses.
func squashSpaces(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
