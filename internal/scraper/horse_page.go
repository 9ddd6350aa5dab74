package scraper

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/keibalab/keibadb/internal/record"
)

// Pedigree holds the sire and maternal-grandsire lookup results for one
// horse. Empty fields mean the lookup or parse failed; that is not fatal.
type Pedigree struct {
	SireID   string
	SireName string
	BMSID    string
	BMSName  string
}

var reHorseHref = regexp.MustCompile(`/horse/(?:ped/)?([0-9a-zA-Z]+)`)

// ParseHorsePage extracts a horse profile from one horse page's decoded
// markup: the title heading and the labeled profile-table rows for birth
// date, trainer, and birthplace. Rows with other labels are ignored.
func ParseHorsePage(html, horseID string) (record.HorseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return record.HorseRecord{}, fmt.Errorf("parsing HTML: %w", err)
	}

	title := doc.Find("div.horse_title h1").First()
	if title.Length() == 0 {
		return record.HorseRecord{}, fmt.Errorf("%w: horse_title heading missing", ErrPageStructure)
	}

	horse := record.HorseRecord{
		HorseID: horseID,
		Name:    strings.TrimSpace(title.Text()),
	}

	doc.Find("table.db_prof_table tr").Each(func(_ int, tr *goquery.Selection) {
		label := strings.TrimSpace(tr.Find("th").First().Text())
		td := tr.Find("td").First()

		switch label {
		case "生年月日":
			if year, month, day, err := parseJPDate(strings.TrimSpace(td.Text())); err == nil {
				horse.Birthday = time.Date(year, time.Month(month), day, 0, 0, 0, 0, jst)
			}
		case "調教師":
			a := td.Find(`a[href*="/trainer/"]`).First()
			if a.Length() > 0 {
				horse.TrainerName = strings.TrimSpace(a.Text())
				if href, ok := a.Attr("href"); ok {
					horse.TrainerID = reDigits.FindString(href)
				}
			} else {
				horse.TrainerName = strings.TrimSpace(td.Text())
			}
		case "産地":
			horse.Birthplace = strings.TrimSpace(td.Text())
		}
	})

	return horse, nil
}

// pedigreePayload is the auxiliary endpoint's JSON wrapper around a blood
// table HTML fragment.
type pedigreePayload struct {
	Status string `json:"status"`
	HTML   string `json:"html"`
}

// Anchor positions within a two-generation blood table in document order:
// sire, sire's sire, sire's dam, dam, dam's sire, dam's dam.
const (
	bloodSireIdx = 0
	bloodBMSIdx  = 4
)

// ParsePedigree reads the pedigree endpoint's JSON-wrapped two-generation
// blood table and picks out the sire and the maternal grandsire.
func ParsePedigree(body string) (Pedigree, error) {
	var payload pedigreePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Pedigree{}, fmt.Errorf("decoding pedigree payload: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(payload.HTML))
	if err != nil {
		return Pedigree{}, fmt.Errorf("parsing pedigree HTML: %w", err)
	}

	anchors := doc.Find(`table.blood_table a[href*="/horse/"]`)
	if anchors.Length() <= bloodBMSIdx {
		return Pedigree{}, fmt.Errorf("%w: blood table has %d horse anchors", ErrPageStructure, anchors.Length())
	}

	ped := Pedigree{
		SireName: strings.TrimSpace(anchors.Eq(bloodSireIdx).Text()),
		BMSName:  strings.TrimSpace(anchors.Eq(bloodBMSIdx).Text()),
	}
	if href, ok := anchors.Eq(bloodSireIdx).Attr("href"); ok {
		ped.SireID = pedigreeID(href)
	}
	if href, ok := anchors.Eq(bloodBMSIdx).Attr("href"); ok {
		ped.BMSID = pedigreeID(href)
	}
	return ped, nil
}

// pedigreeID extracts a horse identifier from a blood-table href. Pedigree
// identifiers may carry letter segments, so this is wider than the digit
// runs used for result-table anchors.
func pedigreeID(href string) string {
	m := reHorseHref.FindStringSubmatch(href)
	if m == nil {
		return ""
	}
	return m[1]
}
