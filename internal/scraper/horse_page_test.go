package scraper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHorsePage(t *testing.T) {
	html := loadFixture(t, "horse_page.html")

	horse, err := ParseHorsePage(html, "2018105027")
	require.NoError(t, err)

	assert.Equal(t, "2018105027", horse.HorseID)
	assert.Equal(t, "ソングライン", horse.Name)
	assert.Equal(t, "林徹", horse.TrainerName)
	assert.Equal(t, "01110", horse.TrainerID)
	assert.Equal(t, "安平町", horse.Birthplace)

	want := time.Date(2018, 2, 20, 0, 0, 0, 0, jst)
	assert.True(t, horse.Birthday.Equal(want), "birthday = %v, want %v", horse.Birthday, want)

	// Pedigree comes from the secondary lookup, not this page.
	assert.Empty(t, horse.SireName)
	assert.Empty(t, horse.BMSName)
}

func TestParseHorsePageMissingTitle(t *testing.T) {
	_, err := ParseHorsePage("<html><body><p>404</p></body></html>", "2018105027")
	require.ErrorIs(t, err, ErrPageStructure)
}

func TestParsePedigree(t *testing.T) {
	// Two-generation blood table in document order: sire, sire's sire,
	// sire's dam, dam, dam's sire, dam's dam.
	body := `{"status":"ok","html":"<table class=\"blood_table\">` +
		`<tr><td rowspan=\"2\"><a href=\"/horse/2010103854/\">キズナ</a></td>` +
		`<td><a href=\"/horse/ped/000a010841/\">ディープインパクト</a></td></tr>` +
		`<tr><td><a href=\"/horse/ped/000a001912/\">キャットクイル</a></td></tr>` +
		`<tr><td rowspan=\"2\"><a href=\"/horse/2008102636/\">ルミナスパレード</a></td>` +
		`<td><a href=\"/horse/ped/000a011228/\">ゼンノロブロイ</a></td></tr>` +
		`<tr><td><a href=\"/horse/1996110202/\">ルミナスポイント</a></td></tr>` +
		`</table>"}`

	ped, err := ParsePedigree(body)
	require.NoError(t, err)

	assert.Equal(t, "キズナ", ped.SireName)
	assert.Equal(t, "2010103854", ped.SireID)
	assert.Equal(t, "ゼンノロブロイ", ped.BMSName)
	assert.Equal(t, "000a011228", ped.BMSID)
}

func TestParsePedigreeMalformed(t *testing.T) {
	_, err := ParsePedigree("not json")
	assert.Error(t, err)

	_, err = ParsePedigree(`{"status":"ok","html":"<p>empty</p>"}`)
	assert.ErrorIs(t, err, ErrPageStructure)
}
