package scraper

import (
	"os"
	"testing"
	"time"

	"github.com/keibalab/keibadb/internal/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	require.NoError(t, err, "loading fixture %s", name)
	return string(data)
}

func TestParseRacePage(t *testing.T) {
	html := loadFixture(t, "race_page.html")

	profile, entries, payouts, err := ParseRacePage(html, "202305021211")
	require.NoError(t, err)

	assert.Equal(t, "202305021211", profile.RaceID)
	assert.Equal(t, "安田記念", profile.Title)
	assert.Equal(t, record.CourseTurf, profile.CourseType)
	assert.Equal(t, 1600, profile.CourseLength)
	assert.Equal(t, record.WeatherSunny, profile.Weather)
	assert.Equal(t, record.GoingFirm, profile.Going)
	assert.Equal(t, "3歳以上オープン", profile.RaceClass)
	assert.Equal(t, "(国際)(指)(定量)", profile.Requirements)

	want := time.Date(2023, 6, 4, 15, 40, 0, 0, jst)
	assert.True(t, profile.Start.Equal(want), "start = %v, want %v", profile.Start, want)

	require.Len(t, entries, 3)

	first := entries[0]
	assert.Equal(t, "202305021211", first.RaceID)
	assert.Equal(t, 1, first.Order)
	assert.Equal(t, 2, first.Position)
	assert.Equal(t, 3, first.Number)
	assert.Equal(t, "牝", first.Sex)
	assert.Equal(t, 4, first.Age)
	assert.InDelta(t, 56.0, first.Carry, 1e-9)
	assert.InDelta(t, 91.8, first.Lap, 1e-9)
	assert.InDelta(t, 0.0, first.Margin, 1e-9) // winner has no margin cell
	assert.Equal(t, []int{3, 3}, first.OrderDuringRace)
	assert.InDelta(t, 33.1, first.Last, 1e-9)
	assert.InDelta(t, 4.2, first.WinOdds, 1e-9)
	assert.Equal(t, 482, first.Weight)
	assert.Equal(t, 2, first.WeightDiff)
	assert.InDelta(t, 1830.0, first.Prize, 1e-9)

	// Anchor IDs align positionally with the rows.
	assert.Equal(t, "2019104567", first.HorseID)
	assert.Equal(t, "01088", first.JockeyID)
	assert.Equal(t, "2017105678", entries[1].HorseID)
	assert.Equal(t, "05339", entries[1].JockeyID)

	second := entries[1]
	assert.InDelta(t, 0.25, second.Margin, 1e-9) // クビ
	assert.Equal(t, 509, second.Weight)
	assert.Equal(t, -5, second.WeightDiff)

	third := entries[2]
	assert.InDelta(t, 3.0, third.Margin, 1e-9)
	assert.Equal(t, 0, third.Weight, "unmeasured weight defaults to 0")
	assert.Equal(t, 0, third.WeightDiff)
	assert.Equal(t, "セ", third.Sex)
	assert.Equal(t, 6, third.Age)

	// 1 win + 3 place + 1 bracket + 1 quinella + 3 wide + 1 exacta +
	// 1 trio + 2 trifecta; the unknown label row is skipped.
	assert.Len(t, payouts, 13)
}

func TestParseRacePageWinPayout(t *testing.T) {
	html := loadFixture(t, "race_page.html")

	_, _, payouts, err := ParseRacePage(html, "202305021211")
	require.NoError(t, err)

	var wins []record.PayoutRecord
	for _, p := range payouts {
		if p.BetType == record.BetWin {
			wins = append(wins, p)
		}
	}
	require.Len(t, wins, 1)
	assert.Equal(t, []int{3}, wins[0].Numbers)
	assert.Equal(t, 1230, wins[0].Payout)
	assert.Equal(t, 2, wins[0].Popularity)
}

func TestParseRacePageTrifectaDeadHeat(t *testing.T) {
	html := loadFixture(t, "race_page.html")

	_, _, payouts, err := ParseRacePage(html, "202305021211")
	require.NoError(t, err)

	var trifectas []record.PayoutRecord
	for _, p := range payouts {
		if p.BetType == record.BetTrifecta {
			trifectas = append(trifectas, p)
		}
	}
	require.Len(t, trifectas, 2)
	assert.Equal(t, []int{3, 1, 7}, trifectas[0].Numbers)
	assert.Equal(t, 15410, trifectas[0].Payout)
	assert.Equal(t, 41, trifectas[0].Popularity)
	assert.Equal(t, []int{3, 1, 8}, trifectas[1].Numbers)
	assert.Equal(t, 21330, trifectas[1].Payout)
	assert.Equal(t, 52, trifectas[1].Popularity)
}

func TestParseRacePageMissingResultTable(t *testing.T) {
	html := `<html><body>
		<div class="data_intro">
			<h1>第1レース</h1>
			<p><diary_snap_cut><span>ダ右1400m / 天候 : 曇 / ダート : 稍重 / 発走 : 10:10</span></diary_snap_cut></p>
			<p class="smalltxt">2023年6月4日 3回東京2日</p>
		</div>
	</body></html>`

	_, _, _, err := ParseRacePage(html, "202305021201")
	require.ErrorIs(t, err, ErrPageStructure)
}

func TestParseRacePageMissingIntro(t *testing.T) {
	_, _, _, err := ParseRacePage("<html><body><p>404</p></body></html>", "202305021201")
	require.ErrorIs(t, err, ErrPageStructure)
}

func TestParseRaceProfileShortDetailLine(t *testing.T) {
	// Regional tracks publish only date and meeting tokens; class and
	// requirements default to empty strings.
	html := `<html><body>
		<div class="data_intro">
			<h1>Ｃ級一般</h1>
			<p><diary_snap_cut><span>ダ右1500m / 天候 : 雨 / ダート : 不良 / 発走 : 14:25</span></diary_snap_cut></p>
			<p class="smalltxt">2023年6月4日 盛岡</p>
		</div>
		<table summary="レース結果">
			<tr>
				<th>着順</th><th>枠番</th><th>馬番</th><th>性齢</th><th>斤量</th><th>タイム</th>
				<th>着差</th><th>通過</th><th>上り</th><th>単勝</th><th>馬体重</th><th>賞金(万円)</th>
			</tr>
		</table>
	</body></html>`

	profile, entries, _, err := ParseRacePage(html, "202335021201")
	require.NoError(t, err)
	assert.Empty(t, profile.RaceClass)
	assert.Empty(t, profile.Requirements)
	assert.Equal(t, record.CourseDirt, profile.CourseType)
	assert.Equal(t, record.GoingSoft, profile.Going)
	assert.Empty(t, entries)
}

func TestParseRaceResultAnchorMismatch(t *testing.T) {
	// A row without its horse anchor breaks the positional alignment;
	// the parser must fail structurally instead of misattributing IDs.
	html := `<html><body>
		<div class="data_intro">
			<h1>テスト</h1>
			<p><diary_snap_cut><span>芝右1200m / 天候 : 晴 / 芝 : 良 / 発走 : 12:00</span></diary_snap_cut></p>
			<p class="smalltxt">2023年6月4日 3回東京2日 3歳未勝利 (指)</p>
		</div>
		<table summary="レース結果">
			<tr>
				<th>着順</th><th>枠番</th><th>馬番</th><th>馬名</th><th>性齢</th><th>斤量</th><th>騎手</th><th>タイム</th>
				<th>着差</th><th>通過</th><th>上り</th><th>単勝</th><th>馬体重</th><th>賞金(万円)</th>
			</tr>
			<tr>
				<td>1</td><td>1</td><td>1</td><td>アンカーなし</td><td>牡3</td><td>56.0</td>
				<td><a href="/jockey/01088/">戸崎圭太</a></td><td>1:09.8</td><td></td><td>1-1</td>
				<td>34.2</td><td>1.8</td><td>470(0)</td><td>510.0</td>
			</tr>
		</table>
	</body></html>`

	_, _, _, err := ParseRacePage(html, "202305021201")
	require.ErrorIs(t, err, ErrPageStructure)
}
