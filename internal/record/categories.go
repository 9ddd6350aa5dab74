package record

import (
	"fmt"
	"strings"
)

// CourseType classifies the racing surface.
type CourseType string

const (
	CourseTurf CourseType = "turf"
	CourseDirt CourseType = "dirt"
	CourseJump CourseType = "jump"
)

// ParseCourseType classifies the first segment of a race condition string.
// Jump races are detected by the 障 indicator anywhere in the segment;
// otherwise the leading character decides. Unrecognized text is an error so
// upstream markup changes surface instead of defaulting silently.
func ParseCourseType(segment string) (CourseType, error) {
	if strings.ContainsRune(segment, '障') {
		return CourseJump, nil
	}
	for _, r := range segment {
		switch r {
		case '芝':
			return CourseTurf, nil
		case 'ダ':
			return CourseDirt, nil
		}
		break
	}
	return "", fmt.Errorf("unrecognized course type %q", segment)
}

// Weather is the declared weather category for a race day.
type Weather string

const (
	WeatherSunny     Weather = "晴"
	WeatherCloudy    Weather = "曇"
	WeatherRain      Weather = "雨"
	WeatherDrizzle   Weather = "小雨"
	WeatherLightSnow Weather = "小雪"
	WeatherSnow      Weather = "雪"
)

// weatherOrder is matched longest-first so 小雨 is not misread as 雨.
var weatherOrder = []Weather{
	WeatherDrizzle, WeatherLightSnow,
	WeatherSunny, WeatherCloudy, WeatherRain, WeatherSnow,
}

// ParseWeather classifies the trailing weather token of a condition segment
// such as "天候 : 晴".
func ParseWeather(segment string) (Weather, error) {
	s := strings.TrimSpace(segment)
	for _, w := range weatherOrder {
		if strings.HasSuffix(s, string(w)) {
			return w, nil
		}
	}
	return "", fmt.Errorf("unrecognized weather %q", segment)
}

// Going is the declared ground condition.
type Going string

const (
	GoingFirm     Going = "良"
	GoingGood     Going = "稍重"
	GoingYielding Going = "重"
	GoingSoft     Going = "不良"
)

// goingOrder is matched longest-first so 稍重 and 不良 win over their
// single-character suffixes.
var goingOrder = []Going{GoingGood, GoingSoft, GoingFirm, GoingYielding}

// ParseGoing classifies the trailing going token of a condition segment
// such as "芝 : 良".
func ParseGoing(segment string) (Going, error) {
	s := strings.TrimSpace(segment)
	for _, g := range goingOrder {
		if strings.HasSuffix(s, string(g)) {
			return g, nil
		}
	}
	return "", fmt.Errorf("unrecognized going %q", segment)
}

// BetType is one of the 8 wagering categories.
type BetType string

const (
	BetWin             BetType = "win"
	BetPlace           BetType = "place"
	BetBracketQuinella BetType = "bracket_quinella"
	BetQuinella        BetType = "quinella"
	BetQuinellaPlace   BetType = "quinella_place"
	BetExacta          BetType = "exacta"
	BetTrio            BetType = "trio"
	BetTrifecta        BetType = "trifecta"
)

var betTypeLabels = map[string]BetType{
	"単勝":  BetWin,
	"複勝":  BetPlace,
	"枠連":  BetBracketQuinella,
	"馬連":  BetQuinella,
	"ワイド": BetQuinellaPlace,
	"馬単":  BetExacta,
	"三連複": BetTrio,
	"三連単": BetTrifecta,
}

// BetTypeForLabel maps a payout table's Japanese row label to its bet type.
// Unrecognized labels return ok=false and are skipped by the payout parser.
func BetTypeForLabel(label string) (BetType, bool) {
	bt, ok := betTypeLabels[strings.TrimSpace(label)]
	return bt, ok
}
