package record

import (
	"strconv"
	"time"
)

// RaceProfile holds per-race metadata, one row per race identifier.
type RaceProfile struct {
	RaceID       string     `json:"race_id"`
	Title        string     `json:"title"`
	CourseType   CourseType `json:"course_type"`
	CourseLength int        `json:"course_length"` // meters
	Weather      Weather    `json:"weather"`
	Going        Going      `json:"going"`
	Start        time.Time  `json:"start"`
	RaceClass    string     `json:"race_class"`
	Requirements string     `json:"requirements"`
}

// RaceEntry is one starting horse's row within a race result.
// HorseID and JockeyID are filled positionally from the result table's
// anchor tags, in original page order.
type RaceEntry struct {
	RaceID          string  `json:"race_id"`
	Order           int     `json:"order"` // finishing order, 0 if unplaced/void
	Position        int     `json:"position"`
	Number          int     `json:"number"`
	Sex             string  `json:"sex"`
	Age             int     `json:"age"`
	Carry           float64 `json:"carry"` // carried weight, kg
	Lap             float64 `json:"lap"`   // elapsed time, seconds
	Margin          float64 `json:"margin"`
	OrderDuringRace []int   `json:"order_during_race"`
	Last            float64 `json:"last"` // final-furlong time
	WinOdds         float64 `json:"win_odds"`
	Weight          int     `json:"weight"`
	WeightDiff      int     `json:"weight_diff"`
	Prize           float64 `json:"prize"`
	HorseID         string  `json:"horse_id"`
	JockeyID        string  `json:"jockey_id"`
}

// HorseRecord holds per-horse profile data, created lazily for horses
// referenced by a RaceEntry. Pedigree fields stay empty when the secondary
// pedigree lookup fails.
type HorseRecord struct {
	HorseID     string    `json:"horse_id"`
	Name        string    `json:"name"`
	Birthday    time.Time `json:"birthday,omitempty"`
	TrainerID   string    `json:"trainer_id"`
	TrainerName string    `json:"trainer_name"`
	Birthplace  string    `json:"birthplace"`
	SireID      string    `json:"sire_id,omitempty"`
	SireName    string    `json:"sire_name,omitempty"`
	BMSID       string    `json:"bms_id,omitempty"`
	BMSName     string    `json:"bms_name,omitempty"`
}

// PayoutRecord is one winning combination's dividend for one bet type.
type PayoutRecord struct {
	RaceID     string  `json:"race_id"`
	BetType    BetType `json:"bet_type"`
	Numbers    []int   `json:"numbers"`
	Payout     int     `json:"payout"`     // currency units
	Popularity int     `json:"popularity"` // favorite rank, 0 if unparseable
}

// raceIDLen is the fixed width of a race identifier:
// 4-digit year + 2-digit venue + 2-digit meeting + 2-digit day + 2-digit race number.
const raceIDLen = 12

// ValidRaceID reports whether id has the fixed-width zero-padded form.
func ValidRaceID(id string) bool {
	if len(id) != raceIDLen {
		return false
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// RaceIDYear extracts the season year from a race identifier.
// Returns 0 for malformed identifiers.
func RaceIDYear(id string) int {
	if !ValidRaceID(id) {
		return 0
	}
	year, err := strconv.Atoi(id[:4])
	if err != nil {
		return 0
	}
	return year
}
