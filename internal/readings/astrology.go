package readings

import (
	"fmt"
	"time"

	"guia_service/internal/utils"
)

type Element string

const (
	Fire  Element = "fogo"
	Earth Element = "terra"
	Air   Element = "ar"
	Water Element = "água"
)

type Sign struct {
	Key     string  `json:"key"`
	Name    string  `json:"name"`
	Element Element `json:"element"`
	// first day of the sign in the tropical zodiac
	startMonth time.Month
	startDay   int
}

// Signs in calendar order. Capricorn is last and also covers early January.
var Signs = []Sign{
	{"aquario", "Aquário", Air, time.January, 20},
	{"peixes", "Peixes", Water, time.February, 19},
	{"aries", "Áries", Fire, time.March, 21},
	{"touro", "Touro", Earth, time.April, 20},
	{"gemeos", "Gêmeos", Air, time.May, 21},
	{"cancer", "Câncer", Water, time.June, 21},
	{"leao", "Leão", Fire, time.July, 23},
	{"virgem", "Virgem", Earth, time.August, 23},
	{"libra", "Libra", Air, time.September, 23},
	{"escorpiao", "Escorpião", Water, time.October, 23},
	{"sagitario", "Sagitário", Fire, time.November, 22},
	{"capricornio", "Capricórnio", Earth, time.December, 22},
}

const dateLayout = "2006-01-02"

// ParseBirthDate accepts YYYY-MM-DD and rejects dates in the future.
func ParseBirthDate(s string, now time.Time) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: birth date must be YYYY-MM-DD", ErrInvalidInput)
	}
	if t.After(now) {
		return time.Time{}, fmt.Errorf("%w: birth date is in the future", ErrInvalidInput)
	}
	return t, nil
}

// SignFromDate returns the sun sign for a birth date.
func SignFromDate(t time.Time) Sign {
	month, day := t.Month(), t.Day()
	sign := Signs[len(Signs)-1]
	for _, s := range Signs {
		if month > s.startMonth || (month == s.startMonth && day >= s.startDay) {
			sign = s
		}
	}
	return sign
}

// ParseSign matches a sign by key or Portuguese name, ignoring case and accents.
func ParseSign(name string) (Sign, bool) {
	key := utils.NormalizeKey(name)
	for _, s := range Signs {
		if s.Key == key || utils.NormalizeKey(s.Name) == key {
			return s, true
		}
	}
	return Sign{}, false
}

// Compatibility scores two signs by element: same element 90, the classic
// pairs fire/air and earth/water 80, anything else 60.
func Compatibility(a, b Sign) int {
	if a.Element == b.Element {
		return 90
	}
	pair := map[Element]Element{Fire: Air, Air: Fire, Earth: Water, Water: Earth}
	if pair[a.Element] == b.Element {
		return 80
	}
	return 60
}
