package watering

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// ErrInvalidProfile is returned when a profile's frequency text cannot be interpreted.
var ErrInvalidProfile = errors.New("invalid watering profile")

// Mode selects how the should-notify decision is made.
type Mode int

const (
	ModeInterval Mode = iota + 1 // Elapsed calendar days since the last reminder
	ModeMoisture                 // Live reading against the dryness threshold
)

func (m Mode) String() string {
	switch m {
	case ModeInterval:
		return "interval"
	case ModeMoisture:
		return "moisture"
	default:
		return "unknown"
	}
}

// Schedule is the parsed form of a profile frequency.
type Schedule struct {
	Mode         Mode
	IntervalDays int // Set in ModeInterval only
}

var digitsPattern = regexp.MustCompile(`[0-9]+`)

// ParseFrequency interprets frequency text such as "2日に1回" (interval of 2 days) or
// "土が乾いたら" (moisture triggered). Full-width digits are accepted.
// The first number in the text is the interval.
func ParseFrequency(frequency string) (Schedule, error) {
	folded := strings.TrimSpace(width.Fold.String(frequency))
	if folded == "" {
		return Schedule{}, fmt.Errorf("%w: empty frequency", ErrInvalidProfile)
	}

	if digits := digitsPattern.FindString(folded); digits != "" {
		days, err := strconv.Atoi(digits)
		if err != nil || days <= 0 {
			return Schedule{}, fmt.Errorf("%w: interval %q in frequency %q", ErrInvalidProfile, digits, frequency)
		}
		return Schedule{Mode: ModeInterval, IntervalDays: days}, nil
	}

	for _, r := range folded {
		if unicode.IsLetter(r) {
			return Schedule{Mode: ModeMoisture}, nil
		}
	}
	return Schedule{}, fmt.Errorf("%w: unrecognised frequency %q", ErrInvalidProfile, frequency)
}
