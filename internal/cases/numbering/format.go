package numbering

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	dErrors "casedesk/pkg/domain-errors"
)

const (
	yearDigits     = 4
	sequenceDigits = 4
	numberLength   = yearDigits + sequenceDigits

	// MaxSequence is the last sequence representable in four digits.
	MaxSequence = 9999
)

// Format renders year and seq as <YYYY><NNNN>.
func Format(year, seq int) string {
	return fmt.Sprintf("%04d%04d", year, seq)
}

// IsSequenceBearing reports whether number is a plain <YYYY><NNNN> number.
// Restore-suffixed numbers such as "20240002(1)" are not.
func IsSequenceBearing(number string) bool {
	if len(number) != numberLength {
		return false
	}
	for i := 0; i < len(number); i++ {
		if number[i] < '0' || number[i] > '9' {
			return false
		}
	}
	return true
}

// Parse splits a plain case number into year and sequence.
func Parse(number string) (year, seq int, err error) {
	if !IsSequenceBearing(number) {
		return 0, 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("malformed case number %q", number))
	}
	year, _ = strconv.Atoi(number[:yearDigits])
	seq, _ = strconv.Atoi(number[yearDigits:])
	return year, seq, nil
}

// NumericValue is the integer formed by the leading digits of number, or 0
// when number does not start with a digit. "20240002(1)" yields 20240002.
func NumericValue(number string) int64 {
	end := 0
	for end < len(number) && number[end] >= '0' && number[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.ParseInt(number[:end], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// BaseNumber strips a restore suffix: "20240002(3)" becomes "20240002".
func BaseNumber(number string) string {
	if i := strings.IndexByte(number, '('); i > 0 && strings.HasSuffix(number, ")") {
		return number[:i]
	}
	return number
}

// WithSuffix appends the n-th restore disambiguator to number's base.
func WithSuffix(number string, n int) string {
	return fmt.Sprintf("%s(%d)", BaseNumber(number), n)
}

// WithTimestampSuffix is the fallback disambiguator once numeric suffixes run out.
func WithTimestampSuffix(number string, t time.Time) string {
	return fmt.Sprintf("%s(r%d)", BaseNumber(number), t.UnixMilli())
}
