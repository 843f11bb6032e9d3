package validate

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	reEmail = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	reQ     = regexp.MustCompile(`^[\p{L}\p{N} _'.&-]{1,100}$`)
	reID    = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)
	rePhone = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)
	reZIP   = regexp.MustCompile(`^[A-Za-z0-9 -]{3,20}$`)

	MaxPrice = decimal.RequireFromString("999999.99")
	MinPrice = decimal.RequireFromString("0.01")
)

// MaxQty caps a single cart line.
const MaxQty = 999

func Email(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) == 0 || len(s) > 100 {
		return "", false
	}
	return s, reEmail.MatchString(s)
}

// Q validates a search term: trims, enforces allowed characters and max length.
func Q(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	return s, reQ.MatchString(s)
}

// Qty parses a requested quantity. Anything unparsable reports false.
func Qty(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// ID validates a simple resource identifier (product/category ids, uuids).
func ID(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != "" && reID.MatchString(s)
}

// Name validates a displayable name with a max length in characters.
func Name(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > max {
		return "", false
	}
	return s, true
}

// Text trims optional free text and checks its length.
func Text(s string, max int) (string, bool) {
	s = strings.TrimSpace(s)
	return s, utf8.RuneCountInString(s) <= max
}

// Phone accepts an empty value or something phone-shaped.
func Phone(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s == "" || rePhone.MatchString(s)
}

// ZIP accepts an empty value or a postal code of up to 20 characters.
func ZIP(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s == "" || reZIP.MatchString(s)
}

// Price parses a money amount within the catalog's bounds, two decimals at most.
func Price(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, PriceInRange(d)
}

func PriceInRange(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && !d.LessThan(MinPrice) && !d.GreaterThan(MaxPrice)
}

// Password enforces a length window and mixed character classes.
func Password(s string) bool {
	l := len(s)
	if l < 8 || l > 64 {
		return false
	}
	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range s {
		switch {
		case 'a' <= r && r <= 'z':
			hasLower = true
		case 'A' <= r && r <= 'Z':
			hasUpper = true
		case '0' <= r && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	return hasLower && hasUpper && hasDigit && hasSymbol
}
