package detect

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	emailRE      = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	dateRE       = regexp.MustCompile(`^(?:\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}|\d{4}[/\-]\d{1,2}[/\-]\d{1,2})(?:[ T].*)?$`)
	longDigitRE  = regexp.MustCompile(`\d{7,}`)
	addressHints = regexp.MustCompile(`(?i)\b(av\.|jr\.|calle|urbanizacion|urbanización|mz|lt|avda|avenida|pasaje|pje|barrio|sector|urb\.?)`)
	properNameRE = regexp.MustCompile(`^[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(\s[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)+$`)
)

// recognizer tests whether a single non-null value looks like a category.
type recognizer func(value string) bool

// contentRecognizers drive the content-based detection pass.
var contentRecognizers = map[Category]recognizer{
	CategoryEmail:      isEmail,
	CategoryPhone:      isPhone,
	CategoryNationalID: isNationalID,
	CategoryDate:       isDate,
	CategoryGeo:        isGeo,
	CategoryAge:        isAge,
	CategoryNumeric:    isNumeric,
	CategoryName:       isProperName,
	CategoryFreeText:   isFreeText,
}

func isEmail(v string) bool {
	return emailRE.MatchString(v)
}

// isPhone accepts a run of 7+ digits with common separators and nothing
// else: "+51 987-654-321", "(01) 4567890".
func isPhone(v string) bool {
	digits := 0
	for _, c := range v {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '+' || c == '-' || c == ' ' || c == '(' || c == ')' || c == '.':
		default:
			return false
		}
	}
	return digits >= 7 && digits <= 15
}

// isNationalID matches fixed-length all-digit runs: 8 digits (DNI) or
// 11 digits (RUC).
func isNationalID(v string) bool {
	if len(v) != 8 && len(v) != 11 {
		return false
	}
	for _, c := range v {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDate(v string) bool {
	return dateRE.MatchString(v)
}

// isGeo matches comma-separated locality tokens with no embedded long
// digit runs, or values carrying street-address hint words.
func isGeo(v string) bool {
	if longDigitRE.MatchString(v) {
		return false
	}
	if addressHints.MatchString(v) {
		return true
	}
	if !strings.Contains(v, ",") {
		return false
	}
	tokens := 0
	for _, part := range strings.Split(v, ",") {
		if strings.TrimSpace(part) != "" {
			tokens++
		}
	}
	return tokens >= 2
}

func isAge(v string) bool {
	x, err := strconv.ParseFloat(v, 64)
	return err == nil && x >= 0 && x <= 120
}

func isNumeric(v string) bool {
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

func isProperName(v string) bool {
	return properNameRE.MatchString(v)
}

func isFreeText(v string) bool {
	return len(v) >= 25 && len(strings.Fields(v)) >= 5
}
