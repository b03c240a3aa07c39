// Package transform implements the anonymization transform library: one
// pure, total function per strategy. Transforms never fail; unparsable
// input degrades to returning the original value.
package transform

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dataveil/dataveil/internal/strategy"
)

// DropSentinel replaces dropped values; the original is not recoverable.
const DropSentinel = "[REMOVED]"

var defaultAgeBins = []float64{0, 12, 18, 30, 45, 60, 75, 200}

var (
	emailSubRE   = regexp.MustCompile(`([A-Za-z0-9._%+\-])[A-Za-z0-9._%+\-]*(@[A-Za-z0-9.\-]+\.[A-Za-z]{2,})`)
	phoneRunRE   = regexp.MustCompile(`\+?\d[\d\-\s().]{5,}\d`)
	dniRunRE     = regexp.MustCompile(`\b\d{8}\b`)
	rucRunRE     = regexp.MustCompile(`\b\d{11}\b`)
	stripDigitRE = regexp.MustCompile(`\d`)
)

// Transformer applies strategy specs to cell values. The salt feeds the
// hash strategy only; pseudonyms key off the run registry instead.
type Transformer struct {
	salt string
}

// New creates a transformer with the given hash salt.
func New(salt string) *Transformer {
	return &Transformer{salt: salt}
}

// Apply runs one strategy over one value. reg may be nil for stateless
// strategies; pseudonym without a registry degrades to a salted hash so
// the call stays deterministic and total.
func (t *Transformer) Apply(spec strategy.Spec, value string, reg *ColumnRegistry) string {
	if spec.IsNoop() {
		return value
	}

	value = strings.TrimSpace(value)

	switch spec.Name {
	case strategy.NameDrop:
		return DropSentinel

	case strategy.NameMask:
		keepStart := spec.IntOr("keep_start", 1)
		keepEnd := spec.IntOr("keep_end", 1)
		char := spec.StringOr("char", "*")
		return Mask(value, keepStart, keepEnd, char)

	case strategy.NameHash:
		length := spec.IntOr("length", 16)
		return t.Hash(value, length)

	case strategy.NamePseudonym:
		prefix := spec.StringOr("prefix", "ID_")
		if reg == nil {
			return prefix + t.Hash(value, 10)
		}
		return reg.Pseudonym(value, prefix)

	case strategy.NameGeneralizeDate:
		granularity := spec.StringOr("granularity", "year_month")
		return GeneralizeDate(value, granularity)

	case strategy.NameGeneralizeGeo:
		levels := spec.IntOr("levels", 2)
		return GeneralizeGeo(value, levels)

	case strategy.NameBucketNumeric:
		size := spec.NumberOr("size", 10)
		return BucketNumeric(value, size)

	case strategy.NameBucketAge:
		return BucketAge(value, parseAgeBins(spec.StringOr("bins", "")))

	case strategy.NameRedactText:
		return RedactText(value)

	default:
		// Unknown strategy name: safe fallback, never corrupt the run
		return Mask(value, 1, 1, "*")
	}
}

// Changed reports whether applying spec to value produced a different
// output, for the per-column report counters.
func (t *Transformer) Changed(spec strategy.Spec, value, output string) bool {
	return output != strings.TrimSpace(value) || spec.Name == strategy.NameDrop
}

// Mask hides the middle of a value. Email-shaped values keep the first
// character of the local part and the full domain; values with six or more
// digits mask every digit and append the last two as a reference fragment;
// everything else keeps keepStart/keepEnd edge characters.
func Mask(value string, keepStart, keepEnd int, char string) string {
	if value == "" {
		return value
	}
	if strings.Contains(value, "@") {
		return maskEmail(value)
	}
	if countDigits(value) >= 6 {
		return maskDigits(value, 2)
	}
	return maskText(value, keepStart, keepEnd, char)
}

func maskText(value string, keepStart, keepEnd int, char string) string {
	if char == "" {
		char = "*"
	}
	if keepStart < 0 {
		keepStart = 0
	}
	if keepEnd < 0 {
		keepEnd = 0
	}

	runes := []rune(value)
	if len(runes) <= keepStart+keepEnd {
		return strings.Repeat(char, len(runes))
	}
	return string(runes[:keepStart]) +
		strings.Repeat(char, len(runes)-keepStart-keepEnd) +
		string(runes[len(runes)-keepEnd:])
}

func maskEmail(value string) string {
	if !emailSubRE.MatchString(value) {
		return maskText(value, 1, 1, "*")
	}
	return emailSubRE.ReplaceAllString(value, "$1***$2")
}

// maskDigits masks every digit in place, keeping separators, and appends
// the last tailKeep original digits in parentheses.
func maskDigits(value string, tailKeep int) string {
	var digits []rune
	var b strings.Builder
	for _, c := range value {
		if c >= '0' && c <= '9' {
			digits = append(digits, c)
			b.WriteByte('*')
		} else {
			b.WriteRune(c)
		}
	}
	if len(digits) == 0 {
		return value
	}
	if tailKeep > 0 {
		if tailKeep > len(digits) {
			tailKeep = len(digits)
		}
		return b.String() + " (" + string(digits[len(digits)-tailKeep:]) + ")"
	}
	return b.String()
}

// Hash returns a deterministic salted digest truncated (or zero-padded) to
// length hex characters. Unlike pseudonym there is no per-run key, so equal
// inputs collide across runs by design.
func (t *Transformer) Hash(value string, length int) string {
	if length <= 0 {
		length = 16
	}
	sum := sha256.Sum256([]byte(t.salt + value))
	digest := hex.EncodeToString(sum[:])
	if length <= len(digest) {
		return digest[:length]
	}
	return digest + strings.Repeat("0", length-len(digest))
}

var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02/01/06",
	"2006-01-02",
	"2006/01/02",
	"2006-1-2",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// GeneralizeDate reduces a date to "YYYY" or "YYYY-MM". Day-first layouts
// are tried before ISO ones. Unparsable input is returned unchanged.
func GeneralizeDate(value, granularity string) string {
	if value == "" {
		return value
	}

	var parsed time.Time
	ok := false
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			parsed = t
			ok = true
			break
		}
	}
	if !ok {
		return value
	}

	if granularity == "year" {
		return strconv.Itoa(parsed.Year())
	}
	return fmt.Sprintf("%04d-%02d", parsed.Year(), int(parsed.Month()))
}

// GeneralizeGeo strips digits and keeps only the last levels comma-separated
// tokens, assuming broader regions appear last ("Av. Lima 123, Miraflores,
// Lima" -> "Miraflores, Lima"). An empty result returns the original.
func GeneralizeGeo(value string, levels int) string {
	if value == "" {
		return value
	}

	stripped := strings.TrimSpace(stripDigitRE.ReplaceAllString(value, ""))
	var parts []string
	for _, p := range strings.Split(stripped, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return value
	}

	if levels <= 0 {
		levels = 1
	}
	if levels > len(parts) {
		levels = len(parts)
	}
	return strings.Join(parts[len(parts)-levels:], ", ")
}

// BucketNumeric maps a number to its enclosing "<lo>-<hi>" range where lo
// is a multiple of size and hi = lo+size-1.
func BucketNumeric(value string, size float64) string {
	x, err := strconv.ParseFloat(value, 64)
	if err != nil || size <= 0 {
		return value
	}

	lo := math.Floor(x/size) * size
	hi := lo + size - 1
	if size == math.Trunc(size) {
		return fmt.Sprintf("%d-%d", int64(lo), int64(hi))
	}
	return fmt.Sprintf("%.2f-%.2f", lo, hi)
}

// BucketAge maps an age into the half-open bin [bins[i], bins[i+1]) and
// emits "<lo>-<hi>". Out-of-range or unparsable values pass through.
func BucketAge(value string, bins []float64) string {
	age, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return value
	}

	for i := 0; i < len(bins)-1; i++ {
		if age >= bins[i] && age < bins[i+1] {
			return fmt.Sprintf("%d-%d", int64(bins[i]), int64(bins[i+1])-1)
		}
	}
	return value
}

// parseAgeBins parses the pipe-separated bins parameter ("0|18|30|60|200").
// Pipes, not commas: commas belong to the strategy mini-language.
func parseAgeBins(raw string) []float64 {
	if raw == "" {
		return defaultAgeBins
	}

	parts := strings.Split(raw, "|")
	if len(parts) < 2 {
		return defaultAgeBins
	}

	bins := make([]float64, 0, len(parts))
	for _, p := range parts {
		x, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultAgeBins
		}
		bins = append(bins, x)
	}
	return bins
}

// RedactText censors PII embedded in free text. Three passes in fixed
// order: email local parts, then 7+ digit phone runs, then standalone 8-
// and 11-digit identifier runs. Earlier passes mask digits so later ones
// cannot re-match already-censored text.
func RedactText(value string) string {
	if value == "" {
		return value
	}

	out := emailSubRE.ReplaceAllString(value, "$1***$2")
	out = phoneRunRE.ReplaceAllStringFunc(out, func(m string) string {
		return maskDigits(m, 0)
	})
	out = dniRunRE.ReplaceAllStringFunc(out, func(m string) string {
		return strings.Repeat("*", len(m))
	})
	out = rucRunRE.ReplaceAllStringFunc(out, func(m string) string {
		return strings.Repeat("*", len(m))
	})
	return out
}

func countDigits(value string) int {
	n := 0
	for _, c := range value {
		if c >= '0' && c <= '9' {
			n++
		}
	}
	return n
}
