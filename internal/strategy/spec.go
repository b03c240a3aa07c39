// Package strategy implements the anonymization strategy mini-language:
// parsing the "name:k1=v1,k2=v2" wire format into typed specs and resolving
// the effective strategy per column from caller plans and auto-suggestions.
package strategy

import (
	"math"
	"strconv"
	"strings"
)

// Known strategy names. Unknown names are not rejected here; the transform
// library degrades them to a generic mask.
const (
	NameMask           = "mask"
	NameHash           = "hash"
	NameDrop           = "drop"
	NamePseudonym      = "pseudonym"
	NameGeneralizeDate = "generalize_date"
	NameGeneralizeGeo  = "generalize_geo"
	NameBucketNumeric  = "bucket_numeric"
	NameBucketAge      = "bucket_age"
	NameRedactText     = "redact_text"
	NameNone           = "none"
)

// ParamKind discriminates the parameter union.
type ParamKind int

const (
	ParamNumber ParamKind = iota
	ParamString
)

// Param is one strategy parameter, resolved to number or string once at
// parse time.
type Param struct {
	Key  string
	Kind ParamKind
	Num  float64
	Str  string
}

// Spec is a parsed strategy: a name plus ordered parameters. An empty name
// means "leave the column unchanged".
type Spec struct {
	Name   string
	Params []Param
}

// IsNoop reports whether applying this spec leaves values unchanged.
func (s Spec) IsNoop() bool {
	return s.Name == "" || s.Name == NameNone
}

// NumberOr returns the named numeric parameter, or def when absent or
// non-numeric.
func (s Spec) NumberOr(key string, def float64) float64 {
	for _, p := range s.Params {
		if p.Key == key && p.Kind == ParamNumber {
			return p.Num
		}
	}
	return def
}

// IntOr returns the named parameter as an int, or def.
func (s Spec) IntOr(key string, def int) int {
	return int(s.NumberOr(key, float64(def)))
}

// StringOr returns the named parameter rendered as a string, or def when
// absent.
func (s Spec) StringOr(key string, def string) string {
	for _, p := range s.Params {
		if p.Key != key {
			continue
		}
		if p.Kind == ParamNumber {
			return formatNumber(p.Num)
		}
		return p.Str
	}
	return def
}

// Parse parses the strategy wire format: "name" or "name:k1=v1,k2=v2".
// Keys and values are trimmed; values convertible to a finite number are
// stored as numbers. Malformed pairs are skipped, never an error; a missing
// name yields a no-op spec.
func Parse(raw string) Spec {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Spec{}
	}

	name, rest, found := strings.Cut(raw, ":")
	name = strings.TrimSpace(name)
	if name == "" {
		return Spec{}
	}

	spec := Spec{Name: name}
	if !found {
		return spec
	}

	for _, kv := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}

		if num, err := strconv.ParseFloat(value, 64); err == nil && !math.IsInf(num, 0) && !math.IsNaN(num) {
			spec.Params = append(spec.Params, Param{Key: key, Kind: ParamNumber, Num: num})
			continue
		}
		spec.Params = append(spec.Params, Param{Key: key, Kind: ParamString, Str: value})
	}

	return spec
}

// String serializes the spec back to the wire format. Parse(s.String())
// yields an equivalent spec for anything this system produces.
func (s Spec) String() string {
	if s.Name == "" {
		return ""
	}
	if len(s.Params) == 0 {
		return s.Name
	}

	var b strings.Builder
	b.WriteString(s.Name)
	b.WriteByte(':')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		if p.Kind == ParamNumber {
			b.WriteString(formatNumber(p.Num))
		} else {
			b.WriteString(p.Str)
		}
	}
	return b.String()
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
