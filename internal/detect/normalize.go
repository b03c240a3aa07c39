package detect

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents removes combining marks, e.g. "ubicación" -> "ubicacion".
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeColumnName lowers, de-accents and collapses separators so that
// "Fecha de Nacimiento" and "fecha_nacimiento" compare equal.
func normalizeColumnName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if out, _, err := transform.String(stripAccents, s); err == nil {
		s = out
	}

	var b strings.Builder
	lastUnderscore := false
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}

// columnSynonyms maps normalized column names to their canonical form
// before keyword matching.
var columnSynonyms = map[string]string{
	"full_name":           "nombre",
	"nombres":             "nombre",
	"persona":             "nombre",
	"apellidos":           "apellido",
	"doc":                 "documento",
	"documento_identidad": "documento",
	"e_mail":              "email",
	"correo_electronico":  "correo",
	"tlf":                 "telefono",
	"telf":                "telefono",
	"movil":               "telefono",
	"domicilio":           "direccion",
	"ubicacion_gps":       "ubicacion",
	"fecha_nacimiento":    "nacimiento",
	"fec_nac":             "nacimiento",
	"f_nac":               "nacimiento",
	"coordenada":          "coordenadas",
	"importe":             "monto",
	"ingreso":             "monto",
}

func canonicalColumnName(name string) string {
	n := normalizeColumnName(name)
	if canonical, ok := columnSynonyms[n]; ok {
		return canonical
	}
	return n
}

// keywordsByCategory drives the name-based detection pass. Keys are
// canonical (normalized, de-accented) tokens.
var keywordsByCategory = map[Category][]string{
	CategoryEmail:      {"email", "correo", "mail"},
	CategoryPhone:      {"telefono", "phone", "celular", "tel", "cel"},
	CategoryNationalID: {"dni", "ruc", "ssn", "documento", "cedula", "pasaporte", "passport", "nif", "nie"},
	CategoryDate:       {"fecha", "date", "nacimiento", "dob", "birthday"},
	CategoryGeo:        {"direccion", "address", "ciudad", "city", "distrito", "provincia", "ubicacion", "location", "coordenadas", "latitud", "longitud", "zona", "barrio"},
	CategoryAge:        {"edad", "age"},
	CategoryNumeric:    {"monto", "salario", "precio", "costo", "valor"},
	CategoryName:       {"nombre", "name", "apellido"},
	CategoryFreeText:   {"comentario", "comentarios", "observacion", "observaciones", "notas", "notes", "descripcion", "description"},
}

// matchByName runs the name pass for one column. Exact keyword match is
// confidence 1.0; containment counts as a weaker 0.8 hint.
func matchByName(column string) []Finding {
	canonical := canonicalColumnName(column)
	if canonical == "" {
		return nil
	}

	var findings []Finding
	for _, category := range priorityOrder {
		for _, keyword := range keywordsByCategory[category] {
			if canonical == keyword {
				findings = append(findings, Finding{Category: category, Confidence: 1.0})
			} else if strings.Contains(canonical, keyword) {
				findings = append(findings, Finding{Category: category, Confidence: 0.8})
			} else {
				continue
			}
			break
		}
	}
	return findings
}
