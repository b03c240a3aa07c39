package detect

import "github.com/dataveil/dataveil/internal/strategy"

// Category is a PII category a column can be classified into.
type Category string

const (
	CategoryNationalID Category = "national_id"
	CategoryEmail      Category = "email"
	CategoryPhone      Category = "phone"
	CategoryDate       Category = "date"
	CategoryGeo        Category = "geo"
	CategoryAge        Category = "age"
	CategoryNumeric    Category = "numeric"
	CategoryName       Category = "name"
	CategoryFreeText   Category = "free_text"
)

// priorityOrder breaks confidence ties: earlier entries win.
var priorityOrder = []Category{
	CategoryNationalID,
	CategoryEmail,
	CategoryPhone,
	CategoryDate,
	CategoryGeo,
	CategoryAge,
	CategoryNumeric,
	CategoryName,
	CategoryFreeText,
}

func priorityRank(c Category) int {
	for i, p := range priorityOrder {
		if p == c {
			return i
		}
	}
	return len(priorityOrder)
}

// Finding is one (category, confidence) pair for a column.
type Finding struct {
	Category   Category `json:"category"`
	Confidence float64  `json:"confidence"`
}

// Result is the detection outcome for a single column.
type Result struct {
	Column   string    `json:"column"`
	Findings []Finding `json:"findings"`
	// Suggested is the category-default strategy for the best finding.
	// Risk evaluation may replace it with a tuned spec.
	Suggested strategy.Spec `json:"-"`
	// SuggestedRaw is the wire form of Suggested for API responses.
	SuggestedRaw string `json:"suggested,omitempty"`
}

// Detected reports whether any category cleared the confidence threshold.
func (r Result) Detected() bool {
	return len(r.Findings) > 0
}

// Best returns the winning finding: highest confidence, ties broken by the
// fixed category priority order.
func (r Result) Best() (Finding, bool) {
	if len(r.Findings) == 0 {
		return Finding{}, false
	}

	best := r.Findings[0]
	for _, f := range r.Findings[1:] {
		if f.Confidence > best.Confidence {
			best = f
			continue
		}
		if f.Confidence == best.Confidence && priorityRank(f.Category) < priorityRank(best.Category) {
			best = f
		}
	}
	return best, true
}
