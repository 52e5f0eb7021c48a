package models

import "time"

// Sentinel values written when a field could not be extracted.
const (
	Unknown      = "Unknown"
	NotAvailable = "N/A"
)

// ExtractedFields holds the best-effort raw values recovered from one review
// page. Every field is always populated; misses carry a sentinel.
type ExtractedFields struct {
	Title           string
	Roaster         string
	RoasterLocation string
	RoastLevel      string
	Origin          string
	Agtron          string
	Price           string
	ReviewDate      string
	Rating          int

	Aroma      int
	Acidity    int
	Body       int
	Flavor     int
	Aftertaste int

	BlindAssessment string
	Notes           string
	BottomLine      string
	WithMilk        string

	// RawContent is the outer HTML of the review body, kept for re-parsing.
	RawContent string

	// Sources records which strategy produced each field: "table",
	// "selector", "regex" or "default".
	Sources map[string]string
}

// Derived holds the normalized columns computed from the raw text fields.
type Derived struct {
	Country       *string
	Currency      *string
	PriceNumeric  *float64
	PriceUSD      *float64 // transient, not persisted
	WeightOz      *float64
	WeightUnit    *string
	PricePerOzUSD *float64
	ReviewYear    *int
	RoastCategory *string
}

// Review is the persisted, normalized review record.
type Review struct {
	ID   int64
	URL  string
	Slug string

	Title           string
	Roaster         string
	RoasterLocation string
	RoastLevel      string
	Origin          string
	Agtron          string
	Price           string
	ReviewDate      string
	Rating          int

	Aroma      int
	Acidity    int
	Body       int
	Flavor     int
	Aftertaste int

	BlindAssessment string
	Notes           string
	BottomLine      string
	WithMilk        *string
	RawContent      *string

	EmbedText string
	Embedding []float64

	Derived

	CreatedAt time.Time
}

// PriceStatus distinguishes the three states encoded by PricePerOzUSD.
type PriceStatus int

const (
	PriceUnprocessed PriceStatus = iota
	PriceUnavailable
	PriceKnown
)

// PriceStatus reports whether normalization has run and produced a value.
// A nil PricePerOzUSD means unprocessed; 0 means processed but not computable.
func (r *Review) PriceStatus() PriceStatus {
	switch {
	case r.PricePerOzUSD == nil:
		return PriceUnprocessed
	case *r.PricePerOzUSD <= 0:
		return PriceUnavailable
	default:
		return PriceKnown
	}
}

// PositivePricePerOz returns the price per ounce and true when it is a real value.
func (r *Review) PositivePricePerOz() (float64, bool) {
	if r.PriceStatus() != PriceKnown {
		return 0, false
	}
	return *r.PricePerOzUSD, true
}

// HasAllSubscores reports whether all five sensory subscores are nonzero.
func (r *Review) HasAllSubscores() bool {
	return r.Aroma != 0 && r.Acidity != 0 && r.Body != 0 && r.Flavor != 0 && r.Aftertaste != 0
}

// CountryName returns the derived country or "".
func (r *Review) CountryName() string {
	if r.Country == nil {
		return ""
	}
	return *r.Country
}

// Roast returns the derived roast category or "".
func (r *Review) Roast() string {
	if r.RoastCategory == nil {
		return ""
	}
	return *r.RoastCategory
}

// Year returns the derived review year or 0.
func (r *Review) Year() int {
	if r.ReviewYear == nil {
		return 0
	}
	return *r.ReviewYear
}
