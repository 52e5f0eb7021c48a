package services

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"brew-intelligence/config"
	"brew-intelligence/models"
	"brew-intelligence/utils"
)

// Weight conversion constants.
const (
	GramsPerOunce  = 28.35
	OuncesPerPound = 16.0
	OuncesPerKilo  = 35.27
	unitOunce      = "oz"
	unitGram       = "g"
	unitPound      = "lb"
	unitKilogram   = "kg"
)

var (
	// amountRegexp captures the first decimal-or-integer token once commas are removed
	amountRegexp = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// yearRegexp captures a 19xx or 20xx year
	yearRegexp = regexp.MustCompile(`(19\d{2}|20\d{2})`)
	// spaceRunRegexp matches whitespace runs inside a roast phrase
	spaceRunRegexp = regexp.MustCompile(`\s+`)
)

// weightPatterns are checked in order; the first unit that matches wins.
var weightPatterns = []struct {
	unit     string
	re       *regexp.Regexp
	toOunces func(float64) float64
}{
	{unitOunce, regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[\s-]*(?:ounces?|oz)\b`), func(v float64) float64 { return v }},
	{unitGram, regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[\s-]*(?:grams?|gr|g)\b`), func(v float64) float64 { return v / GramsPerOunce }},
	{unitPound, regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[\s-]*(?:pounds?|lbs?)\b`), func(v float64) float64 { return v * OuncesPerPound }},
	{unitKilogram, regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)[\s-]*(?:kilograms?|kilos?|kg)\b`), func(v float64) float64 { return v * OuncesPerKilo }},
}

type currencyDetector struct {
	code string
	re   *regexp.Regexp
}

// Normalizer turns free-text review fields into the derived, comparable
// columns: country, currency, USD price, weight, price per ounce, year and
// roast category.
type Normalizer struct {
	countries     []string
	roastRules    []config.RoastRule
	exchangeRates map[string]float64
	detectors     []currencyDetector
	notAvailable  map[string]struct{}
	logger        *utils.Logger
}

// NewNormalizer compiles the currency detectors in rules.
func NewNormalizer(rules *config.Rules, logger *utils.Logger) (*Normalizer, error) {
	detectors := make([]currencyDetector, 0, len(rules.CurrencyDetectors))
	for _, d := range rules.CurrencyDetectors {
		re, err := regexp.Compile(d.Pattern)
		if err != nil {
			return nil, fmt.Errorf("normalizer: currency %s: %w", d.Code, err)
		}
		detectors = append(detectors, currencyDetector{code: d.Code, re: re})
	}

	na := make(map[string]struct{}, len(rules.NotAvailable))
	for _, s := range rules.NotAvailable {
		na[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	return &Normalizer{
		countries:     rules.Countries,
		roastRules:    rules.RoastCategories,
		exchangeRates: rules.ExchangeRates,
		detectors:     detectors,
		notAvailable:  na,
		logger:        logger,
	}, nil
}

// Normalize computes every derived field for one review. PricePerOzUSD is
// always set: 0 when either the USD price or the weight is unknown.
func (n *Normalizer) Normalize(origin, price, reviewDate, roastLevel string) models.Derived {
	var d models.Derived

	d.Country = n.ExtractCountry(origin)
	d.PriceNumeric, d.Currency = n.ExtractPrice(price)
	oz, unit, hasWeight := weightOunces(price)
	if hasWeight {
		rounded := round2(oz)
		d.WeightOz, d.WeightUnit = &rounded, &unit
	}
	d.ReviewYear = ExtractYear(reviewDate)
	d.RoastCategory = n.NormalizeRoast(roastLevel)

	if d.PriceNumeric != nil && d.Currency != nil {
		if usd, ok := n.ToUSD(*d.PriceNumeric, *d.Currency); ok {
			d.PriceUSD = &usd
		} else {
			n.logger.Debug("[normalize] No exchange rate for %s", *d.Currency)
		}
	}

	var ppo float64
	if hasWeight {
		ppo = PricePerOz(d.PriceUSD, &oz)
	}
	d.PricePerOzUSD = &ppo
	return d
}

// ExtractCountry returns the first configured country whose name occurs in
// origin, case-insensitively. List order decides overlaps.
func (n *Normalizer) ExtractCountry(origin string) *string {
	lower := strings.ToLower(origin)
	if strings.TrimSpace(lower) == "" {
		return nil
	}
	for _, c := range n.countries {
		if strings.Contains(lower, strings.ToLower(c)) {
			country := c
			return &country
		}
	}
	return nil
}

// ExtractPrice returns the first numeric token of text and the currency of
// the first detector that matches. The two are independent: a bare number
// has a nil currency. Explicit "N/A" markers yield nothing.
func (n *Normalizer) ExtractPrice(text string) (*float64, *string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, nil
	}
	if _, na := n.notAvailable[strings.ToLower(trimmed)]; na {
		return nil, nil
	}

	var currency *string
	for _, d := range n.detectors {
		if d.re.MatchString(trimmed) {
			code := d.code
			currency = &code
			break
		}
	}

	var amount *float64
	cleaned := strings.ReplaceAll(trimmed, ",", "")
	if match := amountRegexp.FindString(cleaned); match != "" {
		if v, err := strconv.ParseFloat(match, 64); err == nil {
			amount = &v
		}
	}
	return amount, currency
}

// ToUSD converts amount using the static exchange-rate table. Unknown
// currencies report false.
func (n *Normalizer) ToUSD(amount float64, currency string) (float64, bool) {
	rate, ok := n.exchangeRates[currency]
	if !ok {
		return 0, false
	}
	return amount * rate, true
}

// NormalizeRoast maps a roast-level description to Light, Medium or Dark.
// The input is lower-cased and whitespace runs become hyphens so that
// "Medium Dark" and "Medium-Dark" match the same phrase.
func (n *Normalizer) NormalizeRoast(roastLevel string) *string {
	key := strings.ToLower(strings.TrimSpace(roastLevel))
	if key == "" {
		return nil
	}
	key = spaceRunRegexp.ReplaceAllString(key, "-")
	for _, r := range n.roastRules {
		if strings.Contains(key, r.Phrase) {
			category := r.Category
			return &category
		}
	}
	return nil
}

// ExtractWeight converts the first recognised quantity in text to ounces,
// rounded to two decimals. Units are tried in the order ounce, gram, pound,
// kilogram.
// Examples:
//
//	"$18.00 / 12 ounces" → 12 oz
//	"250 grams"          → 8.82 oz
func ExtractWeight(text string) (*float64, *string) {
	oz, unit, ok := weightOunces(text)
	if !ok {
		return nil, nil
	}
	oz = round2(oz)
	return &oz, &unit
}

// weightOunces is ExtractWeight without the output rounding.
func weightOunces(text string) (float64, string, bool) {
	cleaned := strings.ReplaceAll(text, ",", "")
	for _, p := range weightPatterns {
		m := p.re.FindStringSubmatch(cleaned)
		if len(m) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v <= 0 {
			continue
		}
		return p.toOunces(v), p.unit, true
	}
	return 0, "", false
}

// ExtractYear returns the leftmost 19xx/20xx token in text.
func ExtractYear(text string) *int {
	match := yearRegexp.FindString(text)
	if match == "" {
		return nil
	}
	year, err := strconv.Atoi(match)
	if err != nil {
		return nil
	}
	return &year
}

// PricePerOz returns round(usd/oz, 2), or 0 when either input is missing or
// not positive.
func PricePerOz(usd, oz *float64) float64 {
	if usd == nil || oz == nil || *usd <= 0 || *oz <= 0 {
		return 0
	}
	return round2(*usd / *oz)
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
