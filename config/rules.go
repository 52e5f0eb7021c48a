package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// Roast categories produced by normalization.
const (
	RoastLight  = "Light"
	RoastMedium = "Medium"
	RoastDark   = "Dark"
)

// RoastCategories lists the categories in reporting order.
var RoastCategories = []string{RoastLight, RoastMedium, RoastDark}

// Rules is the static lookup data consumed by normalization and cleanup.
type Rules struct {
	Countries         []string           `yaml:"countries"`
	RoastCategories   []RoastRule        `yaml:"roast_categories"`
	ExchangeRates     map[string]float64 `yaml:"exchange_rates"`
	CurrencyDetectors []CurrencyDetector `yaml:"currency_detectors"`
	NotAvailable      []string           `yaml:"not_available"`
	ValueLabels       []LabelPattern     `yaml:"value_labels"`
	SectionLabels     []LabelPattern     `yaml:"section_labels"`
	SectionMarkers    []string           `yaml:"section_markers"`
}

// RoastRule maps a roast-level phrase to a category.
type RoastRule struct {
	Phrase   string `yaml:"phrase"`
	Category string `yaml:"category"`
}

// CurrencyDetector assigns Code when Pattern matches the price text.
type CurrencyDetector struct {
	Code    string `yaml:"code"`
	Pattern string `yaml:"pattern"`
}

// LabelPattern is a regular expression and its replacement.
type LabelPattern struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Pairs returns the patterns in the form utils.NewLabelStripper expects.
func Pairs(patterns []LabelPattern) [][2]string {
	out := make([][2]string, len(patterns))
	for i, p := range patterns {
		out[i] = [2]string{p.Pattern, p.Replacement}
	}
	return out
}

// LoadRules parses the rules file at path, or the embedded defaults when
// path is empty.
func LoadRules(path string) (*Rules, error) {
	data := defaultRulesYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("rules: read %q: %w", path, err)
		}
		data = b
	}
	return ParseRules(data)
}

// ParseRules decodes and validates a rules document.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("rules: decode: %w", err)
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// DefaultRules returns the embedded rules and panics if they are invalid.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Rules) validate() error {
	if len(r.Countries) == 0 {
		return fmt.Errorf("rules: countries list is empty")
	}
	if len(r.CurrencyDetectors) == 0 {
		return fmt.Errorf("rules: currency_detectors list is empty")
	}
	for _, rr := range r.RoastCategories {
		switch rr.Category {
		case RoastLight, RoastMedium, RoastDark:
		default:
			return fmt.Errorf("rules: roast phrase %q maps to unknown category %q", rr.Phrase, rr.Category)
		}
	}
	return nil
}
