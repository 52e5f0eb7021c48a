package coffeereview

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brew-intelligence/config"
	"brew-intelligence/models"
)

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := NewExtractor(config.DefaultRules())
	require.NoError(t, err)
	return e
}

func parse(t *testing.T, markup string) *Document {
	t.Helper()
	doc, err := ParseHTML([]byte(markup))
	require.NoError(t, err)
	return doc
}

func TestExtractModernLayout(t *testing.T) {
	e := newTestExtractor(t)
	f := e.Extract(parse(t, modernReviewHTML))

	assert.Equal(t, "Ethiopia Guji Natural", f.Title)
	assert.Equal(t, "Roaster A", f.Roaster)
	assert.Equal(t, "Portland, Oregon", f.RoasterLocation)
	assert.Equal(t, "Guji Zone, Ethiopia", f.Origin)
	assert.Equal(t, "Medium-Light", f.RoastLevel)
	assert.Equal(t, "58/76", f.Agtron)
	assert.Equal(t, "$18.00/12 ounces", f.Price)
	assert.Equal(t, "March 2021", f.ReviewDate)
	assert.Equal(t, 94, f.Rating)
	assert.Equal(t, 9, f.Aroma)
	assert.Equal(t, 8, f.Acidity)
	assert.Equal(t, 9, f.Body)
	assert.Equal(t, 9, f.Flavor)
	assert.Equal(t, 8, f.Aftertaste)

	assert.Equal(t, "Richly sweet, floral. Blueberry, cocoa nib.", f.BlindAssessment)
	assert.Equal(t, "Produced by smallholders in the Guji Zone.", f.Notes)
	assert.Equal(t, "A juicy, fruit-forward natural.", f.BottomLine)
	assert.Equal(t, "", f.WithMilk)
	assert.True(t, strings.HasPrefix(f.RawContent, `<div class="entry-content">`))

	assert.Equal(t, SourceSelector, f.Sources["title"])
	assert.Equal(t, SourceSelector, f.Sources["rating"])
	assert.Equal(t, SourceTable, f.Sources["roaster"])
	assert.Equal(t, SourceTable, f.Sources["price"])
}

func TestExtractLegacyLayout(t *testing.T) {
	e := newTestExtractor(t)
	f := e.Extract(parse(t, legacyReviewHTML))

	assert.Equal(t, 93, f.Rating)
	assert.Equal(t, "Old Town Roasters", f.Roaster)
	assert.Equal(t, "Kenya Nyeri Peaberry", f.Title)
	assert.Equal(t, "$16.50/12 ounces", f.Price)
	assert.Equal(t, "Bright, juicy, black currant.", f.BlindAssessment)
	assert.Equal(t, "Grown in Nyeri.", f.Notes)
	assert.Equal(t, "Lovers of bright coffees. $16.50/12 ounces", f.BottomLine)

	assert.Equal(t, SourceRegex, f.Sources["rating"])
	assert.Equal(t, SourceRegex, f.Sources["roaster"])
	assert.Equal(t, SourceRegex, f.Sources["title"])
	assert.Equal(t, SourceRegex, f.Sources["price"])
}

func TestExtractDefaults(t *testing.T) {
	e := newTestExtractor(t)
	f := e.Extract(parse(t, `<html><body><div>nothing here</div></body></html>`))

	assert.Equal(t, models.Unknown, f.Title)
	assert.Equal(t, models.Unknown, f.Roaster)
	assert.Equal(t, models.Unknown, f.RoasterLocation)
	assert.Equal(t, models.Unknown, f.RoastLevel)
	assert.Equal(t, models.Unknown, f.Origin)
	assert.Equal(t, models.Unknown, f.ReviewDate)
	assert.Equal(t, models.NotAvailable, f.Agtron)
	assert.Equal(t, models.NotAvailable, f.Price)
	assert.Zero(t, f.Rating)
	assert.Zero(t, f.Aroma)
	assert.Zero(t, f.Acidity)
	assert.Empty(t, f.BlindAssessment)
	assert.Empty(t, f.RawContent)

	for field, src := range f.Sources {
		assert.Equal(t, SourceDefault, src, field)
	}
}

func TestExtractPriceFallsThroughLeakedLabel(t *testing.T) {
	e := newTestExtractor(t)
	f := e.Extract(parse(t, leakedPriceHTML))

	assert.Equal(t, "$20.00/12 ounces", f.Price)
	assert.Equal(t, SourceRegex, f.Sources["price"])
	assert.Equal(t, "Roaster B", f.Roaster)
	// a zero "acidity/structure" falls through to "acidity"
	assert.Equal(t, 7, f.Acidity)
	assert.Equal(t, "Chocolaty and rich in cappuccino-scaled milk.", f.WithMilk)
	assert.Equal(t, "Sweet and balanced.", f.BottomLine)
}

func TestExtractPriceFallsThroughNotAvailable(t *testing.T) {
	e := newTestExtractor(t)
	f := e.Extract(parse(t, espressoReviewHTML))

	assert.Equal(t, "€15.50 / 250g", f.Price)
	assert.Equal(t, SourceRegex, f.Sources["price"])
}

func TestExtractIsDeterministic(t *testing.T) {
	e := newTestExtractor(t)

	for _, markup := range []string{modernReviewHTML, legacyReviewHTML, leakedPriceHTML} {
		first := e.Extract(parse(t, markup))
		second := e.Extract(parse(t, markup))
		assert.Equal(t, first, second)
	}
}

func TestNormalizeLabel(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Review Date:", "review_date"},
		{"Est. Price:", "est_price"},
		{"Acidity/Structure:", "acidity/structure"},
		{"  Coffee  Origin : ", "coffee_origin"},
		{"ROASTER", "roaster"},
		{":", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeLabel(tt.in), tt.in)
	}
}

func TestParseRating(t *testing.T) {
	assert.Equal(t, 94, parseRating("94"))
	assert.Equal(t, 92, parseRating("Rating: 92 points"))
	assert.Equal(t, 0, parseRating("N/A"))
	assert.Equal(t, 0, parseRating("7"))
}
