package coffeereview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"brew-intelligence/config"
	"brew-intelligence/models"
	"brew-intelligence/utils"
)

// Extraction sources recorded in ExtractedFields.Sources.
const (
	SourceTable    = "table"
	SourceSelector = "selector"
	SourceRegex    = "regex"
	SourceDefault  = "default"
)

// Page selectors.
const (
	metaTableSelector = ".review-template-table"
	ratingSelector    = ".review-template-rating"
	titleSelector     = "h1"
	contentSelector   = ".entry-content"
)

var (
	// legacyHeaderRegexp matches the older layout: a two-digit rating on its
	// own line followed by the roaster line and the title line.
	legacyHeaderRegexp = regexp.MustCompile(`(?:^|\D)(\d{2})[ \t]*\n\s*(\S[^\n]*)\n\s*(\S[^\n]*)`)
	// priceTextRegexp finds a currency-anchored price with an optional "/ weight" tail
	priceTextRegexp = regexp.MustCompile(`(?:NT\$|[$€£¥])[ \t]?\d[\d,]*(?:\.\d{1,2})?(?:[ \t]*/[ \t]*\d[\d.,]*[ \t-]*[A-Za-z]+\.?)?`)
	ratingRegexp    = regexp.MustCompile(`\b(\d{2})\b`)
	scoreRegexp     = regexp.MustCompile(`(\d+)`)
	labelSepRegexp  = regexp.MustCompile(`[^a-z0-9/]+`)
)

// strategy is one source for a field value. It reports false when the
// source has nothing usable.
type strategy struct {
	source string
	find   func(p *page) (string, bool)
}

// page carries everything extracted once per document and shared by the
// strategies.
type page struct {
	doc  *Document
	meta map[string]string

	legacyOnce bool
	legacy     []string
}

func (p *page) legacyHeader() []string {
	if !p.legacyOnce {
		p.legacyOnce = true
		p.legacy = legacyHeaderRegexp.FindStringSubmatch(p.doc.Text())
	}
	return p.legacy
}

// Extractor recovers ExtractedFields from review pages. Each field is
// resolved through an ordered chain of strategies: metadata table, then
// CSS selector, then full-text regex. The first usable value wins.
type Extractor struct {
	valueLabels    *utils.LabelStripper
	sectionLabels  *utils.LabelStripper
	sectionMarkers []string
	notAvailable   map[string]struct{}

	textFields  []textField
	scoreFields []scoreField
}

type textField struct {
	name     string
	chain    []strategy
	fallback string
	set      func(f *models.ExtractedFields, v string)
}

type scoreField struct {
	name  string
	chain []strategy
	parse func(string) int
	set   func(f *models.ExtractedFields, v int)
}

// NewExtractor builds an Extractor from the cleanup rules.
func NewExtractor(rules *config.Rules) (*Extractor, error) {
	valueLabels, err := utils.NewLabelStripper(config.Pairs(rules.ValueLabels))
	if err != nil {
		return nil, fmt.Errorf("extractor: value labels: %w", err)
	}
	sectionLabels, err := utils.NewLabelStripper(config.Pairs(rules.SectionLabels))
	if err != nil {
		return nil, fmt.Errorf("extractor: section labels: %w", err)
	}

	na := make(map[string]struct{}, len(rules.NotAvailable))
	for _, s := range rules.NotAvailable {
		na[strings.ToLower(strings.TrimSpace(s))] = struct{}{}
	}

	e := &Extractor{
		valueLabels:    valueLabels,
		sectionLabels:  sectionLabels,
		sectionMarkers: rules.SectionMarkers,
		notAvailable:   na,
	}
	e.textFields = e.buildTextFields()
	e.scoreFields = e.buildScoreFields()
	return e, nil
}

func (e *Extractor) buildTextFields() []textField {
	return []textField{
		{
			name:     "title",
			chain:    []strategy{e.fromSelector(titleSelector), fromLegacy(3)},
			fallback: models.Unknown,
			set:      func(f *models.ExtractedFields, v string) { f.Title = v },
		},
		{
			name:     "roaster",
			chain:    []strategy{e.fromTable("roaster"), e.fromPageTitle(), fromLegacy(2)},
			fallback: models.Unknown,
			set:      func(f *models.ExtractedFields, v string) { f.Roaster = v },
		},
		{
			name:     "roaster_location",
			chain:    []strategy{e.fromTable("roaster_location")},
			fallback: models.Unknown,
			set:      func(f *models.ExtractedFields, v string) { f.RoasterLocation = v },
		},
		{
			name:     "roast_level",
			chain:    []strategy{e.fromTable("roast_level")},
			fallback: models.Unknown,
			set:      func(f *models.ExtractedFields, v string) { f.RoastLevel = v },
		},
		{
			name:     "origin",
			chain:    []strategy{e.fromTable("coffee_origin", "origin")},
			fallback: models.Unknown,
			set:      func(f *models.ExtractedFields, v string) { f.Origin = v },
		},
		{
			name:     "agtron",
			chain:    []strategy{e.fromTable("agtron")},
			fallback: models.NotAvailable,
			set:      func(f *models.ExtractedFields, v string) { f.Agtron = v },
		},
		{
			name:     "price",
			chain:    []strategy{e.priceFromTable(), e.priceFromText()},
			fallback: models.NotAvailable,
			set:      func(f *models.ExtractedFields, v string) { f.Price = v },
		},
		{
			name:     "review_date",
			chain:    []strategy{e.fromTable("review_date")},
			fallback: models.Unknown,
			set:      func(f *models.ExtractedFields, v string) { f.ReviewDate = v },
		},
	}
}

func (e *Extractor) buildScoreFields() []scoreField {
	score := func(name string, labels []string, set func(*models.ExtractedFields, int)) scoreField {
		chain := make([]strategy, len(labels))
		for i, l := range labels {
			chain[i] = e.fromTable(l)
		}
		return scoreField{name: name, chain: chain, parse: parseScore, set: set}
	}

	return []scoreField{
		{
			name:  "rating",
			chain: []strategy{e.fromTable("rating"), e.fromSelector(ratingSelector), fromLegacy(1)},
			parse: parseRating,
			set:   func(f *models.ExtractedFields, v int) { f.Rating = v },
		},
		score("aroma", []string{"aroma"}, func(f *models.ExtractedFields, v int) { f.Aroma = v }),
		score("acidity", []string{"acidity/structure", "acidity"}, func(f *models.ExtractedFields, v int) { f.Acidity = v }),
		score("body", []string{"body"}, func(f *models.ExtractedFields, v int) { f.Body = v }),
		score("flavor", []string{"flavor"}, func(f *models.ExtractedFields, v int) { f.Flavor = v }),
		score("aftertaste", []string{"aftertaste"}, func(f *models.ExtractedFields, v int) { f.Aftertaste = v }),
	}
}

// Extract returns the best-effort fields of doc. It never fails: a field
// whose strategies all miss, or panic, takes its sentinel default.
func (e *Extractor) Extract(doc *Document) *models.ExtractedFields {
	p := &page{doc: doc, meta: readMetaTables(doc)}
	f := &models.ExtractedFields{Sources: make(map[string]string)}

	for _, tf := range e.textFields {
		v, src := resolve(p, tf.chain, func(s string) bool { return s != "" })
		if src == SourceDefault {
			v = tf.fallback
		}
		tf.set(f, v)
		f.Sources[tf.name] = src
	}

	for _, sf := range e.scoreFields {
		raw, src := resolve(p, sf.chain, func(s string) bool { return sf.parse(s) > 0 })
		v := 0
		if src != SourceDefault {
			v = sf.parse(raw)
		}
		sf.set(f, v)
		f.Sources[sf.name] = src
	}

	f.BlindAssessment = e.safeSection(doc, SectionBlindAssessment)
	f.Notes = e.safeSection(doc, SectionNotes)
	f.BottomLine = e.safeSection(doc, SectionBottomLine)
	f.WithMilk = e.safeSection(doc, SectionWithMilk)
	f.RawContent = doc.OuterHTML(contentSelector)

	return f
}

// resolve walks chain and returns the first value accepted by ok together
// with its source, or ("", SourceDefault).
func resolve(p *page, chain []strategy, ok func(string) bool) (value, source string) {
	for _, s := range chain {
		v, found := tryStrategy(p, s)
		if found && ok(v) {
			return v, s.source
		}
	}
	return "", SourceDefault
}

func tryStrategy(p *page, s strategy) (v string, found bool) {
	defer func() {
		if r := recover(); r != nil {
			v, found = "", false
		}
	}()
	return s.find(p)
}

func (e *Extractor) safeSection(doc *Document, pattern string) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()
	return e.ExtractSection(doc, pattern)
}

// fromTable looks labels up in the metadata tables in preference order.
func (e *Extractor) fromTable(labels ...string) strategy {
	return strategy{source: SourceTable, find: func(p *page) (string, bool) {
		for _, l := range labels {
			v, ok := p.meta[l]
			if !ok {
				continue
			}
			if v = e.valueLabels.Strip(v); v != "" {
				return v, true
			}
		}
		return "", false
	}}
}

func (e *Extractor) fromSelector(selector string) strategy {
	return strategy{source: SourceSelector, find: func(p *page) (string, bool) {
		sel := p.doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", false
		}
		v := e.valueLabels.Strip(utils.CollapseSpace(sel.Text()))
		return v, v != ""
	}}
}

// fromPageTitle reads the roaster from a "<coffee> by <roaster> Review" title.
func (e *Extractor) fromPageTitle() strategy {
	return strategy{source: SourceSelector, find: func(p *page) (string, bool) {
		title := utils.CollapseSpace(p.doc.Find("title").First().Text())
		_, after, found := strings.Cut(title, " by ")
		if !found {
			return "", false
		}
		if before, _, cut := strings.Cut(after, " Review"); cut {
			after = before
		}
		after = strings.TrimSpace(after)
		return after, after != ""
	}}
}

func fromLegacy(group int) strategy {
	return strategy{source: SourceRegex, find: func(p *page) (string, bool) {
		m := p.legacyHeader()
		if len(m) <= group {
			return "", false
		}
		v := strings.TrimSpace(m[group])
		return v, v != ""
	}}
}

// priceFromTable rejects placeholder values and values that still carry a
// leaked "Review Date" label so the text fallback gets a chance.
func (e *Extractor) priceFromTable() strategy {
	return strategy{source: SourceTable, find: func(p *page) (string, bool) {
		for _, l := range []string{"price", "est_price"} {
			raw, ok := p.meta[l]
			if !ok {
				continue
			}
			if strings.Contains(strings.ToLower(raw), "review date") {
				return "", false
			}
			v := e.valueLabels.Strip(raw)
			if v == "" || e.isNotAvailable(v) {
				continue
			}
			return v, true
		}
		return "", false
	}}
}

func (e *Extractor) priceFromText() strategy {
	return strategy{source: SourceRegex, find: func(p *page) (string, bool) {
		// leaked labels run to the end of their line, so strip them first
		m := priceTextRegexp.FindString(e.valueLabels.Strip(p.doc.Text()))
		if m == "" {
			return "", false
		}
		v := e.valueLabels.Strip(m)
		return v, v != ""
	}}
}

func (e *Extractor) isNotAvailable(v string) bool {
	_, ok := e.notAvailable[strings.ToLower(strings.TrimSpace(v))]
	return ok
}

// readMetaTables reads every two-cell row of every metadata table into a
// map keyed by normalized label. Later rows win.
func readMetaTables(doc *Document) map[string]string {
	meta := make(map[string]string)
	doc.Find(metaTableSelector).Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if cells.Length() < 2 {
				return
			}
			key := NormalizeLabel(nodeText(cells.Get(0)))
			if key == "" {
				return
			}
			meta[key] = nodeText(cells.Get(1))
		})
	})
	return meta
}

// NormalizeLabel canonicalises a table label: "Est. Price:" → "est_price",
// "Acidity/Structure:" → "acidity/structure".
func NormalizeLabel(label string) string {
	s := strings.ToLower(label)
	s = strings.ReplaceAll(s, ":", "")
	s = labelSepRegexp.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

func parseRating(s string) int {
	m := ratingRegexp.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return v
}

func parseScore(s string) int {
	m := scoreRegexp.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.Atoi(m[1])
	if err != nil || v > 100 {
		return 0
	}
	return v
}
