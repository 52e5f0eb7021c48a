package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"

	"brew-intelligence/config"
	"brew-intelligence/models"
	"brew-intelligence/utils"
)

const (
	minCountryReviews      = 3
	minTopRoasterReviews   = 5
	topRoasterLimit        = 15
	roasterNameWidth       = 30
	minPricedCountry       = 10
	highQualityRating      = 90
	recentWindow           = 30 * 24 * time.Hour
	recentReviewLimit      = 12
	overallFlavorLabel     = "Overall"
	noValue                = models.NotAvailable
	truncationMarker       = "…"
	maxParallelViewWorkers = 4
)

var ratingBuckets = []models.RatingBucket{
	{Range: "80-82", Min: 80, Max: 82},
	{Range: "83-85", Min: 83, Max: 85},
	{Range: "86-88", Min: 86, Max: 88},
	{Range: "89-91", Min: 89, Max: 91},
	{Range: "92-94", Min: 92, Max: 94},
	{Range: "95-97", Min: 95, Max: 97},
	{Range: "98+", Min: 98, Max: 100},
}

// priceTiers are half-open (min, max] bands in USD per ounce; a zero max is unbounded.
var priceTiers = []struct {
	tier     string
	label    string
	min, max float64
}{
	{"Budget", "<$1.50/oz", 0, 1.5},
	{"Mid-Range", "$1.50-$3/oz", 1.5, 3},
	{"Premium", "$3-$5/oz", 3, 5},
	{"Luxury", "$5+/oz", 5, 0},
}

// InsightService computes the roaster and country rollups and the cached
// insight views from a full corpus snapshot. It holds no state between runs.
type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Aggregate computes every rollup and view over reviews. now anchors the
// trailing 30-day window of the dashboard view. The input is not modified.
func (s *InsightService) Aggregate(reviews []*models.Review, now time.Time) *models.AggregateResult {
	v := &models.InsightViews{TotalReviews: len(reviews)}
	result := &models.AggregateResult{Views: v}

	// Each task writes a distinct field, so no locking is needed.
	p := pool.New().WithMaxGoroutines(maxParallelViewWorkers)
	p.Go(func() { result.Roasters = Roasters(reviews) })
	p.Go(func() { result.Countries = Countries(reviews) })
	p.Go(func() { v.RatingDistribution = RatingDistribution(reviews) })
	p.Go(func() { v.YearlyTrends = YearlyTrends(reviews) })
	p.Go(func() { v.TopRoasters = TopRoasters(reviews) })
	p.Go(func() { v.FlavorProfiles = FlavorProfiles(reviews) })
	p.Go(func() { v.RoastComparison = RoastComparison(reviews) })
	p.Go(func() { v.CountryStats = CountryStats(reviews) })
	p.Go(func() { v.PriceTiers = PriceTiers(reviews) })
	p.Go(func() { v.Highlights = ComputeHighlights(reviews) })
	p.Go(func() { v.DashboardStats = Dashboard(reviews, now) })
	p.Go(func() { v.RecentReviews = RecentReviews(reviews) })
	p.Go(func() { v.FilterOptions = Filters(reviews) })
	p.Wait()

	s.logger.Info("[aggregate] %d reviews -> %d roasters, %d countries", len(reviews),
		len(result.Roasters), len(result.Countries))
	return result
}

// Entries serializes the views into cache rows, one per view key.
func (s *InsightService) Entries(v *models.InsightViews) ([]models.InsightEntry, error) {
	payloads := []struct {
		key   string
		value any
	}{
		{models.ViewTotalReviews, v.TotalReviews},
		{models.ViewRatingDistribution, v.RatingDistribution},
		{models.ViewYearlyTrends, v.YearlyTrends},
		{models.ViewTopRoasters, v.TopRoasters},
		{models.ViewFlavorProfiles, v.FlavorProfiles},
		{models.ViewRoastComparison, v.RoastComparison},
		{models.ViewCountryStats, v.CountryStats},
		{models.ViewPriceTiers, v.PriceTiers},
		{models.ViewHighlights, v.Highlights},
		{models.ViewDashboardStats, v.DashboardStats},
		{models.ViewRecentReviews, v.RecentReviews},
		{models.ViewFilterOptions, v.FilterOptions},
	}

	entries := make([]models.InsightEntry, 0, len(payloads))
	for _, p := range payloads {
		data, err := json.Marshal(p.value)
		if err != nil {
			return nil, fmt.Errorf("encode view %s: %w", p.key, err)
		}
		entries = append(entries, models.InsightEntry{Key: p.key, Data: data})
	}
	return entries, nil
}

// ratingGroup accumulates ratings and positive prices for one grouping key.
type ratingGroup struct {
	ratings  []int
	prices   []float64
	roasts   []string
	topScore int
	location *string
}

func (g *ratingGroup) add(r *models.Review) {
	g.ratings = append(g.ratings, r.Rating)
	if r.Rating > g.topScore {
		g.topScore = r.Rating
	}
	if p, ok := r.PositivePricePerOz(); ok {
		g.prices = append(g.prices, p)
	}
	if roast := r.Roast(); roast != "" {
		g.roasts = append(g.roasts, roast)
	}
}

func (g *ratingGroup) avgRating() float64 { return round1(meanInts(g.ratings)) }

func (g *ratingGroup) avgPrice() *float64 {
	if len(g.prices) == 0 {
		return nil
	}
	v := round2(meanFloats(g.prices))
	return &v
}

// dominantRoast returns the most frequent roast; the first one seen wins ties.
func (g *ratingGroup) dominantRoast() *string {
	counts := make(map[string]int)
	var best string
	for _, roast := range g.roasts {
		counts[roast]++
	}
	for _, roast := range g.roasts {
		if best == "" || counts[roast] > counts[best] {
			best = roast
		}
	}
	if best == "" {
		return nil
	}
	return &best
}

// groupBy buckets rated reviews by key, keeping first-seen key order.
// Reviews with an empty key or no rating are skipped.
func groupBy(reviews []*models.Review, key func(*models.Review) string) ([]string, map[string]*ratingGroup) {
	var order []string
	groups := make(map[string]*ratingGroup)
	for _, r := range reviews {
		k := key(r)
		if k == "" || r.Rating == 0 {
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &ratingGroup{}
			groups[k] = g
			order = append(order, k)
		}
		g.add(r)
	}
	return order, groups
}

func roasterName(r *models.Review) string { return r.Roaster }

func countryName(r *models.Review) string { return r.CountryName() }

// Roasters rolls up every roaster with at least one rated review.
func Roasters(reviews []*models.Review) []models.RoasterAggregate {
	order, groups := groupBy(reviews, roasterName)

	// location is the last non-empty value seen for the roaster
	for _, r := range reviews {
		g, ok := groups[r.Roaster]
		if !ok || r.Rating == 0 {
			continue
		}
		if r.RoasterLocation != "" && r.RoasterLocation != models.Unknown {
			loc := r.RoasterLocation
			g.location = &loc
		}
	}

	rows := make([]models.RoasterAggregate, 0, len(order))
	for _, name := range order {
		g := groups[name]
		rows = append(rows, models.RoasterAggregate{
			Name:          name,
			Location:      g.location,
			ReviewCount:   len(g.ratings),
			AvgRating:     g.avgRating(),
			TopScore:      g.topScore,
			AvgPricePerOz: g.avgPrice(),
		})
	}
	return rows
}

// Countries rolls up every country with at least three rated reviews.
func Countries(reviews []*models.Review) []models.CountryAggregate {
	order, groups := groupBy(reviews, countryName)

	var rows []models.CountryAggregate
	for _, name := range order {
		g := groups[name]
		if len(g.ratings) < minCountryReviews {
			continue
		}
		rows = append(rows, models.CountryAggregate{
			Name:          name,
			ReviewCount:   len(g.ratings),
			AvgRating:     g.avgRating(),
			AvgPricePerOz: g.avgPrice(),
			TopScore:      g.topScore,
			DominantRoast: g.dominantRoast(),
		})
	}
	return rows
}

// RatingDistribution counts rated reviews into the fixed buckets. Ratings
// outside [80, 100] are clamped into the nearest edge bucket so the bucket
// total always equals the number of rated reviews.
func RatingDistribution(reviews []*models.Review) []models.RatingBucket {
	buckets := make([]models.RatingBucket, len(ratingBuckets))
	copy(buckets, ratingBuckets)

	for _, r := range reviews {
		if r.Rating == 0 {
			continue
		}
		rating := min(max(r.Rating, buckets[0].Min), buckets[len(buckets)-1].Max)
		for i := range buckets {
			if rating >= buckets[i].Min && rating <= buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}
	return buckets
}

// YearlyTrends groups rated reviews by review year, ascending.
func YearlyTrends(reviews []*models.Review) []models.YearTrend {
	groups := make(map[int]*ratingGroup)
	for _, r := range reviews {
		year := r.Year()
		if year == 0 || r.Rating == 0 {
			continue
		}
		g, ok := groups[year]
		if !ok {
			g = &ratingGroup{}
			groups[year] = g
		}
		g.add(r)
	}

	trends := make([]models.YearTrend, 0, len(groups))
	for year, g := range groups {
		trends = append(trends, models.YearTrend{
			Year:      year,
			AvgRating: g.avgRating(),
			Count:     len(g.ratings),
			AvgPrice:  g.avgPrice(),
		})
	}
	sort.Slice(trends, func(i, j int) bool { return trends[i].Year < trends[j].Year })
	return trends
}

// TopRoasters lists roasters with at least five rated reviews by average
// rating, best first. Equal averages keep first-seen order.
func TopRoasters(reviews []*models.Review) []models.TopRoaster {
	order, groups := groupBy(reviews, roasterName)

	top := []models.TopRoaster{}
	for _, name := range order {
		g := groups[name]
		if len(g.ratings) < minTopRoasterReviews {
			continue
		}
		top = append(top, models.TopRoaster{
			Roaster:   truncateName(name),
			AvgRating: g.avgRating(),
			Count:     len(g.ratings),
			TopScore:  g.topScore,
		})
	}
	sort.SliceStable(top, func(i, j int) bool { return top[i].AvgRating > top[j].AvgRating })
	if len(top) > topRoasterLimit {
		top = top[:topRoasterLimit]
	}
	return top
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= roasterNameWidth {
		return name
	}
	return string(runes[:roasterNameWidth]) + truncationMarker
}

// subscoreMeans averages the five subscores over reviews that have all of them.
type subscoreMeans struct {
	n                                        int
	aroma, acidity, body, flavor, aftertaste float64
}

func meanSubscores(reviews []*models.Review) subscoreMeans {
	var m subscoreMeans
	var sums [5]int
	for _, r := range reviews {
		if !r.HasAllSubscores() {
			continue
		}
		m.n++
		sums[0] += r.Aroma
		sums[1] += r.Acidity
		sums[2] += r.Body
		sums[3] += r.Flavor
		sums[4] += r.Aftertaste
	}
	if m.n == 0 {
		return m
	}
	n := float64(m.n)
	m.aroma = round1(float64(sums[0]) / n)
	m.acidity = round1(float64(sums[1]) / n)
	m.body = round1(float64(sums[2]) / n)
	m.flavor = round1(float64(sums[3]) / n)
	m.aftertaste = round1(float64(sums[4]) / n)
	return m
}

func byRoast(reviews []*models.Review, roast string) []*models.Review {
	var out []*models.Review
	for _, r := range reviews {
		if r.Roast() == roast {
			out = append(out, r)
		}
	}
	return out
}

// FlavorProfiles returns the Overall profile followed by one per roast category.
func FlavorProfiles(reviews []*models.Review) []models.FlavorProfile {
	profile := func(label string, subset []*models.Review) models.FlavorProfile {
		m := meanSubscores(subset)
		return models.FlavorProfile{
			Label:      label,
			Aroma:      m.aroma,
			Acidity:    m.acidity,
			Body:       m.body,
			Flavor:     m.flavor,
			Aftertaste: m.aftertaste,
		}
	}

	profiles := []models.FlavorProfile{profile(overallFlavorLabel, reviews)}
	for _, roast := range config.RoastCategories {
		profiles = append(profiles, profile(roast, byRoast(reviews, roast)))
	}
	return profiles
}

// RoastComparison summarises each roast category.
func RoastComparison(reviews []*models.Review) []models.RoastStats {
	stats := make([]models.RoastStats, 0, len(config.RoastCategories))
	for _, roast := range config.RoastCategories {
		subset := byRoast(reviews, roast)
		g := &ratingGroup{}
		for _, r := range subset {
			if r.Rating != 0 {
				g.ratings = append(g.ratings, r.Rating)
			}
			if p, ok := r.PositivePricePerOz(); ok {
				g.prices = append(g.prices, p)
			}
		}
		m := meanSubscores(subset)
		stats = append(stats, models.RoastStats{
			Roast:         roast,
			Count:         len(subset),
			AvgRating:     g.avgRating(),
			AvgPrice:      g.avgPrice(),
			AvgAroma:      m.aroma,
			AvgAcidity:    m.acidity,
			AvgBody:       m.body,
			AvgFlavor:     m.flavor,
			AvgAftertaste: m.aftertaste,
		})
	}
	return stats
}

// CountryStats is the country rollup in view form, most reviewed first.
func CountryStats(reviews []*models.Review) []models.CountryStat {
	stats := []models.CountryStat{}
	for _, c := range Countries(reviews) {
		topRoast := noValue
		if c.DominantRoast != nil {
			topRoast = *c.DominantRoast
		}
		stats = append(stats, models.CountryStat{
			Country:   c.Name,
			Count:     c.ReviewCount,
			AvgRating: c.AvgRating,
			AvgPrice:  c.AvgPricePerOz,
			TopRoast:  topRoast,
			TopScore:  c.TopScore,
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	return stats
}

// PriceTiers counts rated, priced reviews into the fixed price bands.
func PriceTiers(reviews []*models.Review) []models.PriceTier {
	tiers := make([]models.PriceTier, 0, len(priceTiers))
	for _, t := range priceTiers {
		var ratings []int
		for _, r := range reviews {
			p, ok := r.PositivePricePerOz()
			if !ok || r.Rating == 0 || p <= t.min || (t.max > 0 && p > t.max) {
				continue
			}
			ratings = append(ratings, r.Rating)
		}
		tier := models.PriceTier{
			Tier:      t.tier,
			Range:     t.label,
			Count:     len(ratings),
			AvgRating: round1(meanInts(ratings)),
		}
		if len(ratings) > 0 {
			tier.MinRating = minInt(ratings)
			tier.MaxRating = maxInt(ratings)
		}
		tiers = append(tiers, tier)
	}
	return tiers
}

// ComputeHighlights picks the standout review and countries. Ties go to the
// first one encountered.
func ComputeHighlights(reviews []*models.Review) models.Highlights {
	var h models.Highlights

	var highest *models.Review
	for _, r := range reviews {
		if r.Rating != 0 && (highest == nil || r.Rating > highest.Rating) {
			highest = r
		}
	}
	if highest != nil {
		h.HighestRatedBean = &models.HighlightBean{Title: highest.Title, Rating: highest.Rating, Roaster: highest.Roaster}
	}

	var countryOrder []string
	counts := make(map[string]int)
	prices := make(map[string][]float64)
	for _, r := range reviews {
		c := r.CountryName()
		if c == "" {
			continue
		}
		if counts[c] == 0 {
			countryOrder = append(countryOrder, c)
		}
		counts[c]++
		if p, ok := r.PositivePricePerOz(); ok {
			prices[c] = append(prices[c], p)
		}
	}
	for _, c := range countryOrder {
		if h.MostReviewedCountry == nil || counts[c] > h.MostReviewedCountry.Count {
			h.MostReviewedCountry = &models.HighlightCountry{Country: c, Count: counts[c]}
		}
		if len(prices[c]) < minPricedCountry {
			continue
		}
		avg := round2(meanFloats(prices[c]))
		if h.MostExpensiveAvgCountry == nil || avg > h.MostExpensiveAvgCountry.AvgPrice {
			h.MostExpensiveAvgCountry = &models.HighlightPrice{Country: c, AvgPrice: avg}
		}
	}

	var cheapest *models.Review
	var cheapestPrice float64
	for _, r := range reviews {
		p, ok := r.PositivePricePerOz()
		if !ok || r.Rating < highQualityRating {
			continue
		}
		if cheapest == nil || p < cheapestPrice {
			cheapest, cheapestPrice = r, p
		}
	}
	if cheapest != nil {
		h.CheapestHighQuality = &models.HighlightBargain{
			Title:  cheapest.Title,
			Rating: cheapest.Rating,
			Price:  fmt.Sprintf("$%.2f/oz", cheapestPrice),
		}
	}
	return h
}

// Dashboard summarises the reviews created in the 30 days before now.
func Dashboard(reviews []*models.Review, now time.Time) models.DashboardStats {
	d := models.DashboardStats{TotalReviews: len(reviews), RecentTopOrigin: noValue}
	cutoff := now.Add(-recentWindow)

	var ratings []int
	var originOrder []string
	origins := make(map[string]int)
	var topRated *models.Review
	for _, r := range reviews {
		if r.CreatedAt.IsZero() {
			continue
		}
		if d.LastUpdated == nil || r.CreatedAt.After(*d.LastUpdated) {
			ts := r.CreatedAt
			d.LastUpdated = &ts
		}
		if !r.CreatedAt.After(cutoff) {
			continue
		}

		d.RecentCount30d++
		if r.Rating != 0 {
			ratings = append(ratings, r.Rating)
			if topRated == nil || r.Rating > topRated.Rating {
				topRated = r
			}
		}
		if c := r.CountryName(); c != "" {
			if origins[c] == 0 {
				originOrder = append(originOrder, c)
			}
			origins[c]++
		}
	}

	d.RecentAvgRating = round1(meanInts(ratings))
	best := 0
	for _, c := range originOrder {
		if origins[c] > best {
			best, d.RecentTopOrigin = origins[c], c
		}
	}
	if topRated != nil {
		summary := topRated.Summary()
		d.RecentTopRated = &summary
	}
	return d
}

// RecentReviews returns the reviews with the highest ids, newest first.
func RecentReviews(reviews []*models.Review) []models.ReviewSummary {
	sorted := make([]*models.Review, len(reviews))
	copy(sorted, reviews)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })
	if len(sorted) > recentReviewLimit {
		sorted = sorted[:recentReviewLimit]
	}

	out := make([]models.ReviewSummary, 0, len(sorted))
	for _, r := range sorted {
		out = append(out, r.Summary())
	}
	return out
}

// Filters lists the distinct countries ascending and review years descending.
func Filters(reviews []*models.Review) models.FilterOptions {
	countries := make(map[string]struct{})
	years := make(map[int]struct{})
	for _, r := range reviews {
		if c := r.CountryName(); c != "" {
			countries[c] = struct{}{}
		}
		if y := r.Year(); y != 0 {
			years[y] = struct{}{}
		}
	}

	opts := models.FilterOptions{Countries: make([]string, 0, len(countries)), Years: make([]int, 0, len(years))}
	for c := range countries {
		opts.Countries = append(opts.Countries, c)
	}
	for y := range years {
		opts.Years = append(opts.Years, y)
	}
	sort.Strings(opts.Countries)
	sort.Sort(sort.Reverse(sort.IntSlice(opts.Years)))
	return opts
}

func meanInts(xs []int) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0
	for _, x := range xs {
		sum += x
	}
	return float64(sum) / float64(len(xs))
}

func meanFloats(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func minInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		m = min(m, x)
	}
	return m
}

func maxInt(xs []int) int {
	m := xs[0]
	for _, x := range xs[1:] {
		m = max(m, x)
	}
	return m
}
