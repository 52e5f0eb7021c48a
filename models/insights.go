package models

import "time"

// RoasterAggregate is one row of the roasters table.
type RoasterAggregate struct {
	Name          string
	Location      *string
	ReviewCount   int
	AvgRating     float64
	TopScore      int
	AvgPricePerOz *float64
}

// CountryAggregate is one row of the countries table.
type CountryAggregate struct {
	Name          string
	ReviewCount   int
	AvgRating     float64
	AvgPricePerOz *float64
	TopScore      int
	DominantRoast *string
}

// InsightEntry is one row of the insights cache: a view key and its JSON payload.
type InsightEntry struct {
	Key  string
	Data []byte
}

// Insight view keys.
const (
	ViewTotalReviews       = "total_reviews"
	ViewRatingDistribution = "rating_distribution"
	ViewYearlyTrends       = "yearly_trends"
	ViewTopRoasters        = "top_roasters"
	ViewFlavorProfiles     = "flavor_profiles"
	ViewRoastComparison    = "roast_comparison"
	ViewCountryStats       = "country_stats"
	ViewPriceTiers         = "price_tiers"
	ViewHighlights         = "highlights"
	ViewDashboardStats     = "dashboard_stats"
	ViewRecentReviews      = "recent_reviews"
	ViewFilterOptions      = "filter_options"
)

// AggregateResult is everything one aggregation run produces.
type AggregateResult struct {
	Roasters  []RoasterAggregate
	Countries []CountryAggregate
	Views     *InsightViews
}

// InsightViews holds the typed payload of every cached view.
type InsightViews struct {
	TotalReviews       int
	RatingDistribution []RatingBucket
	YearlyTrends       []YearTrend
	TopRoasters        []TopRoaster
	FlavorProfiles     []FlavorProfile
	RoastComparison    []RoastStats
	CountryStats       []CountryStat
	PriceTiers         []PriceTier
	Highlights         Highlights
	DashboardStats     DashboardStats
	RecentReviews      []ReviewSummary
	FilterOptions      FilterOptions
}

type RatingBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
	Min   int    `json:"min"`
	Max   int    `json:"max"`
}

type YearTrend struct {
	Year      int      `json:"year"`
	AvgRating float64  `json:"avgRating"`
	Count     int      `json:"count"`
	AvgPrice  *float64 `json:"avgPrice"`
}

type TopRoaster struct {
	Roaster   string  `json:"roaster"`
	AvgRating float64 `json:"avgRating"`
	Count     int     `json:"count"`
	TopScore  int     `json:"topScore"`
}

type FlavorProfile struct {
	Label      string  `json:"label"`
	Aroma      float64 `json:"aroma"`
	Acidity    float64 `json:"acidity"`
	Body       float64 `json:"body"`
	Flavor     float64 `json:"flavor"`
	Aftertaste float64 `json:"aftertaste"`
}

type RoastStats struct {
	Roast         string   `json:"roast"`
	Count         int      `json:"count"`
	AvgRating     float64  `json:"avgRating"`
	AvgPrice      *float64 `json:"avgPrice"`
	AvgAroma      float64  `json:"avgAroma"`
	AvgAcidity    float64  `json:"avgAcidity"`
	AvgBody       float64  `json:"avgBody"`
	AvgFlavor     float64  `json:"avgFlavor"`
	AvgAftertaste float64  `json:"avgAftertaste"`
}

type CountryStat struct {
	Country   string   `json:"country"`
	Count     int      `json:"count"`
	AvgRating float64  `json:"avgRating"`
	AvgPrice  *float64 `json:"avgPrice"`
	TopRoast  string   `json:"topRoast"`
	TopScore  int      `json:"topScore"`
}

type PriceTier struct {
	Tier      string  `json:"tier"`
	Range     string  `json:"range"`
	Count     int     `json:"count"`
	AvgRating float64 `json:"avgRating"`
	MinRating int     `json:"minRating"`
	MaxRating int     `json:"maxRating"`
}

type Highlights struct {
	HighestRatedBean        *HighlightBean    `json:"highestRatedBean"`
	MostReviewedCountry     *HighlightCountry `json:"mostReviewedCountry"`
	MostExpensiveAvgCountry *HighlightPrice   `json:"mostExpensiveAvgCountry"`
	CheapestHighQuality     *HighlightBargain `json:"cheapestHighQuality"`
}

type HighlightBean struct {
	Title   string `json:"title"`
	Rating  int    `json:"rating"`
	Roaster string `json:"roaster"`
}

type HighlightCountry struct {
	Country string `json:"country"`
	Count   int    `json:"count"`
}

type HighlightPrice struct {
	Country  string  `json:"country"`
	AvgPrice float64 `json:"avgPrice"`
}

type HighlightBargain struct {
	Title  string `json:"title"`
	Rating int    `json:"rating"`
	Price  string `json:"price"`
}

type DashboardStats struct {
	TotalReviews    int            `json:"total_reviews"`
	RecentCount30d  int            `json:"recent_count_30d"`
	RecentAvgRating float64        `json:"recent_avg_rating"`
	RecentTopOrigin string         `json:"recent_top_origin"`
	RecentTopRated  *ReviewSummary `json:"recent_top_rated"`
	LastUpdated     *time.Time     `json:"last_updated"`
}

// ReviewSummary is the compact review shape embedded in cached views.
type ReviewSummary struct {
	ID              int64     `json:"id"`
	URL             string    `json:"url"`
	Slug            string    `json:"slug"`
	Title           string    `json:"title"`
	Roaster         string    `json:"roaster"`
	RoasterLocation string    `json:"roaster_location"`
	Rating          int       `json:"rating"`
	Price           string    `json:"price"`
	PricePerOzUSD   *float64  `json:"price_per_oz_usd"`
	Country         *string   `json:"country"`
	ReviewYear      *int      `json:"review_year"`
	RoastCategory   *string   `json:"roast_category"`
	RoastLevel      string    `json:"roast_level"`
	Origin          string    `json:"origin"`
	Aroma           int       `json:"aroma"`
	Acidity         int       `json:"acidity"`
	Body            int       `json:"body"`
	Flavor          int       `json:"flavor"`
	Aftertaste      int       `json:"aftertaste"`
	CreatedAt       time.Time `json:"created_at"`
}

type FilterOptions struct {
	Countries []string `json:"countries"`
	Years     []int    `json:"years"`
}

// Summary converts a review into its cached summary shape.
func (r *Review) Summary() ReviewSummary {
	return ReviewSummary{
		ID:              r.ID,
		URL:             r.URL,
		Slug:            r.Slug,
		Title:           r.Title,
		Roaster:         r.Roaster,
		RoasterLocation: r.RoasterLocation,
		Rating:          r.Rating,
		Price:           r.Price,
		PricePerOzUSD:   r.PricePerOzUSD,
		Country:         r.Country,
		ReviewYear:      r.ReviewYear,
		RoastCategory:   r.RoastCategory,
		RoastLevel:      r.RoastLevel,
		Origin:          r.Origin,
		Aroma:           r.Aroma,
		Acidity:         r.Acidity,
		Body:            r.Body,
		Flavor:          r.Flavor,
		Aftertaste:      r.Aftertaste,
		CreatedAt:       r.CreatedAt,
	}
}
