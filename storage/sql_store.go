package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"brew-intelligence/models"
)

// dialect captures the differences between the SQL backends.
type dialect struct {
	name   string
	schema string
	// placeholder returns the bind marker for the 1-based argument n.
	placeholder func(n int) string
	// jsonValue wraps a bind marker so the backend stores it as JSON.
	jsonValue func(marker string) string
	// embeddingArg converts an embedding into a driver value.
	embeddingArg func(v []float64) (any, error)
}

// SQLStore implements ReviewStore, ReviewReader and AggregateStore on top of
// database/sql. The same queries serve Postgres and SQLite.
type SQLStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, d: d}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: migrate: %w", d.name, err)
	}
	return s, nil
}

func (s *SQLStore) migrate() error {
	_, err := s.db.Exec(s.d.schema)
	return err
}

// Close releases the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Driver returns the backend name ("postgres" or "sqlite").
func (s *SQLStore) Driver() string {
	return s.d.name
}

// placeholders returns count consecutive bind markers starting at start.
func (s *SQLStore) placeholders(start, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = s.d.placeholder(start + i)
	}
	return out
}

var reviewColumns = []string{
	"url", "slug", "title", "roaster", "roaster_location", "roast_level", "origin",
	"agtron", "price", "review_date", "rating", "aroma", "acidity", "body", "flavor",
	"aftertaste", "blind_assessment", "notes", "bottom_line", "with_milk", "raw_content",
	"embedding", "country", "currency", "price_numeric", "weight_oz", "weight_unit",
	"price_per_oz_usd", "review_year", "roast_category", "created_at",
}

// monotonicColumns keep their stored value when the incoming one is NULL.
var monotonicColumns = map[string]bool{
	"price_per_oz_usd": true,
	"embedding":        true,
}

// UpsertReview inserts or updates the review keyed by URL. The stored
// price_per_oz_usd and embedding never revert to NULL.
func (s *SQLStore) UpsertReview(ctx context.Context, r *models.Review) error {
	embedding, err := s.d.embeddingArg(r.Embedding)
	if err != nil {
		return fmt.Errorf("%s: encode embedding: %w", s.d.name, err)
	}
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	args := []any{
		r.URL, r.Slug, r.Title, r.Roaster, r.RoasterLocation, r.RoastLevel, r.Origin,
		r.Agtron, r.Price, r.ReviewDate, r.Rating, r.Aroma, r.Acidity, r.Body, r.Flavor,
		r.Aftertaste, r.BlindAssessment, r.Notes, r.BottomLine, r.WithMilk, r.RawContent,
		embedding, r.Country, r.Currency, r.PriceNumeric, r.WeightOz, r.WeightUnit,
		r.PricePerOzUSD, r.ReviewYear, r.RoastCategory, createdAt,
	}

	updates := make([]string, 0, len(reviewColumns))
	for _, c := range reviewColumns {
		switch {
		case c == "url" || c == "created_at":
			continue
		case monotonicColumns[c]:
			updates = append(updates, fmt.Sprintf("%s = COALESCE(excluded.%s, reviews.%s)", c, c, c))
		default:
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO reviews (%s)
		VALUES (%s)
		ON CONFLICT (url) DO UPDATE SET %s
	`, strings.Join(reviewColumns, ", "),
		strings.Join(s.placeholders(1, len(reviewColumns)), ", "),
		strings.Join(updates, ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: upsert review %s: %w", s.d.name, r.URL, err)
	}
	return nil
}

// ExistingURLs returns every stored source URL.
func (s *SQLStore) ExistingURLs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM reviews`)
	if err != nil {
		return nil, fmt.Errorf("%s: existing urls: %w", s.d.name, err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("%s: scan url: %w", s.d.name, err)
		}
		urls[u] = struct{}{}
	}
	return urls, rows.Err()
}

const selectReviewColumns = `
	id, url, slug, title, roaster, roaster_location, roast_level, origin, agtron,
	price, review_date, rating, aroma, acidity, body, flavor, aftertaste,
	country, currency, price_numeric, weight_oz, weight_unit, price_per_oz_usd,
	review_year, roast_category, created_at`

// FetchReviews returns one page of the corpus ordered by id.
func (s *SQLStore) FetchReviews(ctx context.Context, offset, limit int) ([]*models.Review, error) {
	query := fmt.Sprintf(`SELECT %s FROM reviews ORDER BY id LIMIT %s OFFSET %s`,
		selectReviewColumns, s.d.placeholder(1), s.d.placeholder(2))
	return s.queryReviews(ctx, query, limit, offset)
}

// FetchUnmigrated returns up to limit unmigrated reviews after afterID.
func (s *SQLStore) FetchUnmigrated(ctx context.Context, afterID int64, limit int) ([]*models.Review, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM reviews
		WHERE price_per_oz_usd IS NULL AND id > %s
		ORDER BY id
		LIMIT %s`, selectReviewColumns, s.d.placeholder(1), s.d.placeholder(2))
	return s.queryReviews(ctx, query, afterID, limit)
}

// CountUnmigrated counts reviews whose price_per_oz_usd is NULL.
func (s *SQLStore) CountUnmigrated(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE price_per_oz_usd IS NULL`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("%s: count unmigrated: %w", s.d.name, err)
	}
	return n, nil
}

// UpdateDerived writes the normalized columns of one review. Fields that
// are nil keep their stored value.
func (s *SQLStore) UpdateDerived(ctx context.Context, id int64, d models.Derived) error {
	cols := []string{
		"country", "currency", "price_numeric", "weight_oz", "weight_unit",
		"price_per_oz_usd", "review_year", "roast_category",
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = COALESCE(%s, %s)", c, s.d.placeholder(i+1), c)
	}
	query := fmt.Sprintf(`UPDATE reviews SET %s WHERE id = %s`,
		strings.Join(sets, ", "), s.d.placeholder(len(cols)+1))

	_, err := s.db.ExecContext(ctx, query,
		d.Country, d.Currency, d.PriceNumeric, d.WeightOz, d.WeightUnit,
		d.PricePerOzUSD, d.ReviewYear, d.RoastCategory, id)
	if err != nil {
		return fmt.Errorf("%s: update review %d: %w", s.d.name, id, err)
	}
	return nil
}

func (s *SQLStore) queryReviews(ctx context.Context, query string, args ...any) ([]*models.Review, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query reviews: %w", s.d.name, err)
	}
	defer rows.Close()

	var reviews []*models.Review
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan review: %w", s.d.name, err)
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func scanReview(rows *sql.Rows) (*models.Review, error) {
	var (
		r                                models.Review
		country, currency, unit, roast   sql.NullString
		priceNumeric, weight, pricePerOz sql.NullFloat64
		year                             sql.NullInt64
		createdAt                        timeValue
	)
	err := rows.Scan(
		&r.ID, &r.URL, &r.Slug, &r.Title, &r.Roaster, &r.RoasterLocation, &r.RoastLevel,
		&r.Origin, &r.Agtron, &r.Price, &r.ReviewDate, &r.Rating, &r.Aroma, &r.Acidity,
		&r.Body, &r.Flavor, &r.Aftertaste,
		&country, &currency, &priceNumeric, &weight, &unit, &pricePerOz,
		&year, &roast, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	r.Country = stringPtr(country)
	r.Currency = stringPtr(currency)
	r.PriceNumeric = floatPtr(priceNumeric)
	r.WeightOz = floatPtr(weight)
	r.WeightUnit = stringPtr(unit)
	r.PricePerOzUSD = floatPtr(pricePerOz)
	r.ReviewYear = intPtr(year)
	r.RoastCategory = stringPtr(roast)
	r.CreatedAt = createdAt.t
	return &r, nil
}

// UpsertRoasters writes rows as a single multi-VALUES statement.
func (s *SQLStore) UpsertRoasters(ctx context.Context, rows []models.RoasterAggregate) error {
	if len(rows) == 0 {
		return nil
	}
	const width = 6
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*width)
	for i, r := range rows {
		values = append(values, "("+strings.Join(s.placeholders(i*width+1, width), ",")+")")
		args = append(args, r.Name, r.Location, r.ReviewCount, r.AvgRating, r.TopScore, r.AvgPricePerOz)
	}

	query := fmt.Sprintf(`
		INSERT INTO roasters (name, location, review_count, avg_rating, top_score, avg_price_per_oz)
		VALUES %s
		ON CONFLICT (name) DO UPDATE SET
			location = excluded.location,
			review_count = excluded.review_count,
			avg_rating = excluded.avg_rating,
			top_score = excluded.top_score,
			avg_price_per_oz = excluded.avg_price_per_oz,
			updated_at = CURRENT_TIMESTAMP
	`, strings.Join(values, ","))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: upsert roasters: %w", s.d.name, err)
	}
	return nil
}

// UpsertCountries writes rows as a single multi-VALUES statement.
func (s *SQLStore) UpsertCountries(ctx context.Context, rows []models.CountryAggregate) error {
	if len(rows) == 0 {
		return nil
	}
	const width = 6
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*width)
	for i, c := range rows {
		values = append(values, "("+strings.Join(s.placeholders(i*width+1, width), ",")+")")
		args = append(args, c.Name, c.ReviewCount, c.AvgRating, c.AvgPricePerOz, c.TopScore, c.DominantRoast)
	}

	query := fmt.Sprintf(`
		INSERT INTO countries (name, review_count, avg_rating, avg_price_per_oz, top_score, dominant_roast)
		VALUES %s
		ON CONFLICT (name) DO UPDATE SET
			review_count = excluded.review_count,
			avg_rating = excluded.avg_rating,
			avg_price_per_oz = excluded.avg_price_per_oz,
			top_score = excluded.top_score,
			dominant_roast = excluded.dominant_roast,
			updated_at = CURRENT_TIMESTAMP
	`, strings.Join(values, ","))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: upsert countries: %w", s.d.name, err)
	}
	return nil
}

// UpsertInsights replaces the cached views inside one transaction, so an
// interrupted run leaves the previous cache intact.
func (s *SQLStore) UpsertInsights(ctx context.Context, entries []models.InsightEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin insights tx: %w", s.d.name, err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`
		INSERT INTO insights_cache (key, data, updated_at)
		VALUES (%s, %s, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`, s.d.placeholder(1), s.d.jsonValue(s.d.placeholder(2)))

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare insights: %w", s.d.name, err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Key, string(e.Data)); err != nil {
			return fmt.Errorf("%s: upsert insight %s: %w", s.d.name, e.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit insights: %w", s.d.name, err)
	}
	return nil
}

// Insight returns the cached JSON for key, or sql.ErrNoRows.
func (s *SQLStore) Insight(ctx context.Context, key string) ([]byte, error) {
	var data string
	query := fmt.Sprintf(`SELECT data FROM insights_cache WHERE key = %s`, s.d.placeholder(1))
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&data); err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// timeValue scans timestamps stored natively or as text.
type timeValue struct {
	t time.Time
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func (v *timeValue) Scan(src any) error {
	switch x := src.(type) {
	case nil:
		v.t = time.Time{}
		return nil
	case time.Time:
		v.t = x
		return nil
	case []byte:
		return v.parse(string(x))
	case string:
		return v.parse(x)
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (v *timeValue) parse(s string) error {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			v.t = t
			return nil
		}
	}
	return fmt.Errorf("unparseable timestamp %q", s)
}

func stringPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	return &v.Float64
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
