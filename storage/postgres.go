package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS reviews (
		id               BIGSERIAL PRIMARY KEY,
		url              TEXT UNIQUE NOT NULL,
		slug             TEXT NOT NULL DEFAULT '',
		title            TEXT NOT NULL DEFAULT '',
		roaster          TEXT NOT NULL DEFAULT '',
		roaster_location TEXT NOT NULL DEFAULT '',
		roast_level      TEXT NOT NULL DEFAULT '',
		origin           TEXT NOT NULL DEFAULT '',
		agtron           TEXT NOT NULL DEFAULT '',
		price            TEXT NOT NULL DEFAULT '',
		review_date      TEXT NOT NULL DEFAULT '',
		rating           INTEGER NOT NULL DEFAULT 0,
		aroma            INTEGER NOT NULL DEFAULT 0,
		acidity          INTEGER NOT NULL DEFAULT 0,
		body             INTEGER NOT NULL DEFAULT 0,
		flavor           INTEGER NOT NULL DEFAULT 0,
		aftertaste       INTEGER NOT NULL DEFAULT 0,
		blind_assessment TEXT NOT NULL DEFAULT '',
		notes            TEXT NOT NULL DEFAULT '',
		bottom_line      TEXT NOT NULL DEFAULT '',
		with_milk        TEXT,
		raw_content      TEXT,
		embedding        DOUBLE PRECISION[],
		country          TEXT,
		currency         TEXT,
		price_numeric    DOUBLE PRECISION,
		weight_oz        DOUBLE PRECISION,
		weight_unit      TEXT,
		price_per_oz_usd DOUBLE PRECISION,
		review_year      INTEGER,
		roast_category   TEXT,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_unmigrated ON reviews(id) WHERE price_per_oz_usd IS NULL;
	CREATE INDEX IF NOT EXISTS idx_reviews_country    ON reviews(country);
	CREATE INDEX IF NOT EXISTS idx_reviews_year       ON reviews(review_year);

	CREATE TABLE IF NOT EXISTS roasters (
		name             TEXT PRIMARY KEY,
		location         TEXT,
		review_count     INTEGER NOT NULL DEFAULT 0,
		avg_rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		top_score        INTEGER NOT NULL DEFAULT 0,
		avg_price_per_oz DOUBLE PRECISION,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS countries (
		name             TEXT PRIMARY KEY,
		review_count     INTEGER NOT NULL DEFAULT 0,
		avg_rating       DOUBLE PRECISION NOT NULL DEFAULT 0,
		avg_price_per_oz DOUBLE PRECISION,
		top_score        INTEGER NOT NULL DEFAULT 0,
		dominant_roast   TEXT,
		updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE TABLE IF NOT EXISTS insights_cache (
		key        TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

var postgresDialect = dialect{
	name:        "postgres",
	schema:      postgresSchema,
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
	jsonValue:   func(marker string) string { return "CAST(" + marker + " AS JSONB)" },
	embeddingArg: func(v []float64) (any, error) {
		if v == nil {
			return nil, nil
		}
		return pq.Float64Array(v), nil
	},
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use store.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	return newSQLStore(db, postgresDialect)
}
