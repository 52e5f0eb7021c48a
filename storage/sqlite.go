package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
	CREATE TABLE IF NOT EXISTS reviews (
		id               INTEGER PRIMARY KEY AUTOINCREMENT,
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
		embedding        TEXT,
		country          TEXT,
		currency         TEXT,
		price_numeric    REAL,
		weight_oz        REAL,
		weight_unit      TEXT,
		price_per_oz_usd REAL,
		review_year      INTEGER,
		roast_category   TEXT,
		created_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_reviews_unmigrated ON reviews(id) WHERE price_per_oz_usd IS NULL;
	CREATE INDEX IF NOT EXISTS idx_reviews_country    ON reviews(country);
	CREATE INDEX IF NOT EXISTS idx_reviews_year       ON reviews(review_year);

	CREATE TABLE IF NOT EXISTS roasters (
		name             TEXT PRIMARY KEY,
		location         TEXT,
		review_count     INTEGER NOT NULL DEFAULT 0,
		avg_rating       REAL NOT NULL DEFAULT 0,
		top_score        INTEGER NOT NULL DEFAULT 0,
		avg_price_per_oz REAL,
		updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS countries (
		name             TEXT PRIMARY KEY,
		review_count     INTEGER NOT NULL DEFAULT 0,
		avg_rating       REAL NOT NULL DEFAULT 0,
		avg_price_per_oz REAL,
		top_score        INTEGER NOT NULL DEFAULT 0,
		dominant_roast   TEXT,
		updated_at       TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS insights_cache (
		key        TEXT PRIMARY KEY,
		data       TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

var sqliteDialect = dialect{
	name:        "sqlite",
	schema:      sqliteSchema,
	placeholder: func(int) string { return "?" },
	jsonValue:   func(marker string) string { return marker },
	embeddingArg: func(v []float64) (any, error) {
		if v == nil {
			return nil, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	},
}

// NewSQLiteStore opens (or creates) the SQLite database at path and runs
// schema migrations. ":memory:" gives a private in-memory database.
func NewSQLiteStore(path string) (*SQLStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("sqlite: create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one connection: SQLite serialises writers and ":memory:" is per connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}

	return newSQLStore(db, sqliteDialect)
}
