package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"brew-intelligence/models"
)

var csvHeader = []string{
	"url", "title", "roaster", "roaster_location", "roast_level", "origin", "agtron",
	"price", "review_date", "rating", "aroma", "acidity", "body", "flavor", "aftertaste",
	"blind_assessment", "notes", "bottom_line", "with_milk", "scraped_at",
}

// CSVWriter appends raw extraction output to a CSV audit file.
// It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	now    func() time.Time
}

// NewCSVWriter opens the CSV file at path for appending, writing the header
// row when the file is new. Intermediate directories are created automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w, now: time.Now}, nil
}

// WriteRaw appends one row for the extracted fields of url.
func (c *CSVWriter) WriteRaw(url string, f *models.ExtractedFields) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	row := []string{
		url,
		f.Title,
		f.Roaster,
		f.RoasterLocation,
		f.RoastLevel,
		f.Origin,
		f.Agtron,
		f.Price,
		f.ReviewDate,
		strconv.Itoa(f.Rating),
		strconv.Itoa(f.Aroma),
		strconv.Itoa(f.Acidity),
		strconv.Itoa(f.Body),
		strconv.Itoa(f.Flavor),
		strconv.Itoa(f.Aftertaste),
		f.BlindAssessment,
		f.Notes,
		f.BottomLine,
		f.WithMilk,
		c.now().UTC().Format(time.RFC3339),
	}
	if err := c.writer.Write(row); err != nil {
		return fmt.Errorf("csv: write row: %w", err)
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
