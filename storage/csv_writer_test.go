package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brew-intelligence/models"
)

func TestCSVWriterAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "raw.csv")
	fields := &models.ExtractedFields{Title: "Kenya AA", Roaster: "Roaster A", Price: "$20", Rating: 93}

	w, err := NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRaw("https://example.com/1", fields))
	require.NoError(t, w.Close())

	w, err = NewCSVWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteRaw("https://example.com/2", fields))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "https://example.com/1", records[1][0])
	assert.Equal(t, "93", records[2][9])
}
