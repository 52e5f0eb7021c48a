package services

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"brew-intelligence/utils"
)

func TestPrintReport(t *testing.T) {
	reviews := corpus(40)
	reviews[0].Title = "A Remarkably Long Coffee Title That Will Not Fit"
	reviews[0].Rating = 99

	stats := &RunStats{Roasters: 7, Countries: 3, FailedRows: 2}
	stats.Result = NewInsightService(utils.NewNopLogger()).Aggregate(reviews, testNow)

	var buf bytes.Buffer
	PrintReport(&buf, stats)
	out := buf.String()

	assert.Contains(t, out, "COFFEE REVIEW INSIGHTS")
	assert.Contains(t, out, "Reviews           : \033[1m40\033[0m")
	assert.Contains(t, out, "Rows not written")
	assert.Contains(t, out, "Mid-Range")
	assert.Contains(t, out, "98+")
	assert.Contains(t, out, "A Remarkably Long Coffee ...")
	assert.NotContains(t, out, "Will Not Fit")
}

func TestPrintReportEmpty(t *testing.T) {
	stats := &RunStats{Result: NewInsightService(utils.NewNopLogger()).Aggregate(nil, testNow)}

	var buf bytes.Buffer
	PrintReport(&buf, stats)
	assert.Contains(t, buf.String(), "No roaster has five rated reviews yet")
	assert.NotContains(t, buf.String(), "Highest rated")
}
