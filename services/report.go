package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
)

const reportWidth = 58

// PrintReport writes a terminal summary of one aggregation run to w.
func PrintReport(w io.Writer, stats *RunStats) {
	sep := strings.Repeat("═", reportWidth)
	thin := strings.Repeat("─", reportWidth)
	v := stats.Result.Views

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  ☕ COFFEE REVIEW INSIGHTS\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Reviews           : \033[1m%s\033[0m\n", humanize.Comma(int64(v.TotalReviews)))
	fmt.Fprintf(w, "  Roasters          : \033[1m%s\033[0m\n", humanize.Comma(int64(stats.Roasters)))
	fmt.Fprintf(w, "  Countries (3+)    : \033[1m%s\033[0m\n", humanize.Comma(int64(stats.Countries)))
	fmt.Fprintf(w, "  Last 30 days      : \033[1m%s\033[0m\n", humanize.Comma(int64(v.DashboardStats.RecentCount30d)))
	if stats.FailedRows > 0 {
		fmt.Fprintf(w, "  Rows not written  : \033[1;31m%d\033[0m\n", stats.FailedRows)
	}
	fmt.Fprintln(w)

	h := v.Highlights
	fmt.Fprintf(w, "\033[1;33m  Highlights\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if h.HighestRatedBean != nil {
		fmt.Fprintf(w, "  Highest rated     : %s (%d) by %s\n",
			fit(h.HighestRatedBean.Title, 28), h.HighestRatedBean.Rating, h.HighestRatedBean.Roaster)
	}
	if h.MostReviewedCountry != nil {
		fmt.Fprintf(w, "  Most reviewed     : %s (%s)\n",
			h.MostReviewedCountry.Country, humanize.Comma(int64(h.MostReviewedCountry.Count)))
	}
	if h.MostExpensiveAvgCountry != nil {
		fmt.Fprintf(w, "  Priciest origin   : %s ($%.2f/oz)\n",
			h.MostExpensiveAvgCountry.Country, h.MostExpensiveAvgCountry.AvgPrice)
	}
	if h.CheapestHighQuality != nil {
		fmt.Fprintf(w, "  Best value 90+    : %s (%d) at \033[1;32m%s\033[0m\n",
			fit(h.CheapestHighQuality.Title, 28), h.CheapestHighQuality.Rating, h.CheapestHighQuality.Price)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top Roasters\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if len(v.TopRoasters) == 0 {
		fmt.Fprintf(w, "  No roaster has five rated reviews yet\n")
	}
	for i, r := range v.TopRoasters {
		if i == 5 {
			break
		}
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %s \033[1;32m%.1f\033[0m (%d reviews)\n",
			i+1, runewidth.FillRight(fit(r.Roaster, 34), 34), r.AvgRating, r.Count)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Rating Distribution\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	peak := 0
	for _, b := range v.RatingDistribution {
		peak = max(peak, b.Count)
	}
	for _, b := range v.RatingDistribution {
		fmt.Fprintf(w, "  %-6s %s %s\n", b.Range, bar(b.Count, peak, 36), humanize.Comma(int64(b.Count)))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Price Tiers\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	for _, t := range v.PriceTiers {
		fmt.Fprintf(w, "  %s %s %6s reviews, avg %.1f\n",
			runewidth.FillRight(t.Tier, 10), runewidth.FillRight(t.Range, 12),
			humanize.Comma(int64(t.Count)), t.AvgRating)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// fit truncates s to width display columns.
func fit(s string, width int) string {
	return runewidth.Truncate(s, width, "...")
}

func bar(n, peak, width int) string {
	if peak == 0 {
		return ""
	}
	return strings.Repeat("█", n*width/peak)
}
