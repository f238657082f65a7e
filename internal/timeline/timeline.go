// Package timeline turns a month date index into scrubber ticks.
package timeline

import (
	"math"
	"strconv"
	"time"

	"github.com/matheus3301/imv/internal/types"
)

// Tick is one labelled month on the scrubber.
type Tick struct {
	Label       string `json:"label"`
	YearLabel   string `json:"yearLabel,omitempty"`
	IsYearStart bool   `json:"isYearStart"`
	MonthKey    string `json:"monthKey"`
	Year        int    `json:"year"`
	Month       int    `json:"month"`
	FirstDate   int64  `json:"firstDate"`
	Count       int    `json:"count"`
}

// Build returns one tick per entry, in the same order.
func Build(entries []types.DateIndexEntry) []Tick {
	ticks := make([]Tick, 0, len(entries))
	for _, e := range entries {
		year := strconv.Itoa(e.Year)
		t := Tick{
			Label:     shortMonth(e.Month) + " " + year,
			MonthKey:  e.MonthKey,
			Year:      e.Year,
			Month:     e.Month,
			FirstDate: e.FirstDate,
			Count:     e.Count,
		}
		if e.Month == 1 {
			t.YearLabel = year
			t.IsYearStart = true
		}
		ticks = append(ticks, t)
	}
	return ticks
}

func shortMonth(m int) string {
	if m < 1 || m > 12 {
		return "???"
	}
	return time.Month(m).String()[:3]
}

// Layout spreads n tick positions evenly over [0, extent]. A single tick sits
// at 0.
func Layout(n int, extent float64) []float64 {
	if n <= 0 {
		return nil
	}
	pos := make([]float64, n)
	if n == 1 {
		return pos
	}
	step := extent / float64(n-1)
	for i := range pos {
		pos[i] = float64(i) * step
	}
	return pos
}

// Nearest returns the index of the position closest to cursor. Ties go to the
// lower index. It returns -1 when there are no positions.
func Nearest(positions []float64, cursor float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, p := range positions {
		if d := math.Abs(p - cursor); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// NearestDate returns the index of the tick whose first date is closest to
// date, or -1 for no ticks.
func NearestDate(ticks []Tick, date int64) int {
	positions := make([]float64, len(ticks))
	for i, t := range ticks {
		positions[i] = float64(t.FirstDate)
	}
	return Nearest(positions, float64(date))
}
