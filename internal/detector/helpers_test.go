package detector

import (
	"testing"
	"time"

	"github.com/rewired-gh/alertbell/internal/models"
)

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

// dailyFrame returns a single-column frame with one value per calendar day
// from start to end inclusive, all equal to value.
func dailyFrame(t *testing.T, start, end string, value float64) *models.Frame {
	t.Helper()
	var points []models.HistoryPoint
	for d := mustDate(t, start); !d.After(mustDate(t, end)); d = d.AddDate(0, 0, 1) {
		points = append(points, models.HistoryPoint{Timestamp: d, Value: value})
	}
	return models.NewFrame("close", points)
}

// metricHistory mirrors the fixture used across detector tests: flat 1.0
// from 2015-01-01 through 2020-08-01.
func metricHistory(t *testing.T) *models.Frame {
	return dailyFrame(t, "2015-01-01", "2020-08-01", 1)
}

func setValue(t *testing.T, f *models.Frame, date string, value float64) {
	t.Helper()
	d := mustDate(t, date)
	for i := range f.Rows {
		if f.Rows[i].Timestamp.Equal(d) {
			f.Rows[i].Values[0] = value
			return
		}
	}
	t.Fatalf("no row for %s", date)
}

func samplesFrame(values ...float64) *models.Frame {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	points := make([]models.HistoryPoint, len(values))
	for i, v := range values {
		points[i] = models.HistoryPoint{Timestamp: start.AddDate(0, 0, i), Value: v}
	}
	return models.NewFrame("close", points)
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func twoColumnFrame() *models.Frame {
	return &models.Frame{
		Columns: []string{"open", "close"},
		Rows: []models.FrameRow{
			{Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Values: []float64{1, 1}},
		},
	}
}
