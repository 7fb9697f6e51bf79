// Package models defines the core domain entities: symbols, metric histories, and drawdown levels.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrValidation marks input that does not have the shape a detector requires.
var ErrValidation = errors.New("validation failed")

// HistoryPoint is a single metric observation.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// HistorySeries is an ordered, timestamp-indexed sequence of values of one metric.
type HistorySeries struct {
	Metric string
	Points []HistoryPoint
}

// Len returns the number of points.
func (s HistorySeries) Len() int {
	return len(s.Points)
}

// Values returns the metric values in timestamp order.
func (s HistorySeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// Last returns the most recent point. ok is false for an empty series.
func (s HistorySeries) Last() (HistoryPoint, bool) {
	if len(s.Points) == 0 {
		return HistoryPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// FrameRow is one timestamped row of a Frame.
type FrameRow struct {
	Timestamp time.Time
	Values    []float64
}

// Frame is the tabular history a provider returns: a timestamp index and
// one or more metric columns. Detectors only accept frames with exactly one
// column; see Series.
type Frame struct {
	Columns []string
	Rows    []FrameRow
}

// NewFrame builds a single-column frame from points.
func NewFrame(metric string, points []HistoryPoint) *Frame {
	rows := make([]FrameRow, len(points))
	for i, p := range points {
		rows[i] = FrameRow{Timestamp: p.Timestamp, Values: []float64{p.Value}}
	}
	return &Frame{Columns: []string{metric}, Rows: rows}
}

// Len returns the number of rows. A nil frame has zero rows.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Validate checks that the frame carries exactly one metric column and that
// timestamps never go backwards.
func (f *Frame) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil frame", ErrValidation)
	}
	if len(f.Columns) != 1 {
		return fmt.Errorf("%w: need exactly 1 metric column, got %d", ErrValidation, len(f.Columns))
	}
	for i, row := range f.Rows {
		if len(row.Values) != 1 {
			return fmt.Errorf("%w: row %d has %d values, want 1", ErrValidation, i, len(row.Values))
		}
		if i > 0 && row.Timestamp.Before(f.Rows[i-1].Timestamp) {
			return fmt.Errorf("%w: row %d is out of order (%s before %s)", ErrValidation, i,
				row.Timestamp.Format(time.RFC3339), f.Rows[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// Series validates the frame and returns its single metric column.
func (f *Frame) Series() (HistorySeries, error) {
	if err := f.Validate(); err != nil {
		return HistorySeries{}, err
	}
	points := make([]HistoryPoint, len(f.Rows))
	for i, row := range f.Rows {
		points[i] = HistoryPoint{Timestamp: row.Timestamp, Value: row.Values[0]}
	}
	return HistorySeries{Metric: f.Columns[0], Points: points}, nil
}

// LatestValue returns the first value of the last row. ok is false for an
// empty frame or an empty last row.
func (f *Frame) LatestValue() (float64, bool) {
	if f.Len() == 0 {
		return 0, false
	}
	last := f.Rows[len(f.Rows)-1]
	if len(last.Values) == 0 {
		return 0, false
	}
	return last.Values[0], true
}
