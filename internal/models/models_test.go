package models

import (
	"errors"
	"testing"
	"time"
)

func day(n int) time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestFrameValidate(t *testing.T) {
	tests := []struct {
		name    string
		frame   *Frame
		wantErr bool
	}{
		{
			name:    "valid single column",
			frame:   NewFrame("close", []HistoryPoint{{day(0), 1}, {day(1), 2}}),
			wantErr: false,
		},
		{
			name:    "empty single column",
			frame:   &Frame{Columns: []string{"close"}},
			wantErr: false,
		},
		{
			name:    "nil frame",
			frame:   nil,
			wantErr: true,
		},
		{
			name: "two columns",
			frame: &Frame{
				Columns: []string{"open", "close"},
				Rows:    []FrameRow{{Timestamp: day(0), Values: []float64{1, 2}}},
			},
			wantErr: true,
		},
		{
			name:    "no columns",
			frame:   &Frame{},
			wantErr: true,
		},
		{
			name: "row width mismatch",
			frame: &Frame{
				Columns: []string{"close"},
				Rows:    []FrameRow{{Timestamp: day(0), Values: []float64{1, 2}}},
			},
			wantErr: true,
		},
		{
			name: "timestamps out of order",
			frame: &Frame{
				Columns: []string{"close"},
				Rows: []FrameRow{
					{Timestamp: day(1), Values: []float64{1}},
					{Timestamp: day(0), Values: []float64{1}},
				},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.frame.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Frame.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestFrameSeriesAndLatest(t *testing.T) {
	f := NewFrame("close", []HistoryPoint{{day(0), 1.5}, {day(1), 2.5}})
	s, err := f.Series()
	if err != nil {
		t.Fatalf("Series: %v", err)
	}
	if s.Metric != "close" || s.Len() != 2 {
		t.Errorf("unexpected series %+v", s)
	}
	last, ok := s.Last()
	if !ok || last.Value != 2.5 {
		t.Errorf("Last() = %v, %v", last, ok)
	}
	if v, ok := f.LatestValue(); !ok || v != 2.5 {
		t.Errorf("LatestValue() = %v, %v", v, ok)
	}

	var nilFrame *Frame
	if nilFrame.Len() != 0 {
		t.Error("nil frame should have zero rows")
	}
	if _, ok := nilFrame.LatestValue(); ok {
		t.Error("nil frame should have no latest value")
	}
}

func TestCompareLevels(t *testing.T) {
	low := &Level{Trigger: 0.1, Factor: 2}
	high := &Level{Trigger: 0.3, Factor: 6}
	sameTrigger := &Level{Trigger: 0.1, Factor: 99}

	tests := []struct {
		name string
		a, b *Level
		want int
	}{
		{"nil vs nil", nil, nil, 0},
		{"nil vs level", nil, low, -1},
		{"level vs nil", low, nil, 1},
		{"low vs high", low, high, -1},
		{"high vs low", high, low, 1},
		{"trigger only", low, sameTrigger, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompareLevels(tt.a, tt.b); got != tt.want {
				t.Errorf("CompareLevels() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLevelTableHighest(t *testing.T) {
	table := DefaultLevelTable()
	tests := []struct {
		diff        float64
		wantTrigger float64
		wantNil     bool
	}{
		{diff: 0.05, wantNil: true},
		{diff: -0.5, wantNil: true},
		{diff: 0.1, wantTrigger: 0.1},
		{diff: 0.29, wantTrigger: 0.2},
		{diff: 1.0, wantTrigger: 0.5},
	}
	for _, tt := range tests {
		got := table.Highest(tt.diff)
		if tt.wantNil {
			if got != nil {
				t.Errorf("Highest(%v) = %v, want nil", tt.diff, got)
			}
			continue
		}
		if got == nil || got.Trigger != tt.wantTrigger {
			t.Errorf("Highest(%v) = %v, want trigger %v", tt.diff, got, tt.wantTrigger)
		}
	}
}

func TestLevelTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   LevelTable
		wantErr bool
	}{
		{"default", DefaultLevelTable(), false},
		{"empty", LevelTable{}, true},
		{"trigger above one", LevelTable{{Trigger: 1.5, Factor: 2}}, true},
		{"zero trigger", LevelTable{{Trigger: 0, Factor: 2}}, true},
		{"negative factor", LevelTable{{Trigger: 0.1, Factor: -1}}, true},
		{"not increasing", LevelTable{{Trigger: 0.2, Factor: 2}, {Trigger: 0.2, Factor: 4}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("LevelTable.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestWatchedSymbolValidate(t *testing.T) {
	if err := (WatchedSymbol{}).Validate(); err == nil {
		t.Error("expected error for empty name")
	}
	s := WatchedSymbol{Ticker: "BTC", StrategyNote: "DCA"}
	if err := s.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if s.Name() != "BTC" || s.Strategy() != "DCA" {
		t.Errorf("unexpected accessors: %q %q", s.Name(), s.Strategy())
	}
}
