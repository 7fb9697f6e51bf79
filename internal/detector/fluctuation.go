package detector

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rewired-gh/alertbell/internal/models"
)

const (
	upMarker    = "↑↑↑"
	downMarker  = "↓↓↓"
	blankMarker = "       "
	separator   = " · "
)

// Window is a trailing calendar-day interval and the relative excursion
// that triggers an alert within it, e.g. {14, 0.10}: a 10% move in 14 days.
type Window struct {
	PeriodDays int     `mapstructure:"period_days" json:"period_days"`
	Trigger    float64 `mapstructure:"trigger" json:"trigger"`
}

// FluctuationConfig lists the windows in rendering order.
type FluctuationConfig struct {
	Windows []Window
}

func DefaultFluctuationConfig() FluctuationConfig {
	return FluctuationConfig{Windows: []Window{
		{PeriodDays: 3, Trigger: 0.05},
		{PeriodDays: 6, Trigger: 0.07},
		{PeriodDays: 14, Trigger: 0.10},
		{PeriodDays: 30, Trigger: 0.15},
		{PeriodDays: 60, Trigger: 0.20},
		{PeriodDays: 90, Trigger: 0.25},
		{PeriodDays: 180, Trigger: 0.30},
		{PeriodDays: 360, Trigger: 0.35},
	}}
}

func (c FluctuationConfig) Validate() error {
	if len(c.Windows) == 0 {
		return errors.New("at least one fluctuation window is required")
	}
	for i, w := range c.Windows {
		if w.PeriodDays < 1 {
			return fmt.Errorf("window %d: period_days must be at least 1", i)
		}
		if w.Trigger <= 0 {
			return fmt.Errorf("window %d: trigger must be positive", i)
		}
	}
	return nil
}

// Fluctuation is the multi-window fluctuation detector kind.
type Fluctuation struct {
	config FluctuationConfig
}

func NewFluctuation(cfg FluctuationConfig) (*Fluctuation, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Windows = append([]Window(nil), cfg.Windows...)
	return &Fluctuation{config: cfg}, nil
}

func (f *Fluctuation) Name() string {
	return KindFluctuation
}

func (f *Fluctuation) Detect(frame *models.Frame) (State, error) {
	series, err := frame.Series()
	if err != nil {
		return nil, err
	}
	state := &FluctuationState{Stats: make([]PeriodStat, len(f.config.Windows))}
	for i, w := range f.config.Windows {
		state.Stats[i] = NewPeriodStat(series, w)
	}
	return state, nil
}

// PeriodStat holds the excursion of the latest value from the min and max of
// one window. DMin is how far the latest value sits above the window minimum,
// DMax how far it sits below the window maximum, both relative.
type PeriodStat struct {
	PeriodDays      int     `json:"period_days"`
	TriggerFraction float64 `json:"trigger"`
	DMin            float64 `json:"dmin"`
	DMax            float64 `json:"dmax"`
}

// NewPeriodStat computes the stat for window w. The window covers every
// sample after the start of the calendar day PeriodDays before the last
// timestamp, so sparse series contribute fewer samples than nominal.
func NewPeriodStat(series models.HistorySeries, w Window) PeriodStat {
	ps := PeriodStat{PeriodDays: w.PeriodDays, TriggerFraction: w.Trigger}
	last, ok := series.Last()
	if !ok {
		return ps
	}

	from := last.Timestamp.AddDate(0, 0, -w.PeriodDays)
	cutoff := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, from.Location())

	minValue, maxValue := math.Inf(1), math.Inf(-1)
	for _, p := range series.Points {
		if !p.Timestamp.After(cutoff) {
			continue
		}
		minValue = math.Min(minValue, p.Value)
		maxValue = math.Max(maxValue, p.Value)
	}

	ps.DMin = finite(math.Abs((last.Value - minValue) / minValue))
	ps.DMax = finite(math.Abs((maxValue - last.Value) / maxValue))
	return ps
}

func (ps PeriodStat) MinTriggers() bool {
	return ps.DMin >= ps.TriggerFraction
}

func (ps PeriodStat) MaxTriggers() bool {
	return ps.DMax >= ps.TriggerFraction
}

// Equal compares trigger outcomes only; magnitudes are ignored.
func (ps PeriodStat) Equal(other PeriodStat) bool {
	return ps.MinTriggers() == other.MinTriggers() && ps.MaxTriggers() == other.MaxTriggers()
}

// FluctuationState holds one PeriodStat per configured window, in order.
type FluctuationState struct {
	Stats []PeriodStat `json:"stats"`
}

func (s *FluctuationState) Kind() string {
	return KindFluctuation
}

func (s *FluctuationState) IsRinging() bool {
	return s.Text() != ""
}

func (s *FluctuationState) Equal(other State) bool {
	o, ok := other.(*FluctuationState)
	if !ok || o == nil || len(s.Stats) != len(o.Stats) {
		return false
	}
	for i := range s.Stats {
		if !s.Stats[i].Equal(o.Stats[i]) {
			return false
		}
	}
	return true
}

// Text renders one line per window, e.g. " 14d · ↑↑↑ 12% ·        ".
// Both directions can trigger in the same window.
func (s *FluctuationState) Text() string {
	var b strings.Builder
	triggered := false
	for _, ps := range s.Stats {
		up, down := blankMarker, blankMarker
		if ps.MinTriggers() {
			up = upMarker + " " + percent(ps.DMin)
			triggered = true
		}
		if ps.MaxTriggers() {
			down = downMarker + " " + percent(ps.DMax)
			triggered = true
		}
		fmt.Fprintf(&b, "%3dd%s%s%s%s\n", ps.PeriodDays, separator, up, separator, down)
	}
	if !triggered {
		return ""
	}
	return b.String()
}

func (s *FluctuationState) HTML() string {
	text := s.Text()
	text = strings.ReplaceAll(text, upMarker, `<span style="color:green">`+upMarker+`</span>`)
	return strings.ReplaceAll(text, downMarker, `<span style="color:red">`+downMarker+`</span>`)
}

func percent(x float64) string {
	return fmt.Sprintf("%3s", fmt.Sprintf("%.0f%%", x*100))
}
