package detector

import (
	"errors"
	"fmt"
	"html"
	"strconv"
	"time"

	"github.com/rewired-gh/alertbell/internal/models"
)

// DrawdownConfig configures the drawdown level detector. Periods count
// samples, not calendar days: weekend gaps in a stock history shorten nothing.
type DrawdownConfig struct {
	Levels          models.LevelTable
	AveragingPeriod int
	CooldownPeriod  int
}

func DefaultDrawdownConfig() DrawdownConfig {
	return DrawdownConfig{
		Levels:          models.DefaultLevelTable(),
		AveragingPeriod: 30,
		CooldownPeriod:  30,
	}
}

func (c DrawdownConfig) Validate() error {
	if err := c.Levels.Validate(); err != nil {
		return fmt.Errorf("invalid level table: %w", err)
	}
	if c.AveragingPeriod < 1 {
		return errors.New("averaging period must be at least 1")
	}
	if c.CooldownPeriod < 1 {
		return errors.New("cooldown period must be at least 1")
	}
	return nil
}

// Drawdown is the drawdown level detector kind.
type Drawdown struct {
	config DrawdownConfig
}

// NewDrawdown validates cfg and returns a detector kind. The level table is
// copied, so later changes to cfg do not leak into the detector.
func NewDrawdown(cfg DrawdownConfig) (*Drawdown, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Levels = append(models.LevelTable(nil), cfg.Levels...)
	return &Drawdown{config: cfg}, nil
}

func (d *Drawdown) Name() string {
	return KindDrawdown
}

func (d *Drawdown) Detect(frame *models.Frame) (State, error) {
	series, err := frame.Series()
	if err != nil {
		return nil, err
	}
	return ScanDrawdown(series, d.config), nil
}

// LevelEvent records the sample at which a level was reached.
type LevelEvent struct {
	Timestamp time.Time    `json:"timestamp"`
	Level     models.Level `json:"level"`
}

// DrawdownState is the result of a drawdown scan. CurrentLevel and
// JustActivated describe the last sample only; History keeps every
// escalation seen during the scan, including ones that have cooled down.
type DrawdownState struct {
	CurrentLevel  *models.Level `json:"current_level"`
	JustActivated bool          `json:"just_activated"`
	History       []LevelEvent  `json:"history"`
}

// ScanDrawdown walks the series from index AveragingPeriod onwards. While no
// level is active the baseline is the mean of the preceding AveragingPeriod
// samples; once a level activates, the baseline is frozen until the level
// cools down after CooldownPeriod samples without a higher escalation.
func ScanDrawdown(series models.HistorySeries, cfg DrawdownConfig) *DrawdownState {
	state := &DrawdownState{History: []LevelEvent{}}
	values := series.Values()
	period := cfg.AveragingPeriod

	var baseline float64
	var counter int
	for i := period; i < len(values); i++ {
		state.JustActivated = false

		if state.CurrentLevel == nil {
			baseline = mean(values[i-period : i])
		}

		diff := (baseline - values[i]) / baseline
		level := cfg.Levels.Highest(diff)
		if level != nil && models.CompareLevels(level, state.CurrentLevel) > 0 {
			state.History = append(state.History, LevelEvent{Timestamp: series.Points[i].Timestamp, Level: *level})
			state.CurrentLevel = level
			state.JustActivated = true
			counter = cfg.CooldownPeriod
		}

		if state.CurrentLevel != nil {
			counter--
			if counter == 0 {
				state.CurrentLevel = nil
			}
		}
	}
	return state
}

func (s *DrawdownState) Kind() string {
	return KindDrawdown
}

func (s *DrawdownState) IsRinging() bool {
	return s.JustActivated
}

func (s *DrawdownState) Equal(other State) bool {
	o, ok := other.(*DrawdownState)
	if !ok || o == nil {
		return false
	}
	return models.SameLevel(s.CurrentLevel, o.CurrentLevel)
}

func (s *DrawdownState) Text() string {
	if s.CurrentLevel == nil {
		return ""
	}
	return fmt.Sprintf("%.0f%% down! -> %sx invest",
		s.CurrentLevel.Trigger*100,
		strconv.FormatFloat(s.CurrentLevel.Factor, 'f', -1, 64))
}

func (s *DrawdownState) HTML() string {
	return html.EscapeString(s.Text())
}
