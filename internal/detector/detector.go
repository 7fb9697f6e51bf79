// Package detector turns a metric history into an alert state and decides
// whether that state is ringing and whether it differs from a stored one.
package detector

import (
	"encoding/json"
	"fmt"

	"github.com/rewired-gh/alertbell/internal/models"
)

const (
	KindDrawdown    = "drawdown"
	KindFluctuation = "fluctuation"
)

// State is the outcome of running a detector over a full history.
type State interface {
	// Kind names the detector that produced the state.
	Kind() string
	// IsRinging reports whether the alert condition holds for the most recent sample.
	IsRinging() bool
	// Equal reports whether other represents the same alert condition.
	// A nil other is never equal.
	Equal(other State) bool
	// Text renders the state as plain text, or "" when nothing triggers.
	Text() string
	// HTML renders the state as an HTML fragment, or "" when nothing triggers.
	HTML() string
}

// Kind builds a State from a history frame. Detect fails with an error
// wrapping models.ErrValidation if the frame is not a single metric series.
type Kind interface {
	Name() string
	Detect(frame *models.Frame) (State, error)
}

// New returns the detector kind registered under name, configured with cfg.
func New(name string, cfg Config) (Kind, error) {
	switch name {
	case KindDrawdown:
		return NewDrawdown(cfg.Drawdown)
	case KindFluctuation:
		return NewFluctuation(cfg.Fluctuation)
	default:
		return nil, fmt.Errorf("unknown detector kind %q", name)
	}
}

// Config bundles the configuration of every detector kind.
type Config struct {
	Drawdown    DrawdownConfig
	Fluctuation FluctuationConfig
}

// DefaultConfig returns the built-in level table and fluctuation windows.
func DefaultConfig() Config {
	return Config{
		Drawdown:    DefaultDrawdownConfig(),
		Fluctuation: DefaultFluctuationConfig(),
	}
}

type envelope struct {
	Kind  string          `json:"kind"`
	State json.RawMessage `json:"state"`
}

// Encode serializes a state into the opaque record kept by the state store.
func Encode(s State) ([]byte, error) {
	payload, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s state: %w", s.Kind(), err)
	}
	return json.Marshal(envelope{Kind: s.Kind(), State: payload})
}

// Decode restores a state written by Encode.
func Decode(blob []byte) (State, error) {
	var env envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state record: %w", err)
	}

	var s State
	switch env.Kind {
	case KindDrawdown:
		s = &DrawdownState{}
	case KindFluctuation:
		s = &FluctuationState{}
	default:
		return nil, fmt.Errorf("unknown state kind %q", env.Kind)
	}
	if err := json.Unmarshal(env.State, s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s state: %w", env.Kind, err)
	}
	return s, nil
}
