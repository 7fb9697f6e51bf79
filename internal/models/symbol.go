package models

import "errors"

// Symbol is the minimal capability the engine needs from a tracked symbol.
// State is stored under Name, so two symbols with the same name share state.
type Symbol interface {
	Name() string
}

// Strategist is implemented by symbols that carry an investment strategy note.
type Strategist interface {
	Strategy() string
}

// WatchedSymbol is a symbol loaded from the symbols file.
type WatchedSymbol struct {
	Ticker       string `yaml:"name" json:"name"`
	Source       string `yaml:"source" json:"source"`
	Watch        bool   `yaml:"watch" json:"watch"`
	StrategyNote string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
}

func (s WatchedSymbol) Name() string {
	return s.Ticker
}

func (s WatchedSymbol) Strategy() string {
	return s.StrategyNote
}

// Validate checks symbol field constraints.
func (s WatchedSymbol) Validate() error {
	if s.Ticker == "" {
		return errors.New("symbol name must not be empty")
	}
	return nil
}

// NamedSymbol is a bare symbol that only has a name.
type NamedSymbol string

func (n NamedSymbol) Name() string {
	return string(n)
}
