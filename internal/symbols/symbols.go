// Package symbols loads the list of tracked symbols.
package symbols

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/rewired-gh/alertbell/internal/models"
)

type file struct {
	Symbols []models.WatchedSymbol `yaml:"symbols"`
}

// Load reads a YAML file of the form
//
//	symbols:
//	  - name: BTC
//	    source: coingecko
//	    watch: true
//	    strategy: DCA weekly
//
// and returns the watched symbols in file order.
func Load(path string) ([]models.WatchedSymbol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols file: %w", err)
	}
	return Parse(data)
}

// Parse decodes symbols from YAML and drops those not marked as watched.
func Parse(data []byte) ([]models.WatchedSymbol, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse symbols: %w", err)
	}

	watched := make([]models.WatchedSymbol, 0, len(f.Symbols))
	for i, s := range f.Symbols {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("symbols[%d]: %w", i, err)
		}
		if s.Watch {
			watched = append(watched, s)
		}
	}
	return watched, nil
}

// Filter keeps symbols whose source is in include (all when include is
// empty) and not in exclude, preserving order.
func Filter(all []models.WatchedSymbol, include, exclude []string) []models.Symbol {
	out := make([]models.Symbol, 0, len(all))
	for _, s := range all {
		if len(include) > 0 && !slices.Contains(include, s.Source) {
			continue
		}
		if slices.Contains(exclude, s.Source) {
			continue
		}
		out = append(out, s)
	}
	return out
}
