// Package monitor runs the detectors over a set of symbols and decides which
// alerts are new.
package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rewired-gh/alertbell/internal/detector"
	"github.com/rewired-gh/alertbell/internal/history"
	"github.com/rewired-gh/alertbell/internal/logger"
	"github.com/rewired-gh/alertbell/internal/models"
	"github.com/rewired-gh/alertbell/internal/storage"
	"github.com/rewired-gh/alertbell/internal/templates"
)

// Generate evaluates kind for every symbol in order and returns the rendered
// alerts that changed since the last run.
//
// The store is backed up once before the first symbol. A symbol with no
// history is skipped silently. Any other per-symbol failure is collected and
// returned joined after the remaining symbols have been processed; states
// committed for earlier symbols stay committed.
func Generate(
	ctx context.Context,
	kind detector.Kind,
	provider history.Provider,
	symbols []models.Symbol,
	tmpl templates.Template,
	store storage.Store,
) ([]string, error) {
	if err := store.Backup(); err != nil {
		logger.Warn("State backup failed, continuing: %v", err)
	}

	alerts := []string{}
	var errs []error
	for _, symbol := range symbols {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		alert, err := evaluate(ctx, kind, provider, symbol, tmpl, store)
		if err != nil {
			logger.Warn("Skipping %s: %v", symbol.Name(), err)
			errs = append(errs, err)
			continue
		}
		if alert != "" {
			alerts = append(alerts, alert)
		}
	}
	return alerts, errors.Join(errs...)
}

// evaluate handles one symbol. It returns "" when there is nothing to report.
func evaluate(
	ctx context.Context,
	kind detector.Kind,
	provider history.Provider,
	symbol models.Symbol,
	tmpl templates.Template,
	store storage.Store,
) (string, error) {
	name := symbol.Name()

	frame, err := provider.History(ctx, symbol)
	if err != nil {
		logger.Debug("No history for %s: %v", name, err)
		return "", nil
	}
	if frame.Len() == 0 {
		logger.Debug("Empty history for %s", name)
		return "", nil
	}

	current, err := kind.Detect(frame)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}

	old, err := loadState(store, name)
	if err != nil {
		return "", err
	}

	if !current.IsRinging() || current.Equal(old) {
		logger.Debug("%s %s alert suppressed (ringing=%t)", name, kind.Name(), current.IsRinging())
		return "", nil
	}

	record, err := detector.Encode(current)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if err := store.Update(name, record); err != nil {
		return "", err
	}

	latest, _ := frame.LatestValue()
	logger.Info("New %s alert for %s", kind.Name(), name)
	return tmpl.Apply(symbol, current, old, latest), nil
}

// loadState returns the stored state for name, or nil if there is none.
func loadState(store storage.Store, name string) (detector.State, error) {
	record, err := store.Lookup(name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	state, err := detector.Decode(record)
	if err != nil {
		return nil, fmt.Errorf("%s: stored state is unreadable: %w", name, err)
	}
	return state, nil
}
