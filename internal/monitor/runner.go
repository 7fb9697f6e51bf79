package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/detector"
	"github.com/rewired-gh/alertbell/internal/history"
	"github.com/rewired-gh/alertbell/internal/logger"
	"github.com/rewired-gh/alertbell/internal/models"
	"github.com/rewired-gh/alertbell/internal/notify"
	"github.com/rewired-gh/alertbell/internal/storage"
	"github.com/rewired-gh/alertbell/internal/symbols"
	"github.com/rewired-gh/alertbell/internal/templates"
)

// Job is one alert category: a detector run over a symbol list on given weekdays.
type Job struct {
	Names    templates.Names
	Kind     detector.Kind
	Weekdays []time.Weekday
	Symbols  []models.Symbol
	Provider history.Provider
}

// Namespace names the state store of the job, e.g. "Crypto-Price-DoubleDownAlert".
func (j Job) Namespace() string {
	return fmt.Sprintf("%s-%s-%s", j.Names.Category, j.Names.Metric, j.Names.Alert)
}

// Due reports whether the job runs on the weekday of now.
func (j Job) Due(now time.Time) bool {
	return slices.Contains(j.Weekdays, now.Weekday())
}

// BuildJobs turns job configuration into runnable jobs. providerFor returns
// the history provider for a metric name.
func BuildJobs(
	jobs []config.JobConfig,
	detectors detector.Config,
	watched []models.WatchedSymbol,
	providerFor func(metric string) history.Provider,
) ([]Job, error) {
	out := make([]Job, 0, len(jobs))
	for i, jc := range jobs {
		kind, err := detector.New(jc.Alert, detectors)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		weekdays, err := config.ParseWeekdays(jc.Weekdays)
		if err != nil {
			return nil, fmt.Errorf("jobs[%d]: %w", i, err)
		}
		name := jc.Name
		if name == "" {
			name = jc.Alert
		}
		out = append(out, Job{
			Names: templates.Names{
				Category:    jc.Category,
				Alert:       name,
				Metric:      jc.Metric,
				LinkPattern: jc.LinkPattern,
			},
			Kind:     kind,
			Weekdays: weekdays,
			Symbols:  symbols.Filter(watched, jc.Sources, jc.ExcludeSources),
			Provider: providerFor(jc.Metric),
		})
	}
	return out, nil
}

// Runner executes every due job once per Run.
type Runner struct {
	Jobs        []Job
	Storage     storage.Options
	Notifier    notify.Notifier
	AllWeekdays bool
	DryRun      bool

	Out io.Writer        // dry run output, stdout when nil
	Now func() time.Time // time.Now when nil
}

// Run executes the due jobs in order. A failing job does not stop the
// remaining jobs; all failures are returned joined.
func (r *Runner) Run(ctx context.Context) error {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	today := now()

	var errs []error
	for _, job := range r.Jobs {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if !r.AllWeekdays && !job.Due(today) {
			logger.Debug("Skipping %s, not scheduled on %s", job.Namespace(), today.Weekday())
			continue
		}
		if err := r.runJob(ctx, job); err != nil {
			logger.Error("Job %s failed: %v", job.Namespace(), err)
			errs = append(errs, fmt.Errorf("%s: %w", job.Namespace(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) runJob(ctx context.Context, job Job) error {
	format := templates.FormatText
	if !r.DryRun && r.Notifier != nil {
		format = r.Notifier.Format()
	}
	tmpl, err := templates.New(format, job.Names)
	if err != nil {
		return err
	}

	store, err := storage.Open(r.Storage, job.Namespace())
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close state store %s: %v", job.Namespace(), err)
		}
	}()

	start := time.Now()
	alerts, genErr := Generate(ctx, job.Kind, job.Provider, job.Symbols, tmpl, store)
	logger.Info("%s: %d new alerts from %d symbols in %v",
		job.Namespace(), len(alerts), len(job.Symbols), time.Since(start))

	body := strings.Join(alerts, "\n")
	switch {
	case r.DryRun:
		out := r.Out
		if out == nil {
			out = os.Stdout
		}
		if _, err := fmt.Fprintln(out, tmpl.Title()+"\n"+body); err != nil {
			return errors.Join(genErr, err)
		}
	case len(alerts) > 0:
		if r.Notifier == nil {
			return errors.Join(genErr, errors.New("no notifier configured"))
		}
		if err := r.Notifier.Notify(ctx, tmpl.Title(), tmpl.WrapBody(body)); err != nil {
			return errors.Join(genErr, fmt.Errorf("failed to send alerts: %w", err))
		}
		logger.Info("Sent %d alerts for %s", len(alerts), job.Namespace())
	}
	return genErr
}
