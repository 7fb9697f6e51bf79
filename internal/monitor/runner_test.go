package monitor

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rewired-gh/alertbell/internal/config"
	"github.com/rewired-gh/alertbell/internal/detector"
	"github.com/rewired-gh/alertbell/internal/history"
	"github.com/rewired-gh/alertbell/internal/models"
	"github.com/rewired-gh/alertbell/internal/storage"
	"github.com/rewired-gh/alertbell/internal/templates"
)

type sentBatch struct {
	subject string
	body    string
}

type fakeNotifier struct {
	format string
	sent   []sentBatch
	err    error
}

func (n *fakeNotifier) Notify(_ context.Context, subject, body string) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, sentBatch{subject: subject, body: body})
	return nil
}

func (n *fakeNotifier) Format() string {
	return n.format
}

// monday is 2024-01-01.
var monday = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func testJob(t *testing.T, weekdays ...time.Weekday) Job {
	t.Helper()
	return Job{
		Names: templates.Names{
			Category:    "Crypto",
			Alert:       "DoubleDownAlert",
			Metric:      "Price",
			LinkPattern: "https://www.coingecko.com/en/coins/{name}",
		},
		Kind:     drawdownKind(t),
		Weekdays: weekdays,
		Symbols:  symbolList("bitcoin", "ethereum"),
		Provider: history.Static{
			"bitcoin":  dailyFrame(1, 1, 1, 0.5),
			"ethereum": dailyFrame(1, 1, 1, 1),
		},
	}
}

func TestJob_Namespace(t *testing.T) {
	job := testJob(t)
	if job.Namespace() != "Crypto-Price-DoubleDownAlert" {
		t.Errorf("Namespace() = %q", job.Namespace())
	}
	if storage.Slug(job.Namespace()) != "crypto-price-doubledownalert" {
		t.Errorf("unexpected slug %q", storage.Slug(job.Namespace()))
	}
}

func TestRunner_NotifiesOnlyNewAlerts(t *testing.T) {
	notifier := &fakeNotifier{format: templates.FormatHTML}
	r := &Runner{
		Jobs:     []Job{testJob(t, time.Monday)},
		Storage:  storage.Options{Backend: storage.BackendSQLite, DataDir: t.TempDir()},
		Notifier: notifier,
		Now:      func() time.Time { return monday },
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	sent := notifier.sent[0]
	if sent.subject != "📈🚨📉 Crypto Price DoubleDownAlert" {
		t.Errorf("unexpected subject %q", sent.subject)
	}
	if !strings.HasPrefix(sent.body, "<pre>") ||
		!strings.Contains(sent.body, `<a href="https://www.coingecko.com/en/coins/bitcoin">bitcoin ⚠lert</a>`) {
		t.Errorf("unexpected body %q", sent.body)
	}
	if strings.Contains(sent.body, "ethereum") {
		t.Errorf("non-ringing symbol in body %q", sent.body)
	}

	// State persisted in SQLite: the same history produces no new mail.
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("expected no new notification, got %d total", len(notifier.sent))
	}
}

func TestRunner_WeekdayGating(t *testing.T) {
	notifier := &fakeNotifier{format: templates.FormatText}
	r := &Runner{
		Jobs:     []Job{testJob(t, time.Tuesday, time.Thursday)},
		Storage:  storage.Options{Backend: storage.BackendMemory},
		Notifier: notifier,
		Now:      func() time.Time { return monday },
	}

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Errorf("job ran on an unscheduled weekday")
	}

	r.AllWeekdays = true
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("all_weekdays did not override the schedule")
	}
}

func TestRunner_DryRun(t *testing.T) {
	var out bytes.Buffer
	notifier := &fakeNotifier{format: templates.FormatHTML}
	quiet := testJob(t, time.Monday)
	quiet.Names.Category = "Stockx"
	quiet.Symbols = symbolList("ethereum")

	r := &Runner{
		Jobs:     []Job{testJob(t, time.Monday), quiet},
		Storage:  storage.Options{Backend: storage.BackendMemory},
		Notifier: notifier,
		DryRun:   true,
		Out:      &out,
		Now:      func() time.Time { return monday },
	}
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Error("dry run must not notify")
	}

	got := out.String()
	if !strings.Contains(got, "📈🚨📉 Crypto Price DoubleDownAlert\nbitcoin ⚠lert\n") {
		t.Errorf("dry run output lacks the text alert: %q", got)
	}
	// Jobs without alerts still print their title.
	if !strings.Contains(got, "📈🚨📉 Stockx Price DoubleDownAlert\n") {
		t.Errorf("dry run output lacks the empty job: %q", got)
	}
}

func TestRunner_ErrorsDoNotStopOtherJobs(t *testing.T) {
	notifier := &fakeNotifier{format: templates.FormatText}
	broken := testJob(t, time.Monday)
	broken.Names.Category = "Broken"
	broken.Symbols = symbolList("bitcoin")
	broken.Provider = history.Static{"bitcoin": twoColumnFrame()}

	r := &Runner{
		Jobs:     []Job{broken, testJob(t, time.Monday)},
		Storage:  storage.Options{Backend: storage.BackendMemory},
		Notifier: notifier,
		Now:      func() time.Time { return monday },
	}
	err := r.Run(context.Background())
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "Broken-Price-DoubleDownAlert") {
		t.Errorf("error does not name the job: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Errorf("healthy job did not notify, sent=%d", len(notifier.sent))
	}
}

func TestRunner_NotifyFailure(t *testing.T) {
	boom := errors.New("smtp down")
	r := &Runner{
		Jobs:     []Job{testJob(t, time.Monday)},
		Storage:  storage.Options{Backend: storage.BackendMemory},
		Notifier: &fakeNotifier{err: boom},
		Now:      func() time.Time { return monday },
	}
	if err := r.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected notifier error, got %v", err)
	}
}

func TestBuildJobs(t *testing.T) {
	watched := []models.WatchedSymbol{
		{Ticker: "bitcoin", Source: "coingecko", Watch: true},
		{Ticker: "AAPL", Source: "yahoo", Watch: true},
	}
	var metrics []string
	providerFor := func(metric string) history.Provider {
		metrics = append(metrics, metric)
		return history.Static{}
	}

	jobs, err := BuildJobs([]config.JobConfig{
		{Category: "Crypto", Alert: "drawdown", Name: "DoubleDownAlert", Metric: "Price",
			Weekdays: []string{"mon", "tue"}, Sources: []string{"coingecko"}},
		{Category: "Stockx", Alert: "fluctuation", Metric: "Close", ExcludeSources: []string{"coingecko"}},
	}, detector.DefaultConfig(), watched, providerFor)
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	if jobs[0].Namespace() != "Crypto-Price-DoubleDownAlert" {
		t.Errorf("unexpected namespace %q", jobs[0].Namespace())
	}
	if jobs[0].Kind.Name() != detector.KindDrawdown || len(jobs[0].Weekdays) != 2 {
		t.Errorf("unexpected first job %+v", jobs[0])
	}
	if len(jobs[0].Symbols) != 1 || jobs[0].Symbols[0].Name() != "bitcoin" {
		t.Errorf("unexpected crypto symbols %v", jobs[0].Symbols)
	}

	if jobs[1].Names.Alert != "fluctuation" || len(jobs[1].Weekdays) != 7 {
		t.Errorf("unexpected second job %+v", jobs[1])
	}
	if len(jobs[1].Symbols) != 1 || jobs[1].Symbols[0].Name() != "AAPL" {
		t.Errorf("unexpected stock symbols %v", jobs[1].Symbols)
	}
	if len(metrics) != 2 || metrics[0] != "Price" || metrics[1] != "Close" {
		t.Errorf("providers built for %v", metrics)
	}

	_, err = BuildJobs([]config.JobConfig{{Category: "X", Alert: "spike"}}, detector.DefaultConfig(), nil, providerFor)
	if err == nil {
		t.Error("expected error for unknown alert kind")
	}
}
