// Package templates turns alert states into notification text.
package templates

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/rewired-gh/alertbell/internal/detector"
	"github.com/rewired-gh/alertbell/internal/models"
)

const (
	FormatText = "text"
	FormatHTML = "html"
)

// Template renders one alert per symbol plus the surrounding title and body.
type Template interface {
	// Title returns the subject line of a batch of alerts.
	Title() string
	// Apply renders the alert for symbol. old is the previously stored state
	// and may be nil.
	Apply(symbol models.Symbol, current, old detector.State, latest float64) string
	// WrapBody wraps the joined alerts of a batch.
	WrapBody(body string) string
}

// Names holds the informational labels shown in every alert.
type Names struct {
	Category    string
	Alert       string
	Metric      string
	LinkPattern string // "{name}" is replaced with the symbol name
}

// New returns the template for format ("text" or "html").
func New(format string, names Names) (Template, error) {
	switch format {
	case FormatText, "":
		return &Text{Names: names}, nil
	case FormatHTML:
		return &HTML{Names: names}, nil
	default:
		return nil, fmt.Errorf("unknown template format %q", format)
	}
}

func (n Names) Title() string {
	return fmt.Sprintf("📈🚨📉 %s %s %s", n.Category, n.Metric, n.Alert)
}

func (n Names) link(symbol models.Symbol) string {
	return strings.ReplaceAll(n.LinkPattern, "{name}", symbol.Name())
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// withStrategy appends the symbol's strategy note when it has one.
func withStrategy(alert string, symbol models.Symbol, escape func(string) string) string {
	s, ok := symbol.(models.Strategist)
	if !ok || s.Strategy() == "" {
		return alert
	}
	return strings.TrimRight(alert, " \n") + "\nStrategy: " + escape(s.Strategy()) + "\n"
}

// Text renders plain text alerts.
type Text struct {
	Names
}

func (t *Text) Apply(symbol models.Symbol, current, _ detector.State, latest float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ⚠lert\n", symbol.Name())
	fmt.Fprintf(&b, "%s\n", strings.TrimRight(current.Text(), " \n"))
	fmt.Fprintf(&b, "Latest %s: %s\n", t.Metric, formatValue(latest))
	fmt.Fprintf(&b, "%s\n", t.link(symbol))
	return withStrategy(b.String(), symbol, func(s string) string { return s })
}

func (t *Text) WrapBody(body string) string {
	return body
}

// HTML renders alerts for HTML mail bodies.
type HTML struct {
	Names
}

func (h *HTML) Apply(symbol models.Symbol, current, _ detector.State, latest float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<a href=\"%s\">%s ⚠lert</a>\n", html.EscapeString(h.link(symbol)), html.EscapeString(symbol.Name()))
	fmt.Fprintf(&b, "%s\n", strings.TrimRight(current.HTML(), " \n"))
	fmt.Fprintf(&b, "Latest %s: %s\n", html.EscapeString(h.Metric), formatValue(latest))
	return withStrategy(b.String(), symbol, html.EscapeString)
}

func (h *HTML) WrapBody(body string) string {
	return "<pre><font face=\"Consolas, Lucida Console, Fira Code, Courier New, Courier, monospace\">\n" +
		body + "\n</font></pre>\n"
}
