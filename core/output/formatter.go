// Package output renders quotes and comparisons for people and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"premium-rating/core/determinism"
	"premium-rating/core/quoting"
)

// Format represents output format type
type Format string

const (
	// FormatCLI is a human-readable CLI table
	FormatCLI Format = "cli"

	// FormatJSON is machine-readable JSON
	FormatJSON Format = "json"

	// FormatMarkdown is a markdown report
	FormatMarkdown Format = "markdown"
)

// Formatter produces output in a specific format
type Formatter interface {
	// Format returns the format type
	Format() Format

	// Render produces output for the given report
	Render(w io.Writer, r *Report) error
}

// Report is what gets rendered: one quote, or a comparison across carriers
type Report struct {
	ComparisonID string            `json:"comparison_id,omitempty"`
	AsOf         string            `json:"as_of,omitempty"`
	Quotes       []quoting.Quote   `json:"quotes"`
	Failures     []quoting.Failure `json:"failures,omitempty"`
}

// SingleQuote wraps one quote as a report
func SingleQuote(q quoting.Quote) *Report {
	return &Report{Quotes: []quoting.Quote{q}}
}

// FromComparison wraps a comparison as a report, cheapest first
func FromComparison(c *quoting.Comparison) *Report {
	quotes := append([]quoting.Quote(nil), c.Quotes...)
	quoting.SortByPremium(quotes)
	return &Report{
		ComparisonID: c.ID,
		AsOf:         c.AsOf,
		Quotes:       quotes,
		Failures:     c.Failures,
	}
}

// Registry manages formatter registration
type Registry struct {
	formatters map[Format]Formatter
}

// NewRegistry returns a registry holding the built-in formatters
func NewRegistry() *Registry {
	r := &Registry{formatters: make(map[Format]Formatter)}
	r.Register(cliFormatter{})
	r.Register(jsonFormatter{})
	r.Register(markdownFormatter{})
	return r
}

// Register adds or replaces a formatter
func (r *Registry) Register(f Formatter) {
	r.formatters[f.Format()] = f
}

// Get returns the formatter for a format name
func (r *Registry) Get(format string) (Formatter, error) {
	f, ok := r.formatters[Format(strings.ToLower(format))]
	if !ok {
		return nil, fmt.Errorf("unknown output format %q (want one of %s)", format, strings.Join(r.names(), ", "))
	}
	return f, nil
}

func (r *Registry) names() []string {
	out := make([]string, 0, len(r.formatters))
	for f := range r.formatters {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

type jsonFormatter struct{}

func (jsonFormatter) Format() Format { return FormatJSON }

func (jsonFormatter) Render(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if r.ComparisonID == "" && len(r.Quotes) == 1 {
		return enc.Encode(r.Quotes[0])
	}
	return enc.Encode(r)
}

const boxWidth = 74

type cliFormatter struct{}

func (cliFormatter) Format() Format { return FormatCLI }

func (cliFormatter) Render(w io.Writer, r *Report) error {
	var b strings.Builder
	rule := strings.Repeat("─", boxWidth)

	if r.ComparisonID != "" {
		fmt.Fprintf(&b, "Comparison %s (as of %s)\n\n", r.ComparisonID, r.AsOf)
		fmt.Fprintf(&b, "┌%s┐\n", rule)
		fmt.Fprintf(&b, "│ %-20s %-12s %-12s %12s %12s │\n", "carrier", "source", "mode", "modal", "annual")
		fmt.Fprintf(&b, "├%s┤\n", rule)
		for _, q := range r.Quotes {
			fmt.Fprintf(&b, "│ %-20s %-12s %-12s %12s %12s │\n",
				q.CarrierID, q.Source, q.Mode,
				determinism.FormatCurrency(q.ModalPremium),
				determinism.FormatCurrency(q.AnnualPremium))
		}
		fmt.Fprintf(&b, "└%s┘\n", rule)
		if len(r.Failures) > 0 {
			b.WriteString("\nNot quoted:\n")
			for _, f := range r.Failures {
				fmt.Fprintf(&b, "  %-20s %s\n", f.CarrierID, f.Code)
			}
		}
		_, err := io.WriteString(w, b.String())
		return err
	}

	for _, q := range r.Quotes {
		fmt.Fprintf(&b, "%s  %s  plan %s (v%s)\n", q.CarrierID, q.ProductType, q.PlanID, q.PlanVersion)
		for _, c := range q.Coverages {
			fmt.Fprintf(&b, "  %s: %s\n", c.Name, c.Value)
		}
		fmt.Fprintf(&b, "┌%s┐\n", rule)
		for _, l := range q.Lines {
			fmt.Fprintf(&b, "│ %-22s %-34s %14s │\n", l.Label, l.Detail, l.Amount)
		}
		fmt.Fprintf(&b, "└%s┘\n", rule)
		if q.Reference != "" {
			fmt.Fprintf(&b, "reference %s\n", q.Reference)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type markdownFormatter struct{}

func (markdownFormatter) Format() Format { return FormatMarkdown }

func (markdownFormatter) Render(w io.Writer, r *Report) error {
	var b strings.Builder
	if r.ComparisonID != "" {
		fmt.Fprintf(&b, "## Comparison as of %s\n\n", r.AsOf)
		b.WriteString("| Carrier | Source | Mode | Modal premium | Annual premium |\n")
		b.WriteString("|---|---|---|---:|---:|\n")
		for _, q := range r.Quotes {
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
				q.CarrierID, q.Source, q.Mode,
				determinism.FormatCurrency(q.ModalPremium),
				determinism.FormatCurrency(q.AnnualPremium))
		}
		if len(r.Failures) > 0 {
			b.WriteString("\n**Not quoted**\n\n")
			for _, f := range r.Failures {
				fmt.Fprintf(&b, "- %s: `%s` %s\n", f.CarrierID, f.Code, f.Message)
			}
		}
	} else {
		for _, q := range r.Quotes {
			fmt.Fprintf(&b, "## %s %s\n\n", q.CarrierID, q.ProductType)
			b.WriteString("| Item | Detail | Amount |\n")
			b.WriteString("|---|---|---:|\n")
			for _, l := range q.Lines {
				fmt.Fprintf(&b, "| %s | %s | %s |\n", l.Label, l.Detail, l.Amount)
			}
			b.WriteString("\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}
