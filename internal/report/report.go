// Package report renders comparison and merge results for humans and
// machines. Output is deterministic: the same inputs render byte-identical
// reports, so runs can be diffed and checked into review threads.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/planweave/planweave/internal/compare"
	"github.com/planweave/planweave/internal/merge"
)

// Format selects the output encoding.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a format name from user input.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatMarkdown, FormatJSON, FormatYAML:
		return Format(s), nil
	case "":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want markdown, json, or yaml)", s)
	}
}

// DeviationReport is the rendered result of comparing two bundles.
type DeviationReport struct {
	Reference   string              `json:"reference" yaml:"reference"`
	Candidate   string              `json:"candidate" yaml:"candidate"`
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Counts      SeverityCounts      `json:"counts" yaml:"counts"`
	Deviations  []compare.Deviation `json:"deviations" yaml:"deviations"`
}

// SeverityCounts tallies deviations per severity tier.
type SeverityCounts struct {
	High   int `json:"high" yaml:"high"`
	Medium int `json:"medium" yaml:"medium"`
	Low    int `json:"low" yaml:"low"`
}

// NewDeviationReport assembles a report from a deviation list.
func NewDeviationReport(reference, candidate string, devs []compare.Deviation) *DeviationReport {
	r := &DeviationReport{
		Reference:   reference,
		Candidate:   candidate,
		GeneratedAt: time.Now().UTC(),
		Deviations:  devs,
	}
	for _, d := range devs {
		switch d.Severity {
		case compare.SeverityHigh:
			r.Counts.High++
		case compare.SeverityMedium:
			r.Counts.Medium++
		default:
			r.Counts.Low++
		}
	}
	return r
}

// Render writes the report in the requested format.
func (r *DeviationReport) Render(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, r)
	case FormatYAML:
		return renderYAML(w, r)
	default:
		return r.renderMarkdown(w)
	}
}

func (r *DeviationReport) renderMarkdown(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Deviation Report\n\n")
	fmt.Fprintf(&b, "Reference: %s\n", r.Reference)
	fmt.Fprintf(&b, "Candidate: %s\n\n", r.Candidate)

	if len(r.Deviations) == 0 {
		b.WriteString("No deviations found. The bundles are semantically aligned.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%d deviation(s): %d high, %d medium, %d low\n\n",
		len(r.Deviations), r.Counts.High, r.Counts.Medium, r.Counts.Low)

	b.WriteString("| ID | Severity | Category | Path | Description |\n")
	b.WriteString("|----|----------|----------|------|-------------|\n")
	for _, d := range r.Deviations {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			d.ID, d.SeverityLabel, d.Category, d.Path, escapeCell(d.Description))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// MergeReport is the rendered result of a three-way merge.
type MergeReport struct {
	Strategy    merge.Strategy   `json:"strategy" yaml:"strategy"`
	GeneratedAt time.Time        `json:"generated_at" yaml:"generated_at"`
	Conflicts   []merge.Conflict `json:"conflicts" yaml:"conflicts"`
	Deferred    int              `json:"deferred" yaml:"deferred"`
}

// NewMergeReport assembles a report from a merge's conflict list.
func NewMergeReport(strategy merge.Strategy, conflicts []merge.Conflict) *MergeReport {
	return &MergeReport{
		Strategy:    strategy,
		GeneratedAt: time.Now().UTC(),
		Conflicts:   conflicts,
		Deferred:    merge.CountDeferred(conflicts),
	}
}

// Render writes the report in the requested format.
func (r *MergeReport) Render(w io.Writer, format Format) error {
	switch format {
	case FormatJSON:
		return renderJSON(w, r)
	case FormatYAML:
		return renderYAML(w, r)
	default:
		return r.renderMarkdown(w)
	}
}

func (r *MergeReport) renderMarkdown(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# Merge Report\n\n")
	fmt.Fprintf(&b, "Strategy: %s\n\n", r.Strategy)

	if len(r.Conflicts) == 0 {
		b.WriteString("Clean merge: no conflicting paths.\n")
		_, err := io.WriteString(w, b.String())
		return err
	}

	fmt.Fprintf(&b, "%d conflict(s), %d deferred\n\n", len(r.Conflicts), r.Deferred)

	b.WriteString("| Path | Base | Ours | Theirs | Outcome |\n")
	b.WriteString("|------|------|------|--------|--------|\n")
	for _, c := range r.Conflicts {
		outcome := c.Resolution
		if c.Deferred {
			outcome = "DEFERRED"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			c.Path, formatValue(c.Base), formatValue(c.Ours), formatValue(c.Theirs), outcome)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(v)
}

// formatValue renders a conflict value for a table cell. Entity values would
// be unreadable inline, so they collapse to a marker.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "(absent)"
	case string:
		return escapeCell(val)
	case []string:
		return escapeCell(strings.Join(val, ", "))
	case float64:
		return fmt.Sprintf("%.2f", val)
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return "(entity)"
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
