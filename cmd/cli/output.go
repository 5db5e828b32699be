package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"fractalscan/app"
	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"
	"fractalscan/internal/report"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"gopkg.in/yaml.v3"
)

// OutputFormat selects how scan results are printed
type OutputFormat string

const (
	TableOut    OutputFormat = "table"
	JSONOut     OutputFormat = "json"
	YAMLOut     OutputFormat = "yaml"
	MarkdownOut OutputFormat = "markdown"
)

var (
	alignedColor = color.New(color.FgGreen, color.Bold)
	seekingColor = color.New(color.FgYellow)
	alertColor   = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.FgHiBlack)
)

// ParseOutputFormat accepts table, json, yaml and markdown (or md)
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return TableOut, nil
	case "json":
		return JSONOut, nil
	case "yaml", "yml":
		return YAMLOut, nil
	case "markdown", "md":
		return MarkdownOut, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, json, yaml or markdown)", s)
	}
}

// resultView is the serialized shape of one result
type resultView struct {
	ID    string          `json:"id"`
	Scan  *fractal.Record `json:"scan,omitempty"`
	Error string          `json:"error,omitempty"`
}

func views(results []app.BatchResult) []resultView {
	out := make([]resultView, len(results))
	for i, r := range results {
		out[i] = resultView{ID: r.ConversationID.String(), Scan: r.Record}
		if r.Err != nil {
			out[i].Error = errors.Message(r.Err)
		}
	}
	return out
}

// WriteResults prints results in the requested format
func WriteResults(w io.Writer, results []app.BatchResult, format OutputFormat) error {
	switch format {
	case JSONOut:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(views(results))
	case YAMLOut:
		return writeYAML(w, views(results))
	case MarkdownOut:
		return writeMarkdown(w, results)
	default:
		return writeTables(w, results)
	}
}

// writeYAML goes through JSON so keys keep their snake_case names
func writeYAML(w io.Writer, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return err
	}
	return enc.Close()
}

func writeMarkdown(w io.Writer, results []app.BatchResult) error {
	for _, r := range results {
		if r.Err != nil {
			if _, err := fmt.Fprintf(w, "# %s\n\nScan failed: %s\n\n", r.ConversationID, errors.Message(r.Err)); err != nil {
				return err
			}
			continue
		}
		if _, err := w.Write(report.Markdown(r.Record)); err != nil {
			return err
		}
	}
	return nil
}

func writeTables(w io.Writer, results []app.BatchResult) error {
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if r.Err != nil {
			fmt.Fprintf(w, "%s  %s\n", r.ConversationID, alertColor.Sprint("FAILED: "+errors.Message(r.Err)))
			continue
		}
		if err := writeScanTable(w, r.Record); err != nil {
			return err
		}
	}
	return nil
}

func statusLabel(s fractal.Summary) string {
	if s.Status == fractal.StatusAligned {
		return alignedColor.Sprint(string(s.Status))
	}
	return seekingColor.Sprint(string(s.Status))
}

func writeScanTable(w io.Writer, rec *fractal.Record) error {
	s := rec.Summary
	fmt.Fprintf(w, "%s  %s  mode=%s messages=%d team=%d\n",
		rec.ConversationID, statusLabel(s), rec.Mode, s.MessageCount, s.TeamSize)
	if s.Alert {
		fmt.Fprintln(w, alertColor.Sprintf("ALERT fractal dimension %.2f > %.1f", s.FractalDimension, fractal.AlertThreshold))
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Tier", "Chaos", "Aligned"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, t := range rec.ActiveTiers() {
		aligned := dimColor.Sprint("-")
		if t.Aligned {
			aligned = alignedColor.Sprint("yes")
		}
		data = append(data, []string{strconv.Itoa(t.Tier), fmt.Sprintf("%.2f", t.Chaos), aligned})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "influence %.2f  dimension %.2f  pattern %.2f  participation %.2f  tier %d  health %.2f\n",
		rec.InfluenceScore, s.FractalDimension, s.PatternScore, s.ParticipationRipple, s.CurrentTier, s.TeamHealth)

	if len(s.SenderInfluence) > 0 {
		senders := make([]string, 0, len(s.SenderInfluence))
		for name := range s.SenderInfluence {
			senders = append(senders, name)
		}
		sort.Strings(senders)
		parts := make([]string, len(senders))
		for i, name := range senders {
			parts[i] = fmt.Sprintf("%s=%.2f", name, s.SenderInfluence[name])
		}
		fmt.Fprintln(w, dimColor.Sprint("senders: "+strings.Join(parts, " ")))
	}
	return nil
}
