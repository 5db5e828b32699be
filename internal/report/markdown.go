// Package report renders scan records as Markdown and HTML.
package report

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"fractalscan/domain/fractal"
	"fractalscan/internal/errors"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Format selects the report output
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts md, markdown and html. Empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	default:
		return "", errors.ValidationError(fmt.Sprintf("unknown report format %q (want md or html)", s))
	}
}

// ContentType returns the HTTP content type for the format
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/markdown; charset=utf-8"
}

// Render produces the report in the requested format
func Render(rec *fractal.Record, format Format) ([]byte, error) {
	md := Markdown(rec)
	switch format {
	case FormatMarkdown:
		return md, nil
	case FormatHTML:
		return ToHTML(md), nil
	default:
		return nil, errors.ValidationError(fmt.Sprintf("unknown report format %q", format))
	}
}

// Markdown writes the summary, the active tier table and sender influence
func Markdown(rec *fractal.Record) []byte {
	var b bytes.Buffer
	s := rec.Summary

	title := "Fractal scan"
	if rec.ConversationID != "" {
		title += ": " + rec.ConversationID.String()
	}
	fmt.Fprintf(&b, "# %s\n\n", title)

	if rec.ID != "" {
		fmt.Fprintf(&b, "Scan `%s`", rec.ID)
		if !rec.Fingerprint.IsEmpty() {
			fmt.Fprintf(&b, " over logs `%s`", rec.Fingerprint.Short())
		}
		b.WriteString("\n\n")
	}

	status := string(s.Status)
	if s.Status == fractal.StatusAligned {
		status = "**" + status + "**"
	}
	if s.Alert {
		fmt.Fprintf(&b, "> **Alert:** fractal dimension %.2f is above %.1f\n\n", s.FractalDimension, fractal.AlertThreshold)
	}

	b.WriteString("## Summary\n\n")
	b.WriteString("| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Status | %s |\n", status)
	fmt.Fprintf(&b, "| Branching mode | %s |\n", rec.Mode)
	fmt.Fprintf(&b, "| Messages | %d |\n", s.MessageCount)
	fmt.Fprintf(&b, "| Team size | %d |\n", s.TeamSize)
	fmt.Fprintf(&b, "| Influence score | %.2f |\n", rec.InfluenceScore)
	fmt.Fprintf(&b, "| Fractal dimension | %.2f |\n", s.FractalDimension)
	fmt.Fprintf(&b, "| Pattern score | %.2f |\n", s.PatternScore)
	fmt.Fprintf(&b, "| Participation ripple | %.2f |\n", s.ParticipationRipple)
	fmt.Fprintf(&b, "| Current tier | %d |\n", s.CurrentTier)
	fmt.Fprintf(&b, "| Aligned tiers | %d of %d active |\n", s.AlignedTiers, s.ActiveTiers)
	fmt.Fprintf(&b, "| Team health | %.2f |\n\n", s.TeamHealth)

	b.WriteString("## Active tiers\n\n")
	active := rec.ActiveTiers()
	if len(active) == 0 {
		b.WriteString("No tier has any branching variance.\n\n")
	} else {
		b.WriteString("| Tier | Chaos | Aligned |\n|---:|---:|:---:|\n")
		for _, t := range active {
			mark := ""
			if t.Aligned {
				mark = "yes"
			}
			fmt.Fprintf(&b, "| %d | %.2f | %s |\n", t.Tier, t.Chaos, mark)
		}
		b.WriteString("\n")
	}

	if len(s.SenderInfluence) > 0 {
		b.WriteString("## Sender influence\n\n")
		b.WriteString("| Sender | Branching |\n|---|---:|\n")
		for _, sender := range sortedSenders(s.SenderInfluence) {
			fmt.Fprintf(&b, "| %s | %.2f |\n", escapeCell(sender), s.SenderInfluence[sender])
		}
		b.WriteString("\n")
	}

	return b.Bytes()
}

// ToHTML converts Markdown with tables enabled
func ToHTML(md []byte) []byte {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	r := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.CompletePage, Title: "Fractal scan"})
	return markdown.ToHTML(md, p, r)
}

// sortedSenders orders by branching descending, then name
func sortedSenders(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool {
		if m[out[i]] != m[out[j]] {
			return m[out[i]] > m[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
