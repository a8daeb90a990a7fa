package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type tone int

const (
	toneInfo tone = iota
	toneOK
	toneWarn
	toneError
)

// painter colors output only when it goes to a terminal.
type painter struct {
	enabled bool
}

func newPainter(w io.Writer) painter {
	return painter{enabled: isTerminal(w)}
}

func (p painter) paint(t tone, s string) string {
	if !p.enabled {
		return s
	}
	var c *color.Color
	switch t {
	case toneOK:
		c = color.New(color.FgGreen)
	case toneWarn:
		c = color.New(color.FgYellow)
	case toneError:
		c = color.New(color.FgRed, color.Bold)
	default:
		c = color.New(color.FgCyan)
	}
	c.EnableColor()
	return c.Sprint(s)
}

const statusLabelWidth = 16

// statusLine renders "  Label:          value" with the value colored by tone.
func (p painter) statusLine(label string, t tone, value string) string {
	return fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", p.paint(t, value))
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

const markdownWidth = 100

// renderMarkdown renders md for the terminal. Non-terminal output uses the
// plain style so pipes and tests see no escape codes.
func renderMarkdown(w io.Writer, md string) string {
	md = strings.TrimSpace(md)
	if md == "" {
		return ""
	}
	style := "notty"
	if isTerminal(w) {
		style = "dark"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(markdownWidth),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimRight(out, "\n")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
