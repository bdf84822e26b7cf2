// Package format renders CLI listings as terminal or Markdown tables.
package format

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Mode controls the output format.
type Mode int

const (
	ASCII    Mode = iota // box-drawn terminal table
	Markdown             // GitHub-flavoured Markdown table
)

// ParseMode maps "table" (or "") and "markdown" to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case "", "table", "ascii":
		return ASCII, nil
	case "markdown", "md":
		return Markdown, nil
	}
	return ASCII, fmt.Errorf("unknown output format %q (want table or markdown)", s)
}

// ColumnAlign specifies the horizontal alignment for a column.
type ColumnAlign int

const (
	AlignDefault ColumnAlign = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// ColumnConfig controls per-column formatting.
type ColumnConfig struct {
	Number   int // 1-based
	Align    ColumnAlign
	MaxWidth int // 0 = unlimited
}

// Table accumulates rows and renders them in its Mode.
type Table struct {
	writer table.Writer
	mode   Mode
}

// NewTable returns an empty table rendering in m.
func NewTable(m Mode) *Table {
	w := table.NewWriter()
	if m == ASCII {
		w.SetStyle(table.StyleLight)
	}
	return &Table{writer: w, mode: m}
}

// Header sets the column headers.
func (t *Table) Header(cols ...string) {
	row := make(table.Row, len(cols))
	for i, c := range cols {
		row[i] = c
	}
	t.writer.AppendHeader(row)
}

// Row appends a data row.
func (t *Table) Row(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendRow(row)
}

// Footer appends a footer row.
func (t *Table) Footer(vals ...any) {
	row := make(table.Row, len(vals))
	copy(row, vals)
	t.writer.AppendFooter(row)
}

// Columns applies per-column configuration.
func (t *Table) Columns(cfgs ...ColumnConfig) {
	out := make([]table.ColumnConfig, len(cfgs))
	for i, c := range cfgs {
		out[i] = table.ColumnConfig{
			Number:   c.Number,
			Align:    toTextAlign(c.Align),
			WidthMax: c.MaxWidth,
		}
	}
	t.writer.SetColumnConfigs(out)
}

// Len returns the number of data rows.
func (t *Table) Len() int { return t.writer.Length() }

// String renders the table.
func (t *Table) String() string {
	if t.mode == Markdown {
		return t.writer.RenderMarkdown()
	}
	return t.writer.Render()
}

func toTextAlign(a ColumnAlign) text.Align {
	switch a {
	case AlignLeft:
		return text.AlignLeft
	case AlignRight:
		return text.AlignRight
	case AlignCenter:
		return text.AlignCenter
	default:
		return text.AlignDefault
	}
}
