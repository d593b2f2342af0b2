package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Counts, hours and percentages are
// right-aligned so digits line up.
type column struct {
	title   string
	numeric bool
}

func textCol(title string) column { return column{title: title} }

func numCol(title string) column { return column{title: title, numeric: true} }

// renderTable draws rows under cols. Short rows are padded; a non-empty
// footer is rendered as a totals row.
func renderTable(cols []column, rows [][]string, footer []string) string {
	if len(cols) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(padRow(nil, cols, func(i int) string { return cols[i].title }))
	for _, row := range rows {
		tw.AppendRow(padRow(row, cols, nil))
	}
	if len(footer) > 0 {
		tw.AppendFooter(padRow(footer, cols, nil))
	}

	configs := make([]table.ColumnConfig, len(cols))
	for i, col := range cols {
		align := text.AlignLeft
		if col.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:           i + 1,
			Align:            align,
			AlignHeader:      text.AlignLeft,
			AlignFooter:      align,
			WidthMax:         48,
			WidthMaxEnforcer: text.WrapSoft,
		}
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(values []string, cols []column, fill func(int) string) table.Row {
	row := make(table.Row, len(cols))
	for i := range cols {
		switch {
		case fill != nil:
			row[i] = fill(i)
		case i < len(values):
			row[i] = values[i]
		default:
			row[i] = ""
		}
	}
	return row
}
