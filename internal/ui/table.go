package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// columnGap separates table columns
const columnGap = 2

// Table is a plain column-aligned listing.
type Table struct {
	Headers []string
	Rows    [][]string
}

// NewTable creates a table with the given column titles.
func NewTable(headers ...string) *Table {
	return &Table{Headers: headers}
}

// AddRow appends a row. Missing cells render empty, extra cells are dropped.
func (t *Table) AddRow(cells ...string) *Table {
	row := make([]string, len(t.Headers))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	return t
}

// Render aligns the columns on their widest cell without borders. Cells may
// already be styled.
func (t *Table) Render() string {
	cell := lipgloss.NewStyle().PaddingRight(columnGap)
	header := TableHeaderStyle.PaddingRight(columnGap)
	last := len(t.Headers) - 1

	return table.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderHeader(false).
		BorderColumn(false).
		BorderRow(false).
		Headers(t.Headers...).
		Rows(t.Rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := cell
			if row == table.HeaderRow {
				style = header
			}
			if col == last {
				style = style.UnsetPaddingRight()
			}
			return style
		}).
		Render()
}

// String implements fmt.Stringer
func (t *Table) String() string {
	return t.Render()
}

// Switch renders an on/off state with its marker.
func Switch(on bool) string {
	if on {
		return OnStyle.Render(OnMarker + " on")
	}
	return OffStyle.Render(OffMarker + " off")
}
