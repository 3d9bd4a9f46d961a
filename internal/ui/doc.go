// Package ui renders omctl output with lipgloss: command headers, result
// boxes, column-aligned tables, a confirmation prompt and the Bubble Tea
// watch view for live events.
//
// Commands print through a Printer so that output can be captured in tests:
//
//	p := ui.NewPrinter(cmd.OutOrStdout())
//	t := ui.NewTable("ID", "NAME", "STATE")
//	t.AddRow("3", "Kitchen", ui.Switch(true))
//	p.PrintTable(t)
package ui
