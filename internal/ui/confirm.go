package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Confirm displays a warning box on out and asks the user to type phrase on
// in. Returns true if the user typed it, false otherwise.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{"", WarningTitleStyle.Render(banner("⚠", "WARNING", title)), ""}
	lines = append(lines, boxLines(warnings)...)
	lines = append(lines, "")
	box := WarningBoxStyle(width).Render(strings.Join(lines, "\n"))

	fmt.Fprintln(out, box)
	fmt.Fprintln(out)

	fmt.Fprint(out, WarningTitleStyle.Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && input == "" {
		fmt.Fprintln(out)
		return false
	}

	fmt.Fprintln(out)
	if strings.TrimSpace(input) == phrase {
		return true
	}

	cancelStyle := lipgloss.NewStyle().Foreground(MutedColor)
	fmt.Fprintln(out, cancelStyle.Render("  Operation cancelled."))
	return false
}

// boxLines renders warnings as bullet lines.
func boxLines(items []string) []string {
	style := lipgloss.NewStyle().Foreground(TextColor)
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, style.Render("   • "+item))
	}
	return lines
}
