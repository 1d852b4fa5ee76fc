package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/medtracker/internal/theme"
)

// chromeLines is the header bar plus the status bar.
const chromeLines = 2

// Frame splits the terminal into a one-line header, the body and a
// one-line status bar.
type Frame struct {
	Width  int
	Height int
}

// NewFrame creates a Frame for a terminal of the given size.
func NewFrame(width, height int) Frame {
	return Frame{Width: width, Height: height}
}

// BodyWidth returns the width available to the active view.
func (f Frame) BodyWidth() int {
	return f.Width
}

// BodyHeight returns the lines left for the active view. It never drops
// below one.
func (f Frame) BodyHeight() int {
	return max(f.Height-chromeLines, 1)
}

// Header renders the title on the left and the poll status on the right.
func (f Frame) Header(title, status string) string {
	return bar(theme.HeaderStyle, title, status, f.Width)
}

// StatusBar renders a message or key hints on the left.
func (f Frame) StatusBar(text string) string {
	return bar(theme.StatusBarStyle, text, "", f.Width)
}

// Compose stacks the header, the body and the status bar.
func (f Frame) Compose(header, body, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, body, statusBar)
}

// bar lays out left and right segments on a single line of exactly width
// cells. The right segment is dropped first when the line is too narrow,
// then the left one is cut.
func bar(style lipgloss.Style, left, right string, width int) string {
	if width <= 0 {
		return ""
	}

	l := style.Render(left)
	r := ""
	if right != "" {
		r = style.Render(right)
	}
	if lipgloss.Width(l)+lipgloss.Width(r) > width {
		r = ""
	}
	if lipgloss.Width(l) > width {
		l = style.MaxWidth(width).Render(left)
	}

	gap := width - lipgloss.Width(l) - lipgloss.Width(r)
	if gap <= 0 {
		return l + r
	}

	// The filler carries only the background; padding here would overflow.
	fill := lipgloss.NewStyle().
		Background(style.GetBackground()).
		Render(strings.Repeat(" ", gap))

	return l + fill + r
}

// RenderTabs renders view names for the header title, highlighting the
// active one. A negative active index highlights nothing.
func RenderTabs(names []string, active int) string {
	on := lipgloss.NewStyle().
		Bold(true).
		Underline(true).
		Background(theme.HeaderStyle.GetBackground()).
		Foreground(theme.ColorWhite)
	off := lipgloss.NewStyle().
		Background(theme.HeaderStyle.GetBackground()).
		Foreground(theme.ColorSubtle)

	parts := make([]string, len(names))
	for i, n := range names {
		if i == active {
			parts[i] = on.Render(n)
		} else {
			parts[i] = off.Render(n)
		}
	}
	return strings.Join(parts, off.Render("  "))
}
