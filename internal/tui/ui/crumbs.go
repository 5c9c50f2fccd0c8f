package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Crumbs is a breadcrumb bar showing the page stack.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a new breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)

	return &Crumbs{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the trail; the last component is the active crumb.
func (c *Crumbs) Update(stack []Component) {
	c.Clear()
	_, _ = fmt.Fprint(c, c.render(stack))
}

func (c *Crumbs) render(stack []Component) string {
	parts := make([]string, 0, len(stack))
	for i, comp := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]",
			colorName(fg), colorName(bg), attr, tview.Escape(crumbText(comp.Title()))))
	}
	return strings.Join(parts, " ")
}

// crumbText keeps long room names from pushing the trail off screen.
func crumbText(s string) string {
	const maxRunes = 24
	r := []rune(s)
	if len(r) <= maxRunes {
		return s
	}
	return string(r[:maxRunes-1]) + "…"
}

// colorName returns a tview-compatible color name string.
func colorName(c tcell.Color) string {
	for name, val := range tcell.ColorNames {
		if val == c {
			return name
		}
	}
	return fmt.Sprintf("#%06x", c.Hex())
}

// ColorTag returns the tview color tag for c, e.g. "[orange]".
func ColorTag(c tcell.Color) string {
	return "[" + colorName(c) + "]"
}
