package ui

import "github.com/rivo/tview"

// MenuHint describes a keyboard shortcut for display in the menu bar.
type MenuHint struct {
	Key         string
	Description string
	Numeric     bool // true for 0-9 shortcuts (displayed in a different color)
}

// Component is a page of the TUI.
type Component interface {
	tview.Primitive
	// Name is the page id used by Pages.
	Name() string
	// Title is the breadcrumb label; it may change while the page is shown.
	Title() string
	Hints() []MenuHint
	// FocusTarget returns the widget that receives focus when the page is shown.
	FocusTarget() tview.Primitive
}
