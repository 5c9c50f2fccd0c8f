package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageSessions is the page name of the session list.
const PageSessions = "sessions"

// SessionsView lists the local sessions and whether their daemon runs.
type SessionsView struct {
	*tview.Table
	theme *ui.Theme
}

// NewSessionsView creates the session list.
func NewSessionsView(theme *ui.Theme) *SessionsView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetTitle(" Sessions ")
	table.SetTitleColor(theme.TitleColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	return &SessionsView{Table: table, theme: theme}
}

func (v *SessionsView) Name() string                 { return PageSessions }
func (v *SessionsView) Title() string                { return "Sessions" }
func (v *SessionsView) FocusTarget() tview.Primitive { return v.Table }
func (v *SessionsView) Hints() []ui.MenuHint         { return []ui.MenuHint{{Key: "Esc", Description: "Back"}} }

// Update renders the sessions. The current one is marked with '*'.
func (v *SessionsView) Update(sessions []rpc.SessionInfo) {
	v.Clear()
	for col, h := range []string{"  NAME", " DAEMON", " PATH"} {
		v.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(v.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}
	for i, s := range sessions {
		mark := " "
		if s.Current {
			mark = "*"
		}
		daemon := "stopped"
		if s.DaemonRunning {
			daemon = "running"
		}
		v.SetCell(i+1, 0, tview.NewTableCell(mark+" "+escape(s.Name)).SetTextColor(v.theme.FgColor))
		v.SetCell(i+1, 1, tview.NewTableCell(" "+daemon).SetTextColor(v.theme.FgColor))
		v.SetCell(i+1, 2, tview.NewTableCell(" "+escape(s.Path)).SetExpansion(1).SetTextColor(v.theme.FgColor))
	}
}
