package views

import (
	"fmt"
	"strings"

	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageHelp is the page name of the help view.
const PageHelp = "help"

// HelpView displays the key binding and command reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	_, _ = fmt.Fprint(hv, hv.render())
	return hv
}

func (hv *HelpView) Name() string                 { return PageHelp }
func (hv *HelpView) Title() string                { return "Help" }
func (hv *HelpView) FocusTarget() tview.Primitive { return hv.TextView }
func (hv *HelpView) Hints() []ui.MenuHint         { return []ui.MenuHint{{Key: "Esc", Description: "Back"}} }

type helpSection struct {
	title string
	keys  [][2]string
}

var helpSections = []helpSection{
	{"Global", [][2]string{
		{":", "Command mode"},
		{"/", "Filter rooms"},
		{"?", "Help"},
		{"Esc", "Cancel / go back"},
		{"q", "Quit (on the room list)"},
		{"Ctrl-C", "Quit immediately"},
	}},
	{"Room list", [][2]string{
		{"Enter", "Open room or accept invitation"},
		{"Tab", "Cycle filter: all, unread, people, rooms, invites"},
		{"1-9", "Open the Nth room"},
		{"i", "Room details and permalink QR"},
		{"j/k", "Move down / up"},
	}},
	{"Room", [][2]string{
		{"i", "Focus composer (Markdown is rendered)"},
		{"Enter", "Expand a group, retry a failed message"},
		{"PgUp", "Load older messages"},
		{"I", "Room details"},
		{"Esc", "Leave composer / back to rooms"},
	}},
	{"Commands", [][2]string{
		{":room <name>", "Open a room by name, alias or id"},
		{":join <#alias|!id> [via...]", "Join a room"},
		{":open <uri>", "Open a matrix.to, matrix: or mxt:// link"},
		{":search <query>", "Search messages (:s)"},
		{":filter <kind> [text]", "Filter the room list"},
		{":read", "Mark the open room as read"},
		{":retry", "Resend the last failed message"},
		{":older", "Load older messages"},
		{":info", "Details of the open room"},
		{":login / :logout", "Sign in or out"},
		{":sessions", "List local sessions"},
		{":quit", "Quit (:q)"},
	}},
}

func (hv *HelpView) render() string {
	kc := ui.ColorTag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range helpSections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.title)
		for _, k := range s.keys {
			fmt.Fprintf(&b, "  %s%-30s[-] %s\n", kc, escape(k[0]), k[1])
		}
	}
	return b.String()
}
