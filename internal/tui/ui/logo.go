package ui

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/rivo/tview"
)

var logoArt = []string{
	" ╔╦╗═╗ ╦╔╦╗",
	" ║║║╔╩╦╝ ║ ",
	" ╩ ╩╩ ╚═ ╩ ",
}

// Logo shows the mxt banner, tinted by the daemon's sync state.
type Logo struct {
	*tview.TextView
	theme *Theme
	state status.State
}

// NewLogo creates a logo for a daemon that has not reported yet.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)

	l := &Logo{TextView: tv, theme: theme}
	l.SetText(l.render())
	return l
}

// SetState re-tints the logo. Unchanged states are ignored.
func (l *Logo) SetState(s status.State) {
	if s == l.state {
		return
	}
	l.state = s
	l.SetText(l.render())
}

func (l *Logo) render() string {
	color := colorName(l.stateColor())
	var b strings.Builder
	for _, line := range logoArt {
		_, _ = fmt.Fprintf(&b, "[%s::b]%s[-:-:-]\n", color, line)
	}
	caption := "[matrix]"
	if l.state != "" && l.state != status.Ready {
		caption = strings.ToLower(strings.ReplaceAll(string(l.state), "_", " "))
	}
	_, _ = fmt.Fprintf(&b, "[%s]%s[-:-:-]", colorName(l.theme.FgColor), tview.Escape(caption))
	return b.String()
}

func (l *Logo) stateColor() tcell.Color {
	switch l.state {
	case status.Reconnecting, status.Degraded, status.Connecting, status.Syncing:
		return l.theme.FlashWarnColor
	case status.Error, status.AuthRequired:
		return l.theme.FlashErrColor
	}
	return l.theme.TitleColor
}
