package ui

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
)

// SessionData holds session information for display.
type SessionData struct {
	Session    string
	UserID     string
	Homeserver string
	State      string
	Syncing    bool
	Rooms      int64
	Events     int64
	Uptime     time.Duration
}

// SessionInfo displays session metadata in the header.
type SessionInfo struct {
	*tview.TextView
	theme *Theme
}

// NewSessionInfo creates a new session info panel.
func NewSessionInfo(theme *Theme) *SessionInfo {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)

	return &SessionInfo{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the session info.
func (si *SessionInfo) Update(data *SessionData) {
	si.Clear()
	if data == nil {
		return
	}
	_, _ = fmt.Fprint(si, si.render(data))
}

func (si *SessionInfo) render(data *SessionData) string {
	fg := colorName(si.theme.FgColor)
	val := colorName(si.theme.CounterColor)

	user := data.UserID
	if user == "" {
		user = "-"
	}
	state := data.State
	if data.Syncing {
		state += " ~"
	}

	rows := [][2]string{
		{"Session:", data.Session},
		{"User:", user},
		{"Server:", orDash(data.Homeserver)},
		{"State:", state},
		{"Rooms:", humanize.Comma(data.Rooms)},
		{"Events:", humanize.Comma(data.Events)},
		{"Uptime:", formatDuration(data.Uptime)},
	}
	var out string
	for i, r := range rows {
		if i > 0 {
			out += "\n"
		}
		out += fmt.Sprintf("[%s::b]%-8s[-:-:-] [%s]%s[-]", fg, r[0], val, tview.Escape(r[1]))
	}
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	switch {
	case h >= 24:
		return fmt.Sprintf("%dd%dh", h/24, h%24)
	case h > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
