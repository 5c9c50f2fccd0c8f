package views

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
)

// now is replaced in tests.
var now = time.Now

var escape = tview.Escape

// formatTimestamp shows the time for today's messages and the date otherwise.
func formatTimestamp(ms int64) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms)
	n := now()
	switch {
	case t.Year() == n.Year() && t.YearDay() == n.YearDay():
		return t.Format("15:04")
	case t.Year() == n.Year():
		return t.Format("Jan 02")
	}
	return t.Format("2006-01-02")
}

// formatDay labels a day separator.
func formatDay(ms int64) string {
	t := time.UnixMilli(ms)
	n := now()
	y, m, d := n.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	switch {
	case !t.Before(today):
		return "Today"
	case !t.Before(today.AddDate(0, 0, -1)):
		return "Yesterday"
	case t.Year() == n.Year():
		return t.Format("Monday, January 2")
	}
	return t.Format("Monday, January 2 2006")
}

// formatAgo renders a relative time such as "3 minutes ago".
func formatAgo(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return humanize.RelTime(time.UnixMilli(ms), now(), "ago", "from now")
}

// renderQR converts a string to a compact QR code using Unicode half-block
// characters, two bitmap rows per terminal line.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	var sb strings.Builder
	for y := 0; y < len(bitmap); y += 2 {
		sb.WriteString("  ")
		for x := range bitmap[y] {
			top := bitmap[y][x]
			bot := y+1 < len(bitmap) && bitmap[y+1][x]
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top:
				sb.WriteRune('▀')
			case bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
