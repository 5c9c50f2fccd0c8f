package views

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/mxt/internal/intent"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageInfo is the page name of the details view.
const PageInfo = "info"

// InfoView displays details of a room or a user with a scannable permalink.
type InfoView struct {
	*tview.TextView
	theme *ui.Theme
	title string
}

// NewInfoView creates a new details view.
func NewInfoView(theme *ui.Theme) *InfoView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)

	return &InfoView{
		TextView: tv,
		theme:    theme,
		title:    "Details",
	}
}

func (iv *InfoView) Name() string                 { return PageInfo }
func (iv *InfoView) Title() string                { return iv.title }
func (iv *InfoView) FocusTarget() tview.Primitive { return iv.TextView }

func (iv *InfoView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "j/k", Description: "Scroll"},
		{Key: "Esc", Description: "Back"},
	}
}

// ShowRoom renders room details.
func (iv *InfoView) ShowRoom(info *rpc.RoomInfo) {
	s := info.Summary
	kind := "Room"
	switch {
	case s.IsInvite():
		kind = "Invitation"
	case s.IsDirect:
		kind = "Direct chat"
	}
	encrypted := "no"
	if info.Encrypted {
		encrypted = "yes"
	}
	fields := [][2]string{
		{"Name", s.DisplayName},
		{"ID", s.ID},
		{"Alias", orDash(s.CanonicalAlias)},
		{"Topic", orDash(s.Topic)},
		{"Type", kind},
		{"Membership", s.Membership},
		{"Encrypted", encrypted},
		{"Members", humanize.Comma(info.MemberCount)},
		{"Last active", formatAgo(s.LastMessageAt)},
		{"Unread", unreadText(s.UnreadCount, s.NotificationCount, s.HighlightCount)},
	}
	if info.ReplacedBy != "" {
		fields = append(fields, [2]string{"Upgraded to", info.ReplacedBy})
	}
	iv.show(s.DisplayName, fields, info.Permalink)
}

// ShowUser renders a user's id and permalink.
func (iv *InfoView) ShowUser(userID string) {
	iv.show(userID, [][2]string{{"User", userID}}, intent.UserPermalink(userID))
}

func (iv *InfoView) show(title string, fields [][2]string, permalink string) {
	iv.title = title
	iv.Clear()
	iv.SetTitle(fmt.Sprintf(" %s ", escape(oneLine(title))))
	_, _ = fmt.Fprint(iv, iv.render(fields, permalink))
	iv.ScrollToBeginning()
}

func (iv *InfoView) render(fields [][2]string, permalink string) string {
	key := ui.ColorTag(iv.theme.FgColor)
	val := ui.ColorTag(iv.theme.CounterColor)

	var b strings.Builder
	b.WriteString("\n")
	for _, f := range fields {
		fmt.Fprintf(&b, " %s[::b]%-12s[-:-:-] %s%s[-]\n", key, f[0]+":", val, safe(f[1]))
	}
	if permalink != "" {
		fmt.Fprintf(&b, " %s[::b]%-12s[-:-:-] %s%s[-]\n\n", key, "Link:", val, escape(permalink))
		b.WriteString(renderQR(permalink))
	}
	return b.String()
}

func unreadText(unread, notifications, highlights int) string {
	if unread == 0 && notifications == 0 && highlights == 0 {
		return "-"
	}
	return fmt.Sprintf("%d unread, %d notifications, %d mentions", unread, notifications, highlights)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
