// Package views holds the pages of the TUI. Views only render what they are
// given and report user actions through callbacks; they never call the
// daemon themselves.
package views

import (
	"fmt"
	"strconv"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageRooms is the page name of the room list.
const PageRooms = "rooms"

// RoomList is the main room list view.
type RoomList struct {
	*tview.Table
	theme  *ui.Theme
	rooms  []roomlist.RoomSummary
	filter roomlist.Filter
	total  int
}

// NewRoomList creates a new room list table.
func NewRoomList(theme *ui.Theme) *RoomList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	rl := &RoomList{
		Table: table,
		theme: theme,
	}
	rl.render()
	return rl
}

func (rl *RoomList) Name() string                 { return PageRooms }
func (rl *RoomList) Title() string                { return "Rooms" }
func (rl *RoomList) FocusTarget() tview.Primitive { return rl.Table }

func (rl *RoomList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Open"},
		{Key: "/", Description: "Filter"},
		{Key: "Tab", Description: "Next filter"},
		{Key: "i", Description: "Info"},
		{Key: "1-9", Description: "Jump", Numeric: true},
	}
}

// Update replaces the rows. rooms is already filtered; total is the size of
// the unfiltered list.
func (rl *RoomList) Update(rooms []roomlist.RoomSummary, filter roomlist.Filter, total int) {
	selected := rl.SelectedRoom()
	rl.rooms = rooms
	rl.filter = filter
	rl.total = total
	rl.render()
	rl.Select(rl.rowOf(selected), 0)
}

// rowOf keeps the cursor on the same room across updates.
func (rl *RoomList) rowOf(roomID string) int {
	for i, r := range rl.rooms {
		if r.ID == roomID && roomID != "" {
			return i + 1
		}
	}
	row, _ := rl.GetSelection()
	return max(1, min(row, len(rl.rooms)))
}

func (rl *RoomList) render() {
	rl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" ", 0},
		{" NAME", 1},
		{" LAST MESSAGE", 2},
		{" TIME", 0},
		{" UNREAD", 0},
	}
	for col, h := range headers {
		rl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(rl.theme.TableHeaderFg).
			SetBackgroundColor(rl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	for i, r := range rl.rooms {
		row := i + 1
		color := rl.theme.FgColor
		attr := tcell.AttrNone
		switch {
		case r.IsInvite():
			color = rl.theme.InviteColor
		case r.HighlightCount > 0:
			color, attr = rl.theme.HighlightColor, tcell.AttrBold
		case r.HasUnread():
			color, attr = rl.theme.UnreadColor, tcell.AttrBold
		}
		cells := roomCells(r)
		for col, text := range cells {
			cell := tview.NewTableCell(text).
				SetTextColor(color).
				SetAttributes(attr).
				SetExpansion(headers[col].exp)
			if col >= 3 {
				cell.SetAlign(tview.AlignRight)
			}
			rl.SetCell(row, col, cell)
		}
	}

	rl.SetTitle(rl.title())
}

func (rl *RoomList) title() string {
	if rl.filter.Kind == roomlist.FilterAll && rl.filter.Query == "" {
		return fmt.Sprintf(" Rooms (%d) ", rl.total)
	}
	t := fmt.Sprintf(" Rooms (%d/%d) %s", len(rl.rooms), rl.total, rl.filter.Kind)
	if rl.filter.Query != "" {
		t += " /" + escape(rl.filter.Query)
	}
	return t + " "
}

// roomCells renders one room as the cells of a row.
func roomCells(r roomlist.RoomSummary) [5]string {
	if r.IsPlaceholder {
		return [5]string{" ", " …", "", "", ""}
	}
	kind := "#"
	switch {
	case r.IsInvite():
		kind = "+"
	case r.IsDirect:
		kind = "@"
	}
	preview := r.LastMessage
	if r.IsInvite() {
		preview = "Invitation"
	}
	return [5]string{
		" " + kind,
		" " + safe(r.DisplayName),
		" " + safe(preview),
		" " + formatTimestamp(r.LastMessageAt),
		unreadBadge(r),
	}
}

func unreadBadge(r roomlist.RoomSummary) string {
	switch {
	case r.HighlightCount > 0:
		return " !" + strconv.Itoa(r.HighlightCount)
	case r.NotificationCount > 0:
		return " " + strconv.Itoa(r.NotificationCount)
	case r.UnreadCount > 0:
		return " •"
	}
	return ""
}

// SelectedRoom returns the id of the room under the cursor.
func (rl *RoomList) SelectedRoom() string {
	row, _ := rl.GetSelection()
	return rl.RoomByIndex(row)
}

// RoomByIndex returns the id of the Nth visible room (1-based).
func (rl *RoomList) RoomByIndex(n int) string {
	if n < 1 || n > len(rl.rooms) || rl.rooms[n-1].IsPlaceholder {
		return ""
	}
	return rl.rooms[n-1].ID
}
