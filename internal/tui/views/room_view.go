package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mxt/internal/timeline"
	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageRoom is the page name of the open room.
const PageRoom = "room"

// RoomView shows the timeline of one room and a composer.
type RoomView struct {
	*tview.Flex
	theme    *ui.Theme
	table    *tview.Table
	composer *tview.InputField
	name     string
	rows     []timeline.Row

	onSend     func(text string)
	onActivate func(row timeline.Row)
	onTop      func()
}

// NewRoomView creates the room page.
func NewRoomView(theme *ui.Theme) *RoomView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i to focus, Markdown) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(table, 0, 1, true).
		AddItem(composer, 3, 0, false)

	rv := &RoomView{
		Flex:     flex,
		theme:    theme,
		table:    table,
		composer: composer,
	}

	composer.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter || rv.onSend == nil {
			return
		}
		if text := composer.GetText(); strings.TrimSpace(text) != "" {
			rv.onSend(text)
			composer.SetText("")
		}
	})
	table.SetSelectedFunc(func(row, _ int) {
		if rv.onActivate != nil && row >= 0 && row < len(rv.rows) {
			rv.onActivate(rv.rows[row])
		}
	})
	table.SetSelectionChangedFunc(func(row, _ int) {
		if row == 0 && rv.onTop != nil && len(rv.rows) > 0 && isLoadingRow(rv.rows[0]) {
			rv.onTop()
		}
	})

	return rv
}

func (rv *RoomView) Name() string { return PageRoom }

func (rv *RoomView) Title() string {
	if rv.name == "" {
		return "Room"
	}
	return rv.name
}

func (rv *RoomView) FocusTarget() tview.Primitive { return rv.table }

func (rv *RoomView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "i", Description: "Compose"},
		{Key: "Enter", Description: "Expand/Retry"},
		{Key: "PgUp", Description: "Older"},
		{Key: "I", Description: "Room info"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetRoomName updates the title.
func (rv *RoomView) SetRoomName(name string) {
	rv.name = name
	rv.table.SetTitle(fmt.Sprintf(" %s ", escape(oneLine(name))))
}

// SetOnSend sets the callback for a submitted message.
func (rv *RoomView) SetOnSend(fn func(text string)) { rv.onSend = fn }

// SetOnActivate sets the callback for Enter on a timeline row.
func (rv *RoomView) SetOnActivate(fn func(row timeline.Row)) { rv.onActivate = fn }

// SetOnTop sets the callback fired when the cursor reaches the loading row.
func (rv *RoomView) SetOnTop(fn func()) { rv.onTop = fn }

// Composer returns the composer input field.
func (rv *RoomView) Composer() *tview.InputField { return rv.composer }

// Prefill puts text in the composer, e.g. shared content.
func (rv *RoomView) Prefill(text string) { rv.composer.SetText(text) }

// Update replaces the timeline. The cursor follows the newest row when it
// was on the last row, and otherwise stays on the same item.
func (rv *RoomView) Update(rows []timeline.Row) {
	selected, _ := rv.table.GetSelection()
	atEnd := selected >= len(rv.rows)-1
	var key string
	if !atEnd && selected >= 0 && selected < len(rv.rows) {
		key = rowKey(rv.rows[selected])
	}

	rv.rows = rows
	rv.table.Clear()
	for i := range rows {
		rv.table.SetCell(i, 0, tview.NewTableCell(rv.renderRow(rows, i)).SetExpansion(1))
	}

	switch {
	case len(rows) == 0:
	case atEnd:
		rv.table.Select(len(rows)-1, 0)
		rv.table.ScrollToEnd()
	default:
		for i, r := range rows {
			if rowKey(r) == key {
				rv.table.Select(i, 0)
				break
			}
		}
	}
}

func rowKey(r timeline.Row) string {
	if r.Group != nil {
		return r.Group.ID + "/" + r.Item.Key()
	}
	return r.Item.Key()
}

func isLoadingRow(r timeline.Row) bool {
	v, ok := r.Item.(*timeline.VirtualItem)
	return ok && v.Kind == timeline.LoadingIndicator
}

// renderRow renders rows[i]. A group is expanded when its events follow it.
func (rv *RoomView) renderRow(rows []timeline.Row, i int) string {
	t := rv.theme
	r := rows[i]
	switch it := r.Item.(type) {
	case *timeline.VirtualItem:
		return rv.renderVirtual(it)
	case *timeline.GroupedEvents:
		expanded := i+1 < len(rows) && rows[i+1].Group == it
		return rv.renderGroup(it, expanded)
	case *timeline.EventItem:
		prefix := ""
		if r.Group != nil {
			prefix = ui.ColorTag(t.NoticeColor) + "  │ [-]"
		}
		return prefix + rv.renderEvent(it)
	}
	return ""
}

func (rv *RoomView) renderVirtual(v *timeline.VirtualItem) string {
	marker := ui.ColorTag(rv.theme.MarkerColor)
	dim := ui.ColorTag(rv.theme.NoticeColor)
	switch v.Kind {
	case timeline.DaySeparator:
		return fmt.Sprintf("%s──── %s ────[-]", dim, formatDay(v.Timestamp))
	case timeline.ReadMarker:
		return marker + "──── new messages ────[-]"
	case timeline.RoomBeginning:
		return dim + "This is the beginning of the room.[-]"
	case timeline.LoadingIndicator:
		return dim + "↑ older messages (PgUp)[-]"
	}
	return ""
}

// renderGroup shows a group as one summary line.
func (rv *RoomView) renderGroup(g *timeline.GroupedEvents, expanded bool) string {
	arrow := "▸"
	if expanded {
		arrow = "▾"
	}
	var parts []string
	for _, e := range g.Events[:min(2, len(g.Events))] {
		parts = append(parts, oneLine(e.Text()))
	}
	summary := strings.Join(parts, ", ")
	if len(g.Events) > 2 {
		summary += fmt.Sprintf(" and %d more", len(g.Events)-2)
	}
	return fmt.Sprintf("%s%s %s%s[-]", ui.ColorTag(rv.theme.NoticeColor), arrow, escape(summary), receiptSuffix(g.ReadReceipts()))
}

func (rv *RoomView) renderEvent(e *timeline.EventItem) string {
	t := rv.theme
	ts := formatTimestamp(e.Timestamp)

	if e.Groupable() || e.Content.Kind != timeline.KindMessage {
		return fmt.Sprintf("[::d]%s[::-] %s%s[-]%s", ts, ui.ColorTag(t.NoticeColor), safe(e.Text()), receiptSuffix(e.Receipts))
	}

	sender := ui.ColorTag(t.SenderColor)
	if e.IsMine {
		sender = ui.ColorTag(t.OwnSenderColor)
	}
	body := safe(e.Text())
	if e.Content.MsgType == "m.notice" {
		body = ui.ColorTag(t.NoticeColor) + body + "[-]"
	}

	var state string
	switch e.SendState {
	case timeline.SendQueued, timeline.SendSending:
		state = " " + ui.ColorTag(t.PendingColor) + "…[-]"
		body = ui.ColorTag(t.PendingColor) + body + "[-]"
	case timeline.SendFailed:
		state = " " + ui.ColorTag(t.FailedColor) + "✗ not sent (Enter to retry)[-]"
	}
	return fmt.Sprintf("[::d]%s[::-] %s[::b]%s[-:-:-] %s%s%s", ts, sender, safe(e.Name()), body, state, receiptSuffix(e.Receipts))
}

func receiptSuffix(rs []timeline.Receipt) string {
	if len(rs) == 0 {
		return ""
	}
	return fmt.Sprintf(" [::d]✓%d[::-]", len(rs))
}
