package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageSearch is the page name of the search view.
const PageSearch = "search"

// SearchView provides message search.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	onQuery func(query string)
	hits    []rpc.SearchHit
	query   string
}

// NewSearchView creates a new search view.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBorderColor(theme.BorderColor)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitle(" Results ")
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	sv := &SearchView{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(input, 1, 0, true).
			AddItem(results, 0, 1, false),
		theme:   theme,
		input:   input,
		results: results,
	}
	input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.onQuery != nil && strings.TrimSpace(input.GetText()) != "" {
			sv.onQuery(input.GetText())
		}
	})
	return sv
}

func (sv *SearchView) Name() string                 { return PageSearch }
func (sv *SearchView) FocusTarget() tview.Primitive { return sv.input }

func (sv *SearchView) Title() string {
	if sv.query == "" {
		return "Search"
	}
	return "Search: " + sv.query
}

func (sv *SearchView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Enter", Description: "Search/Open"},
		{Key: "Tab", Description: "Results"},
		{Key: "Esc", Description: "Back"},
	}
}

// SetOnQuery sets the callback when a search query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) { sv.onQuery = fn }

// SetOnOpen sets the callback when a result is chosen.
func (sv *SearchView) SetOnOpen(fn func(hit rpc.SearchHit)) {
	sv.results.SetSelectedFunc(func(row, _ int) {
		if hit, ok := sv.hit(row); ok {
			fn(hit)
		}
	})
}

// SetQuery puts a query in the input, e.g. from the command prompt.
func (sv *SearchView) SetQuery(q string) { sv.input.SetText(q) }

// Update refreshes search results. roomName resolves room ids for display.
func (sv *SearchView) Update(query string, hits []rpc.SearchHit, roomName func(roomID string) string) {
	sv.query = query
	sv.hits = hits
	sv.results.Clear()

	for col, h := range []string{" ROOM", " SENDER", " MESSAGE", " TIME"} {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	for i, hit := range hits {
		row := i + 1
		var sender, ts string
		if hit.Event != nil {
			sender = hit.Event.Name()
			ts = formatTimestamp(hit.Event.Timestamp)
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+safe(roomName(hit.RoomID))).SetMaxWidth(25).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+safe(sender)).SetMaxWidth(20).SetTextColor(sv.theme.SenderColor))
		sv.results.SetCell(row, 2, tview.NewTableCell(" "+highlightSnippet(hit.Snippet, sv.theme)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(row, 3, tview.NewTableCell(" "+ts).SetTextColor(sv.theme.FgColor))
	}
	sv.results.SetTitle(fmt.Sprintf(" Results (%d) ", len(hits)))
	if len(hits) > 0 {
		sv.results.Select(1, 0)
	}
}

// highlightSnippet turns the <<match>> markers of a search snippet into
// color tags after escaping the text.
func highlightSnippet(snippet string, theme *ui.Theme) string {
	s := safe(snippet)
	s = strings.ReplaceAll(s, "<<", ui.ColorTag(theme.MarkerColor)+"[::b]")
	return strings.ReplaceAll(s, ">>", "[-:-:-]")
}

func (sv *SearchView) hit(row int) (rpc.SearchHit, bool) {
	if idx := row - 1; idx >= 0 && idx < len(sv.hits) {
		return sv.hits[idx], true
	}
	return rpc.SearchHit{}, false
}

// Input returns the search input field.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table { return sv.results }
