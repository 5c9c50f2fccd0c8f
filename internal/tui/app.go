package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/matheus3301/mxt/internal/bus"
	"github.com/matheus3301/mxt/internal/navigation"
	"github.com/matheus3301/mxt/internal/roomlist"
	"github.com/matheus3301/mxt/internal/rpc"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/matheus3301/mxt/internal/timeline"
	"github.com/matheus3301/mxt/internal/tui/client"
	"github.com/matheus3301/mxt/internal/tui/keys"
	"github.com/matheus3301/mxt/internal/tui/model"
	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/matheus3301/mxt/internal/tui/views"
	"github.com/rivo/tview"
	"golang.org/x/sync/errgroup"
)

const (
	headerHeight = 7
	promptHeight = 3
	refreshEvery = 5 * time.Second
)

// App is the main TUI application shell. Fields other than vm and flash
// belong to the UI goroutine; background work reaches them through
// QueueUpdateDraw.
type App struct {
	app      *tview.Application
	theme    *ui.Theme
	vm       *model.ViewModel
	registry *keys.Registry
	flash    *ui.FlashModel
	session  string

	root        *tview.Flex
	sessionInfo *ui.SessionInfo
	logo        *ui.Logo
	menu        *ui.Menu
	crumbs      *ui.Crumbs
	pages       *ui.Pages
	flashBar    *ui.FlashBar
	prompt      *ui.Prompt

	roomList *views.RoomList
	roomView *views.RoomView
	infoView *views.InfoView
	authView *views.AuthView
	searchV  *views.SearchView
	sessions *views.SessionsView
	help     *views.HelpView

	// pendingShare is text waiting for the user to pick a room.
	pendingShare string
	loadingOlder atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

// NewApp creates the TUI application.
func NewApp(c *client.Client, sessionName string) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		theme:       theme,
		vm:          model.NewViewModel(c),
		registry:    keys.NewRegistry(),
		flash:       ui.NewFlashModel(),
		session:     sessionName,
		sessionInfo: ui.NewSessionInfo(theme),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		pages:       ui.NewPages(),
		flashBar:    ui.NewFlashBar(theme),
		prompt:      ui.NewPrompt(theme),
		roomList:    views.NewRoomList(theme),
		roomView:    views.NewRoomView(theme),
		infoView:    views.NewInfoView(theme),
		authView:    views.NewAuthView(theme),
		searchV:     views.NewSearchView(theme),
		sessions:    views.NewSessionsView(theme),
		help:        views.NewHelpView(theme),
		ctx:         ctx,
		cancel:      cancel,
	}

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("command", &keys.Action{
		Key: tcell.KeyRune, Rune: ':',
		Description: "Command", Visible: true,
		Handler: func() { a.showPrompt(ui.PromptCommand, "") },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Key: tcell.KeyRune, Rune: '?',
		Description: "Help", Visible: true,
		Handler: func() { a.pages.Push(views.PageHelp) },
	})
	a.registry.AddGlobal("back", &keys.Action{
		Key:         tcell.KeyEscape,
		Label:       "Esc",
		Description: "Back",
		Handler:     a.goBack,
	})

	a.registry.AddView(views.PageRooms, "quit", &keys.Action{
		Key: tcell.KeyRune, Rune: 'q',
		Description: "Quit", Visible: true,
		Handler: a.Stop,
	})
	a.registry.AddView(views.PageRooms, "filter", &keys.Action{
		Key: tcell.KeyRune, Rune: '/',
		Handler: func() { a.showPrompt(ui.PromptFilter, a.vm.Filter().Query) },
	})
	a.registry.AddView(views.PageRooms, "next-filter", &keys.Action{
		Key: tcell.KeyTab,
		Handler: func() {
			f := a.vm.Filter()
			f.Kind = (f.Kind + 1) % (roomlist.FilterInvites + 1)
			a.setFilter(f)
		},
	})
	a.registry.AddView(views.PageRooms, "info", &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Handler: func() { a.showRoomInfo(a.roomList.SelectedRoom()) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddView(views.PageRooms, "jump-"+strconv.Itoa(n), &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n),
			Handler: func() { a.openRoom(a.roomList.RoomByIndex(n)) },
		})
	}

	a.registry.AddView(views.PageRoom, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'i',
		Handler: func() { a.app.SetFocus(a.roomView.Composer()) },
	})
	a.registry.AddView(views.PageRoom, "info", &keys.Action{
		Key: tcell.KeyRune, Rune: 'I',
		Handler: func() {
			if r := a.vm.ActiveRoom(); r != nil {
				a.showRoomInfo(r.Summary.ID)
			}
		},
	})
	a.registry.AddView(views.PageRoom, "older", &keys.Action{
		Key:     tcell.KeyPgUp,
		Handler: a.loadOlder,
	})
}

func (a *App) setupCallbacks() {
	a.roomList.SetSelectedFunc(func(row, _ int) {
		a.openRoom(a.roomList.RoomByIndex(row))
	})

	a.roomView.SetOnSend(func(text string) {
		go func() {
			if _, err := a.vm.Send(a.ctx, text); err != nil {
				a.flash.Err("Send failed", err)
			}
		}()
	})
	a.roomView.SetOnActivate(a.activateRow)
	a.roomView.SetOnTop(a.loadOlder)

	a.searchV.SetOnQuery(a.search)
	a.searchV.SetOnOpen(func(hit rpc.SearchHit) { a.openRoom(hit.RoomID) })

	a.authView.SetOnLogin(func(homeserver, user, password string) {
		a.authView.ShowMessage("Signing in...")
		go func() {
			resp, err := a.vm.Login(a.ctx, homeserver, user, password)
			a.app.QueueUpdateDraw(func() {
				a.authView.ClearPassword()
				if err != nil {
					a.authView.ShowMessage("Login failed: " + err.Error())
					return
				}
				a.flash.Infof("Signed in as %s", resp.UserID)
			})
		}()
	})

	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		switch mode {
		case ui.PromptCommand:
			a.runCommand(ParseCommand(text))
		case ui.PromptFilter:
			f := a.vm.Filter()
			f.Query = text
			a.setFilter(f)
		case ui.PromptSearch:
			a.search(text)
		}
	})
	a.prompt.SetOnCancel(a.hidePrompt)

	a.pages.SetOnChange(func(stack []ui.Component) {
		a.crumbs.Update(stack)
		if len(stack) == 0 {
			return
		}
		top := stack[len(stack)-1]
		a.menu.Update(append(top.Hints(), a.registry.Hints("")...))
		a.app.SetFocus(top.FocusTarget())
	})
}

func (a *App) setupLayout() {
	a.logo = ui.NewLogo(a.theme)

	header := tview.NewFlex().
		AddItem(a.sessionInfo, 0, 1, false).
		AddItem(a.menu, 0, 2, false).
		AddItem(a.logo, 24, 0, false)

	for _, c := range []ui.Component{a.roomList, a.roomView, a.infoView, a.authView, a.searchV, a.sessions, a.help} {
		a.pages.Add(c)
	}

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, headerHeight, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.handleKey)
	a.pages.Reset(views.PageRooms)
	a.updateSessionInfo()
}

func (a *App) handleKey(ev *tcell.EventKey) *tcell.EventKey {
	if ev.Key() == tcell.KeyCtrlC {
		a.Stop()
		return nil
	}

	focused := a.app.GetFocus()
	if focused == a.prompt.InputField {
		return ev
	}
	// Text inputs and the login form keep their keys; Esc leaves them.
	if _, ok := focused.(*tview.InputField); ok || a.pages.CurrentName() == views.PageAuth {
		if ev.Key() != tcell.KeyEscape {
			return ev
		}
		if focused == a.roomView.Composer() {
			a.app.SetFocus(a.roomView.FocusTarget())
			return nil
		}
		a.goBack()
		return nil
	}

	if a.registry.HandleEvent(a.pages.CurrentName(), ev) {
		return nil
	}
	return ev
}

func (a *App) showPrompt(mode ui.PromptMode, text string) {
	a.prompt.Activate(mode, text)
	a.root.ResizeItem(a.prompt, promptHeight, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	if c := a.pages.Current(); c != nil {
		a.app.SetFocus(c.FocusTarget())
	}
}

func (a *App) goBack() {
	if a.pages.Pop() == views.PageRoom {
		a.vm.CloseRoom()
	}
	if a.pages.CurrentName() == views.PageRooms && a.vm.Filter() != (roomlist.Filter{}) {
		a.setFilter(roomlist.Filter{})
	}
}

func (a *App) setFilter(f roomlist.Filter) {
	a.vm.SetFilter(f)
	a.renderRooms()
}

func (a *App) renderRooms() {
	a.roomList.Update(a.vm.Rooms(), a.vm.Filter(), a.vm.RoomCount())
}

func (a *App) renderTimeline() {
	a.roomView.Update(a.vm.Rows())
}

func (a *App) updateSessionInfo() {
	data := &ui.SessionData{Session: a.session}
	if s := a.vm.Status(); s != nil {
		data.UserID = s.UserID
		data.Homeserver = s.Homeserver
		data.State = s.State
		data.Syncing = s.Syncing
		data.Rooms = s.RoomCount
		data.Events = s.EventCount
		data.Uptime = time.Duration(s.UptimeMs) * time.Millisecond
		a.logo.SetState(status.State(s.State))
	}
	a.sessionInfo.Update(data)
}

// openRoom opens a room, accepting it first when it is an invitation.
// Text waiting to be shared lands in the composer.
func (a *App) openRoom(roomID string) {
	if roomID == "" {
		return
	}
	share := a.pendingShare
	a.pendingShare = ""
	go func() {
		if r, ok := a.vm.FindRoom(roomID); ok && r.IsInvite() {
			if _, err := a.vm.Join(a.ctx, roomID, nil); err != nil {
				a.flash.Err("Join failed", err)
				return
			}
		}
		info, err := a.vm.OpenRoom(a.ctx, roomID)
		if err != nil {
			a.flash.Err("Open failed", err)
			return
		}
		rows := a.vm.Rows()
		a.app.QueueUpdateDraw(func() {
			a.roomView.SetRoomName(info.Summary.DisplayName)
			a.roomView.Update(rows)
			a.pages.Push(views.PageRoom)
			if share != "" {
				a.roomView.Prefill(share)
				a.app.SetFocus(a.roomView.Composer())
			}
		})
		if err := a.vm.MarkRead(a.ctx); err != nil {
			a.flash.Err("Mark read failed", err)
		}
	}()
}

func (a *App) showRoomInfo(roomID string) {
	if roomID == "" {
		return
	}
	go func() {
		info, err := a.vm.RoomInfo(a.ctx, roomID)
		if err != nil {
			a.flash.Err("Room info", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.infoView.ShowRoom(info)
			a.pages.Push(views.PageInfo)
		})
	}()
}

// activateRow expands or collapses a group, or retries a failed message.
func (a *App) activateRow(row timeline.Row) {
	switch it := row.Item.(type) {
	case *timeline.GroupedEvents:
		a.vm.ToggleGroup(it.ID)
		a.renderTimeline()
	case *timeline.EventItem:
		switch {
		case it.IsMine && it.SendState == timeline.SendFailed:
			a.retry(it.TxnID)
		case row.Group != nil:
			a.vm.ToggleGroup(row.Group.ID)
			a.renderTimeline()
		}
	}
}

func (a *App) retry(clientMsgID string) {
	go func() {
		if err := a.vm.Retry(a.ctx, clientMsgID); err != nil {
			a.flash.Err("Retry failed", err)
			return
		}
		a.flash.Info("Resending message")
	}()
}

func (a *App) loadOlder() {
	if !a.loadingOlder.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer a.loadingOlder.Store(false)
		n, err := a.vm.LoadOlder(a.ctx)
		if err != nil {
			a.flash.Err("Load older", err)
			return
		}
		if n == 0 {
			a.flash.Info("No older messages")
		}
		rows := a.vm.Rows()
		a.app.QueueUpdateDraw(func() { a.roomView.Update(rows) })
	}()
}

func (a *App) search(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}
	a.searchV.SetQuery(query)
	a.pages.Push(views.PageSearch)
	go func() {
		var roomID string
		if r := a.vm.ActiveRoom(); r != nil {
			roomID = r.Summary.ID
		}
		hits, err := a.vm.Search(a.ctx, query, roomID)
		if err != nil {
			a.flash.Err("Search failed", err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.searchV.Update(query, hits, a.roomName)
			a.app.SetFocus(a.searchV.Results())
		})
	}()
}

func (a *App) roomName(roomID string) string {
	if r, ok := a.vm.FindRoom(roomID); ok && r.DisplayName != "" {
		return r.DisplayName
	}
	return roomID
}

// lookupRoom finds a room by id, alias or display name.
func (a *App) lookupRoom(name string) (string, bool) {
	if r, ok := a.vm.FindRoom(name); ok {
		return r.ID, true
	}
	var partial string
	for _, r := range a.vm.Rooms() {
		switch {
		case strings.EqualFold(r.DisplayName, name):
			return r.ID, true
		case partial == "" && strings.Contains(strings.ToLower(r.DisplayName), strings.ToLower(name)):
			partial = r.ID
		}
	}
	return partial, partial != ""
}

// OpenURI hands a link to the daemon and goes where it routes to.
func (a *App) OpenURI(uri string) {
	go func() {
		resp, err := a.vm.Open(a.ctx, uri)
		if err != nil {
			a.flash.Err("Open link", err)
			return
		}
		a.app.QueueUpdateDraw(func() { a.navigate(resp.Destination) })
	}()
}

func (a *App) navigate(d navigation.Destination) {
	if d.Message != "" {
		a.flash.Info(d.Message)
	}
	switch d.Screen {
	case navigation.ScreenHome:
		a.pages.Reset(views.PageRooms)
	case navigation.ScreenRoom:
		a.openRoom(d.RoomID)
	case navigation.ScreenInvites:
		a.pages.Reset(views.PageRooms)
		a.setFilter(roomlist.Filter{Kind: roomlist.FilterInvites})
	case navigation.ScreenUser:
		a.infoView.ShowUser(d.UserID)
		a.pages.Push(views.PageInfo)
	case navigation.ScreenLogin:
		a.authView.Prefill(d.AccountProvider, d.LoginHint)
		a.pages.Push(views.PageAuth)
	case navigation.ScreenShare:
		a.pendingShare = d.Text
		a.pages.Reset(views.PageRooms)
		a.flash.Info("Pick a room to share into")
	case navigation.ScreenSession:
		if d.SessionID != a.session {
			a.flash.Warn(fmt.Sprintf("Session %q runs its own daemon: mxtui --session %s", d.SessionID, d.SessionID))
		}
	}
}

func (a *App) runCommand(cmd Command) {
	args := cmd.Fields()
	switch cmd.Name {
	case "quit":
		a.Stop()
	case "help":
		a.pages.Push(views.PageHelp)
	case "room":
		if id, ok := a.lookupRoom(cmd.Args); ok {
			a.openRoom(id)
		} else {
			a.flash.Warn("No room matches " + cmd.Args)
		}
	case "join":
		if len(args) == 0 {
			a.flash.Warn("Usage: :join <#alias|!id> [via...]")
			return
		}
		go func() {
			roomID, err := a.vm.Join(a.ctx, args[0], args[1:])
			if err != nil {
				a.flash.Err("Join failed", err)
				return
			}
			a.app.QueueUpdateDraw(func() { a.openRoom(roomID) })
		}()
	case "open":
		if cmd.Args == "" {
			a.flash.Warn("Usage: :open <uri>")
			return
		}
		a.OpenURI(cmd.Args)
	case "search":
		if cmd.Args == "" {
			a.showPrompt(ui.PromptSearch, "")
			return
		}
		a.search(cmd.Args)
	case "filter":
		f := roomlist.Filter{}
		if len(args) > 0 {
			kind, err := roomlist.ParseFilterKind(args[0])
			if err != nil {
				a.flash.Err("", err)
				return
			}
			f = roomlist.Filter{Kind: kind, Query: strings.Join(args[1:], " ")}
		}
		a.pages.Reset(views.PageRooms)
		a.setFilter(f)
	case "read":
		go func() {
			if err := a.vm.MarkRead(a.ctx); err != nil {
				a.flash.Err("Mark read failed", err)
			}
		}()
	case "retry":
		if id, ok := a.vm.LastFailed(); ok {
			a.retry(id)
		} else {
			a.flash.Info("Nothing to retry")
		}
	case "older":
		a.loadOlder()
	case "info":
		if r := a.vm.ActiveRoom(); r != nil {
			a.showRoomInfo(r.Summary.ID)
		} else {
			a.showRoomInfo(a.roomList.SelectedRoom())
		}
	case "login":
		a.pages.Push(views.PageAuth)
	case "logout":
		go func() {
			if err := a.vm.Logout(a.ctx); err != nil {
				a.flash.Err("Logout failed", err)
			}
		}()
	case "sessions":
		go func() {
			list, err := a.vm.Sessions(a.ctx)
			if err != nil {
				a.flash.Err("List sessions", err)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.sessions.Update(list)
				a.pages.Push(views.PageSessions)
			})
		}()
	default:
		a.flash.Warn("Unknown command: " + cmd.Name)
	}
}

// onStatus follows session transitions: login page while signed out, back
// to the room list once signed in.
func (a *App) onStatus(evt rpc.StatusEvent) {
	a.app.QueueUpdateDraw(func() {
		a.updateSessionInfo()
		switch {
		case evt.To == string(status.AuthRequired):
			a.showLogin()
		case evt.From == string(status.AuthRequired) && a.pages.CurrentName() == views.PageAuth:
			a.pages.Reset(views.PageRooms)
		}
		if evt.LoggedOut {
			a.flash.Warn("Signed out")
		}
	})
}

func (a *App) showLogin() {
	if s := a.vm.Status(); s != nil {
		a.authView.Prefill(s.Homeserver, "")
		if s.OIDCEnabled {
			a.authView.EnableOIDC(a.startOIDC)
		}
	}
	a.pages.Push(views.PageAuth)
}

func (a *App) startOIDC() {
	go func() {
		authURL, err := a.vm.StartOIDC(a.ctx)
		a.app.QueueUpdateDraw(func() {
			if err != nil {
				a.authView.ShowMessage("Single sign-on failed: " + err.Error())
				return
			}
			a.authView.ShowOIDC(authURL)
		})
	}()
}

// Run starts the TUI application.
func (a *App) Run() error {
	go a.start()
	return a.app.Run()
}

func (a *App) start() {
	g, ctx := errgroup.WithContext(a.ctx)
	g.Go(func() error { return a.vm.LoadStatus(ctx) })
	g.Go(func() error { return a.vm.LoadRooms(ctx) })
	if err := g.Wait(); err != nil {
		a.flash.Err("Daemon", err)
	}

	a.app.QueueUpdateDraw(func() {
		a.renderRooms()
		a.updateSessionInfo()
		if s := a.vm.Status(); s != nil && s.State == string(status.AuthRequired) {
			a.showLogin()
		}
	})

	go func() {
		_ = a.vm.WatchRooms(a.ctx, func() { a.app.QueueUpdateDraw(a.renderRooms) })
	}()
	go func() {
		_ = a.vm.WatchTimeline(a.ctx, a.onTimeline)
	}()
	go func() {
		_ = a.vm.WatchStatus(a.ctx, a.onStatus)
	}()
	a.refreshLoop()
}

func (a *App) onTimeline(evt *rpc.TimelineEvent) {
	if evt.Kind == bus.KindSendFailed {
		a.flash.Warn("Message not sent: " + evt.Error)
	}
	if r := a.vm.ActiveRoom(); r == nil || r.Summary.ID != evt.RoomID {
		return
	}
	rows := a.vm.Rows()
	a.app.QueueUpdateDraw(func() { a.roomView.Update(rows) })
}

// refreshLoop repaints the flash bar as messages arrive or expire and keeps
// the header's counters current.
func (a *App) refreshLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastStatus := time.Now()

	for {
		select {
		case msg := <-a.flash.Watch():
			a.app.QueueUpdateDraw(func() { a.flashBar.Update(&msg) })
		case <-ticker.C:
			if time.Since(lastStatus) >= refreshEvery {
				lastStatus = time.Now()
				_ = a.vm.LoadStatus(a.ctx)
			}
			a.app.QueueUpdateDraw(func() {
				a.flashBar.Update(a.flash.GetMessage())
				a.updateSessionInfo()
			})
		case <-a.ctx.Done():
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
