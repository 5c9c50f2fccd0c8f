package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/matheus3301/mxt/internal/status"
	"github.com/rivo/tview"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

type page struct {
	*tview.Box
	name, title string
}

func newPage(name string) *page { return &page{Box: tview.NewBox(), name: name, title: name} }

func (p *page) Name() string                 { return p.name }
func (p *page) Title() string                { return p.title }
func (p *page) Hints() []MenuHint            { return nil }
func (p *page) FocusTarget() tview.Primitive { return p.Box }

func names(stack []Component) []string {
	out := make([]string, len(stack))
	for i, c := range stack {
		out[i] = c.Name()
	}
	return out
}

func TestPagesStack(t *testing.T) {
	p := NewPages()
	for _, n := range []string{"rooms", "room", "info"} {
		p.Add(newPage(n))
	}
	var notified []string
	p.SetOnChange(func(stack []Component) { notified = names(stack) })

	p.Reset("rooms")
	p.Push("room")
	p.Push("info")
	p.Push("unknown")
	if diff := cmp.Diff([]string{"rooms", "room", "info"}, notified); diff != "" {
		t.Errorf("stack (-want +got):\n%s", diff)
	}

	// Pushing a page already on the stack pops back to it.
	p.Push("rooms")
	if got := names(p.Stack()); len(got) != 1 || got[0] != "rooms" {
		t.Errorf("stack after re-push = %v", got)
	}
	if top := p.Pop(); top != "" {
		t.Errorf("Pop on the last page = %q, want empty", top)
	}

	p.Push("room")
	if top := p.Pop(); top != "room" {
		t.Errorf("Pop = %q, want room", top)
	}
	if p.CurrentName() != "rooms" || p.Current().Name() != "rooms" {
		t.Errorf("current = %q", p.CurrentName())
	}
}

func TestCrumbsRender(t *testing.T) {
	c := NewCrumbs(DefaultTheme())
	long := newPage("room")
	long.title = strings.Repeat("x", 40)
	out := c.render([]Component{newPage("rooms"), long})
	if !strings.Contains(out, " rooms ") {
		t.Errorf("missing first crumb: %q", out)
	}
	if !strings.Contains(out, strings.Repeat("x", 23)+"…") || strings.Contains(out, strings.Repeat("x", 24)) {
		t.Errorf("long title not shortened: %q", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "[-:-:-]") {
		t.Errorf("unterminated color tags: %q", out)
	}
}

func TestLogoFollowsState(t *testing.T) {
	theme := DefaultTheme()
	l := NewLogo(theme)
	tests := []struct {
		state   status.State
		color   string
		caption string
	}{
		{status.Ready, colorName(theme.TitleColor), "[matrix[]"},
		{status.Reconnecting, colorName(theme.FlashWarnColor), "reconnecting"},
		{status.AuthRequired, colorName(theme.FlashErrColor), "auth required"},
	}
	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			l.SetState(tt.state)
			out := l.GetText(false)
			if !strings.HasPrefix(out, "["+tt.color+"::b]") {
				t.Errorf("logo not tinted %s: %q", tt.color, out)
			}
			if !strings.Contains(out, tt.caption) {
				t.Errorf("caption %q missing: %q", tt.caption, out)
			}
		})
	}
}

func TestFlashModel(t *testing.T) {
	now := time.Unix(1000, 0)
	f := NewFlashModel()
	f.now = func() time.Time { return now }

	if f.GetMessage() != nil {
		t.Fatal("new model has a message")
	}

	tests := []struct {
		name   string
		err    error
		prefix string
		want   string
	}{
		{"plain", errors.New("boom"), "", "boom"},
		{"grpc status", grpcstatus.Error(codes.NotFound, "room not found"), "Open failed", "Open failed: room not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.Err(tt.prefix, tt.err)
			m := f.GetMessage()
			if m == nil || m.Text != tt.want || m.Level != FlashErr {
				t.Errorf("message = %+v, want %q at error level", m, tt.want)
			}
		})
	}

	f.Info("sent")
	now = now.Add(6 * time.Second)
	if got := f.Get(); got != "" {
		t.Errorf("expired message still shown: %q", got)
	}
}

func TestPromptHistory(t *testing.T) {
	p := NewPrompt(DefaultTheme())
	for _, cmd := range []string{"join #a:x", "search foo", "search foo", "quit"} {
		p.remember(cmd)
	}
	if diff := cmp.Diff([]string{"join #a:x", "search foo", "quit"}, p.history); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}

	p.Activate(PromptCommand, "")
	p.browse(-1)
	p.browse(-1)
	if got := p.GetText(); got != "search foo" {
		t.Errorf("after two ups text = %q", got)
	}
	p.browse(1)
	p.browse(1)
	if got := p.GetText(); got != "" {
		t.Errorf("back at the end text = %q, want empty", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0m"},
		{90 * time.Second, "2m"},
		{3*time.Hour + 5*time.Minute, "3h5m"},
		{50 * time.Hour, "2d2h"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.in); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
