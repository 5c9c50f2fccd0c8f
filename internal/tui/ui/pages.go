package ui

import (
	"slices"

	"github.com/rivo/tview"
)

// Pages is a stack of components on top of tview.Pages. Pushing a page that
// is already on the stack pops back to it instead of stacking a copy.
type Pages struct {
	*tview.Pages
	components map[string]Component
	stack      []string
	onChange   func(stack []Component)
}

// NewPages creates an empty page stack.
func NewPages() *Pages {
	return &Pages{
		Pages:      tview.NewPages(),
		components: make(map[string]Component),
	}
}

// Add registers a component as a hidden page.
func (p *Pages) Add(c Component) {
	p.components[c.Name()] = c
	p.AddPage(c.Name(), c, true, false)
}

// SetOnChange sets a callback that fires when the stack changes.
func (p *Pages) SetOnChange(fn func(stack []Component)) {
	p.onChange = fn
}

// Push shows the named page on top of the stack.
func (p *Pages) Push(name string) {
	if _, ok := p.components[name]; !ok {
		return
	}
	if i := slices.Index(p.stack, name); i >= 0 {
		p.truncate(i + 1)
		p.notify()
		return
	}
	if len(p.stack) > 0 {
		p.HidePage(p.stack[len(p.stack)-1])
	}
	p.stack = append(p.stack, name)
	p.show(name)
	p.notify()
}

// Pop removes the top page and shows the previous one. The last page is
// never popped; Pop then returns an empty name.
func (p *Pages) Pop() string {
	if len(p.stack) <= 1 {
		return ""
	}
	top := p.stack[len(p.stack)-1]
	p.truncate(len(p.stack) - 1)
	p.notify()
	return top
}

// Reset clears the stack and shows only the named page.
func (p *Pages) Reset(name string) {
	if _, ok := p.components[name]; !ok {
		return
	}
	for _, n := range p.stack {
		p.HidePage(n)
	}
	p.stack = []string{name}
	p.show(name)
	p.notify()
}

// Current returns the component on top of the stack, or nil.
func (p *Pages) Current() Component {
	if len(p.stack) == 0 {
		return nil
	}
	return p.components[p.stack[len(p.stack)-1]]
}

// CurrentName returns the name of the top page.
func (p *Pages) CurrentName() string {
	if len(p.stack) == 0 {
		return ""
	}
	return p.stack[len(p.stack)-1]
}

// Stack returns the components on the stack, bottom first.
func (p *Pages) Stack() []Component {
	out := make([]Component, len(p.stack))
	for i, n := range p.stack {
		out[i] = p.components[n]
	}
	return out
}

// Refresh re-notifies the listener, e.g. after a title changed.
func (p *Pages) Refresh() { p.notify() }

func (p *Pages) truncate(n int) {
	for _, name := range p.stack[n:] {
		p.HidePage(name)
	}
	p.stack = p.stack[:n]
	p.show(p.stack[n-1])
}

func (p *Pages) show(name string) {
	p.ShowPage(name)
	p.SendToFront(name)
}

func (p *Pages) notify() {
	if p.onChange != nil {
		p.onChange(p.Stack())
	}
}
