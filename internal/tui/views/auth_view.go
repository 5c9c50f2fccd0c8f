package views

import (
	"fmt"

	"github.com/matheus3301/mxt/internal/tui/ui"
	"github.com/rivo/tview"
)

// PageAuth is the page name of the login view.
const PageAuth = "login"

// AuthView is the login page: a password form and, when the daemon has
// OIDC configured, a QR code of the authorization URL.
type AuthView struct {
	*tview.Flex
	theme   *ui.Theme
	form    *tview.Form
	message *tview.TextView

	onLogin func(homeserver, user, password string)
	onOIDC  func()
}

// NewAuthView creates a new login view.
func NewAuthView(theme *ui.Theme) *AuthView {
	form := tview.NewForm()
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.BgColor)
	form.SetFieldTextColor(theme.FgColor)
	form.SetLabelColor(theme.MenuKeyColor)
	form.SetButtonBackgroundColor(theme.TableCursorBg)
	form.SetButtonTextColor(theme.TableCursorFg)
	form.SetTitle(" Sign in ")
	form.SetTitleColor(theme.TitleColor)

	message := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	message.SetBackgroundColor(theme.BgColor)
	message.SetTextColor(theme.FgColor)

	av := &AuthView{
		Flex: tview.NewFlex().
			SetDirection(tview.FlexRow).
			AddItem(form, 11, 0, true).
			AddItem(message, 0, 1, false),
		theme:   theme,
		form:    form,
		message: message,
	}

	form.AddInputField("Homeserver", "", 40, nil, nil)
	form.AddInputField("User", "", 40, nil, nil)
	form.AddPasswordField("Password", "", 40, '*', nil)
	form.AddButton("Login", func() {
		if av.onLogin != nil {
			av.onLogin(av.field("Homeserver"), av.field("User"), av.field("Password"))
		}
	})
	return av
}

func (av *AuthView) Name() string                 { return PageAuth }
func (av *AuthView) Title() string                { return "Login" }
func (av *AuthView) FocusTarget() tview.Primitive { return av.form }

func (av *AuthView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Enter", Description: "Submit"},
		{Key: "Esc", Description: "Back"},
	}
}

func (av *AuthView) field(label string) string {
	if f, ok := av.form.GetFormItemByLabel(label).(*tview.InputField); ok {
		return f.GetText()
	}
	return ""
}

// SetOnLogin sets the callback of the password login button.
func (av *AuthView) SetOnLogin(fn func(homeserver, user, password string)) { av.onLogin = fn }

// EnableOIDC adds the single sign-on button. Calling it again is a no-op.
func (av *AuthView) EnableOIDC(fn func()) {
	if av.onOIDC != nil {
		return
	}
	av.onOIDC = fn
	av.form.AddButton("Single sign-on", func() { av.onOIDC() })
}

// Prefill sets the homeserver and user fields, leaving empty values alone.
func (av *AuthView) Prefill(homeserver, user string) {
	set := func(label, v string) {
		if f, ok := av.form.GetFormItemByLabel(label).(*tview.InputField); ok && v != "" {
			f.SetText(v)
		}
	}
	set("Homeserver", homeserver)
	set("User", user)
}

// ClearPassword empties the password field.
func (av *AuthView) ClearPassword() {
	if f, ok := av.form.GetFormItemByLabel("Password").(*tview.InputField); ok {
		f.SetText("")
	}
}

// ShowOIDC renders the authorization URL as a QR code to open on a phone,
// and as text for a local browser.
func (av *AuthView) ShowOIDC(authURL string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "\nOpen this link to sign in:\n%s\n\n%s\n[::d]Waiting for the login callback...",
		escape(authURL), renderQR(authURL))
}

// ShowMessage displays a status message under the form.
func (av *AuthView) ShowMessage(msg string) {
	av.message.Clear()
	_, _ = fmt.Fprintf(av.message, "\n%s", escape(msg))
}
