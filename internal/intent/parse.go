package intent

import (
	"net/url"
	"strings"

	"github.com/matheus3301/mxt/internal/session"
	"maunium.net/go/mautrix/id"
)

const invitesSegment = "invites"

// ParseDeepLink parses <scheme>://open/<session>[/<!room>[/<$thread>[/<$event>]]]
// and <scheme>://open/<session>/invites.
func ParseDeepLink(scheme, raw string) (DeepLink, bool) {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, scheme) || u.Host != "open" {
		return nil, false
	}
	segments, ok := pathSegments(u)
	if !ok || len(segments) == 0 || len(segments) > 4 {
		return nil, false
	}
	sessionID := segments[0]
	if session.ValidateName(sessionID) != nil {
		return nil, false
	}
	if len(segments) == 1 {
		return Root{SessionID: sessionID}, true
	}
	if segments[1] == invitesSegment && len(segments) == 2 {
		return InviteList{SessionID: sessionID}, true
	}

	link := Room{SessionID: sessionID, RoomID: segments[1]}
	if !strings.HasPrefix(link.RoomID, "!") {
		return nil, false
	}
	if len(segments) > 2 && segments[2] != "" {
		if !strings.HasPrefix(segments[2], "$") {
			return nil, false
		}
		link.ThreadID = segments[2]
	}
	if len(segments) > 3 {
		if !strings.HasPrefix(segments[3], "$") {
			return nil, false
		}
		link.EventID = segments[3]
	}
	return link, true
}

// ParseOidcCallback classifies a redirect to redirectURI.
func ParseOidcCallback(redirectURI, raw string) (OidcAction, bool) {
	if redirectURI == "" || !strings.HasPrefix(raw, redirectURI) {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, false
	}
	q := u.Query()
	if len(q) == 0 && u.Fragment != "" {
		q, _ = url.ParseQuery(u.Fragment)
	}
	switch errCode := q.Get("error"); {
	case errCode == "access_denied":
		return GoBack{}, true
	case q.Get("code") != "":
		return Success{URL: raw}, true
	case errCode != "":
		return Failure{Error: errCode, Description: q.Get("error_description")}, true
	}
	return nil, false
}

// ParsePermalink parses matrix: URIs, matrix.to links and links of the
// given web client hosts. Anything else is a FallbackLink.
func ParsePermalink(raw string, webHosts []string) PermalinkData {
	if converted, ok := webClientToMatrixTo(raw, webHosts); ok {
		raw = converted
	}
	uri, err := id.ParseMatrixURIOrMatrixToURL(raw)
	if err != nil || uri == nil {
		return FallbackLink{URL: raw}
	}
	if userID := uri.UserID(); userID != "" {
		return UserLink{UserID: string(userID)}
	}
	link := RoomLink{Via: uri.Via, EventID: string(uri.EventID())}
	if roomID := uri.RoomID(); roomID != "" {
		link.RoomIDOrAlias = string(roomID)
	} else if alias := uri.RoomAlias(); alias != "" {
		link.RoomIDOrAlias = string(alias)
	} else {
		return FallbackLink{URL: raw}
	}
	return link
}

// RoomPermalink builds the matrix.to link of a room, preferring its
// canonical alias. via is only used for room id links.
func RoomPermalink(roomID, alias string, via ...string) string {
	if alias != "" {
		return id.RoomAlias(alias).URI().MatrixToURL()
	}
	return id.RoomID(roomID).URI(via...).MatrixToURL()
}

// UserPermalink builds the matrix.to link of a user.
func UserPermalink(userID string) string {
	return id.UserID(userID).URI().MatrixToURL()
}

// webClientToMatrixTo rewrites https://<host>/#/room/<id>... and
// https://<host>/#/user/<id> into the equivalent matrix.to link.
func webClientToMatrixTo(raw string, hosts []string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || !containsFold(hosts, u.Host) {
		return "", false
	}
	frag := u.EscapedFragment()
	for _, prefix := range []string{"/room/", "/user/"} {
		if rest, ok := strings.CutPrefix(frag, prefix); ok && rest != "" {
			return "https://matrix.to/#/" + rest, true
		}
	}
	return "", false
}

// ParseLoginLink parses https://<host>/...?account_provider=..&login_hint=..
func ParseLoginLink(host, raw string) (LoginParams, bool) {
	if host == "" {
		return LoginParams{}, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" || !strings.EqualFold(u.Host, host) {
		return LoginParams{}, false
	}
	q := u.Query()
	provider := q.Get("account_provider")
	if provider == "" {
		return LoginParams{}, false
	}
	return LoginParams{AccountProvider: provider, LoginHint: q.Get("login_hint")}, true
}

func pathSegments(u *url.URL) ([]string, bool) {
	trimmed := strings.Trim(u.EscapedPath(), "/")
	if trimmed == "" {
		return nil, true
	}
	parts := strings.Split(trimmed, "/")
	for i, p := range parts {
		s, err := url.PathUnescape(p)
		if err != nil {
			return nil, false
		}
		parts[i] = s
	}
	return parts, true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
