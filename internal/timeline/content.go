package timeline

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/matheus3301/mxt/internal/store"
)

// ContentKind discriminates Content.
type ContentKind string

const (
	KindMessage         ContentKind = store.KindMessage
	KindMembership      ContentKind = store.KindMembership
	KindProfileChange   ContentKind = store.KindProfileChange
	KindState           ContentKind = store.KindState
	KindRedacted        ContentKind = store.KindRedacted
	KindUnableToDecrypt ContentKind = store.KindUnableToDecrypt
	KindUnknown         ContentKind = store.KindUnknown
)

// Content is the kind-specific payload of an event. Only the fields of the
// active Kind are set.
type Content struct {
	Kind ContentKind `json:"kind"`

	// Message
	MsgType       string `json:"msgtype,omitempty"`
	Body          string `json:"body,omitempty"`
	FormattedBody string `json:"formatted_body,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	FileSize      int64  `json:"file_size,omitempty"`

	// Membership; Target is the affected user.
	Membership     string `json:"membership,omitempty"`
	PrevMembership string `json:"prev_membership,omitempty"`
	Target         string `json:"target,omitempty"`
	TargetName     string `json:"target_name,omitempty"`

	// ProfileChange
	DisplayName     string `json:"display_name,omitempty"`
	PrevDisplayName string `json:"prev_display_name,omitempty"`
	AvatarChanged   bool   `json:"avatar_changed,omitempty"`

	// State; Summary is a sentence fragment such as "changed the topic".
	StateType string `json:"state_type,omitempty"`
	Summary   string `json:"summary,omitempty"`
}

// Groupable reports whether the content is room noise that can be collapsed.
func (c Content) Groupable() bool {
	switch c.Kind {
	case KindMembership, KindProfileChange, KindState:
		return true
	}
	return false
}

// Text renders the content as one line. actor is the sender's display name
// and actorID its user id.
func (c Content) Text(actor, actorID string) string {
	switch c.Kind {
	case KindMessage:
		return c.messageText(actor)
	case KindMembership:
		return c.membershipText(actor, actorID)
	case KindProfileChange:
		return c.profileText(actor)
	case KindState:
		if c.Summary == "" {
			return fmt.Sprintf("%s changed %s", actor, c.StateType)
		}
		return actor + " " + c.Summary
	case KindRedacted:
		return "Message deleted"
	case KindUnableToDecrypt:
		return "Unable to decrypt message"
	default:
		return "Unsupported event"
	}
}

func (c Content) messageText(actor string) string {
	switch c.MsgType {
	case "m.emote":
		return "* " + actor + " " + c.Body
	case "m.image", "m.file", "m.audio", "m.video":
		name := c.FileName
		if name == "" {
			name = c.Body
		}
		if c.FileSize > 0 {
			return fmt.Sprintf("[%s] %s (%s)", c.MsgType[2:], name, humanize.Bytes(uint64(c.FileSize)))
		}
		return fmt.Sprintf("[%s] %s", c.MsgType[2:], name)
	default:
		return c.Body
	}
}

func (c Content) membershipText(actor, actorID string) string {
	target := c.TargetName
	if target == "" {
		target = c.Target
	}
	self := c.Target == "" || c.Target == actorID
	if target == "" {
		target = actor
	}
	switch c.Membership {
	case store.MembershipJoin:
		return target + " joined"
	case store.MembershipInvite:
		return actor + " invited " + target
	case store.MembershipBan:
		return actor + " banned " + target
	case store.MembershipKnock:
		return target + " asked to join"
	case store.MembershipLeave:
		switch {
		case self && c.PrevMembership == store.MembershipInvite:
			return target + " rejected the invite"
		case self:
			return target + " left"
		case c.PrevMembership == store.MembershipBan:
			return actor + " unbanned " + target
		case c.PrevMembership == store.MembershipInvite:
			return actor + " withdrew " + target + "'s invitation"
		default:
			return actor + " removed " + target
		}
	}
	return actor + " changed membership of " + target
}

func (c Content) profileText(actor string) string {
	switch {
	case c.DisplayName != c.PrevDisplayName && c.PrevDisplayName == "":
		return fmt.Sprintf("%s set their display name to %s", actor, c.DisplayName)
	case c.DisplayName != c.PrevDisplayName && c.DisplayName == "":
		return fmt.Sprintf("%s removed their display name (%s)", actor, c.PrevDisplayName)
	case c.DisplayName != c.PrevDisplayName:
		return fmt.Sprintf("%s changed their display name to %s", c.PrevDisplayName, c.DisplayName)
	case c.AvatarChanged:
		return actor + " changed their avatar"
	}
	return actor + " updated their profile"
}

func contentFromStore(e store.Event) Content {
	c := Content{Kind: ContentKind(e.Kind)}
	switch c.Kind {
	case KindMessage:
		c.MsgType = e.MsgType
		c.Body = e.Body
		c.FormattedBody = e.FormattedBody
		c.FileName = e.FileName
		c.FileSize = e.FileSize
	case KindMembership:
		c.Membership = e.Membership
		c.PrevMembership = e.PrevMembership
		c.Target = e.StateKey
		c.TargetName = e.DisplayName
	case KindProfileChange:
		c.DisplayName = e.DisplayName
		c.PrevDisplayName = e.PrevDisplayName
		c.AvatarChanged = e.AvatarChanged
	case KindState:
		c.StateType = e.Type
		c.Summary = e.Body
	case KindRedacted, KindUnableToDecrypt:
	default:
		c.Kind = KindUnknown
		c.StateType = e.Type
	}
	return c
}
