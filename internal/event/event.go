// ABOUTME: Tagged event variants for the inbound pipeline
// ABOUTME: Each kind carries only the fields valid for that kind

package event

import "time"

// Kind identifies one of the closed set of event variants.
type Kind int

const (
	// KindGroupMessage is a text message sent in a group conversation.
	KindGroupMessage Kind = iota
	// KindPrivateMessage is a text message sent in a private conversation.
	KindPrivateMessage
	// KindPoke is a poke notification aimed at some user.
	KindPoke
	// KindMuteNotice is a group mute notification; the gate only reacts
	// when the muted user is the bot itself.
	KindMuteNotice
)

// String returns the kind name for logging.
func (k Kind) String() string {
	switch k {
	case KindGroupMessage:
		return "group_message"
	case KindPrivateMessage:
		return "private_message"
	case KindPoke:
		return "poke"
	case KindMuteNotice:
		return "mute_notice"
	default:
		return "unknown"
	}
}

// Event is one inbound event from the transport. GroupID is empty for
// private-conversation events; Text is empty for notices; Duration and
// TargetID are set only for mute notices.
type Event struct {
	Kind     Kind
	SelfID   string
	UserID   string
	GroupID  string
	Text     string
	Mentions []string
	TargetID string
	Duration time.Duration
}

// IsGroup reports whether the event originated in a group conversation.
func (e *Event) IsGroup() bool {
	return e.GroupID != ""
}

// ConversationKey identifies the conversation an event belongs to, for
// correlating multi-turn exchanges like reset confirmations.
func (e *Event) ConversationKey() string {
	if e.IsGroup() {
		return e.SelfID + "/g" + e.GroupID
	}
	return e.SelfID + "/u" + e.UserID
}

// Projection is the normalized view the gate decides on, built once at
// the transport boundary instead of probing event fields per handler.
type Projection struct {
	SelfID  string
	UserID  string
	GroupID string
	IsGroup bool
}

// Project builds the gate projection for an event.
func (e *Event) Project() Projection {
	return Projection{
		SelfID:  e.SelfID,
		UserID:  e.UserID,
		GroupID: e.GroupID,
		IsGroup: e.IsGroup(),
	}
}
