// ABOUTME: Classification of raw OneBot v11 payloads into event variants
// ABOUTME: Builds the tagged event set once at the transport boundary

package onebot

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/2389/blockgate/internal/event"
)

// rawEvent covers the superset of OneBot v11 fields blockgate reads.
// Unknown event shapes classify to nil and are dropped.
type rawEvent struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	NoticeType  string `json:"notice_type"`
	SubType     string `json:"sub_type"`

	SelfID   int64  `json:"self_id"`
	UserID   int64  `json:"user_id"`
	GroupID  int64  `json:"group_id"`
	TargetID int64  `json:"target_id"`
	Duration int64  `json:"duration"`
	RawMsg   string `json:"raw_message"`
}

var (
	atCode  = regexp.MustCompile(`\[CQ:at,qq=(\d+)\]`)
	anyCode = regexp.MustCompile(`\[CQ:[^\]]*\]`)
)

// classify maps one raw payload to an event, or nil for payloads the
// gate has no interest in (heartbeats, requests, other notices).
func classify(data []byte) *event.Event {
	var raw rawEvent
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	switch raw.PostType {
	case "message":
		ev := &event.Event{
			SelfID:   strconv.FormatInt(raw.SelfID, 10),
			UserID:   strconv.FormatInt(raw.UserID, 10),
			Text:     plainText(raw.RawMsg),
			Mentions: mentions(raw.RawMsg),
		}
		if raw.MessageType == "group" {
			ev.Kind = event.KindGroupMessage
			ev.GroupID = strconv.FormatInt(raw.GroupID, 10)
		} else {
			ev.Kind = event.KindPrivateMessage
		}
		return ev

	case "notice":
		switch {
		case raw.NoticeType == "notify" && raw.SubType == "poke":
			ev := &event.Event{
				Kind:     event.KindPoke,
				SelfID:   strconv.FormatInt(raw.SelfID, 10),
				UserID:   strconv.FormatInt(raw.UserID, 10),
				TargetID: strconv.FormatInt(raw.TargetID, 10),
			}
			if raw.GroupID != 0 {
				ev.GroupID = strconv.FormatInt(raw.GroupID, 10)
			}
			return ev

		case raw.NoticeType == "group_ban" && raw.SubType == "ban":
			// user_id here is the muted account; the gate reacts only
			// when that is the bot itself.
			return &event.Event{
				Kind:     event.KindMuteNotice,
				SelfID:   strconv.FormatInt(raw.SelfID, 10),
				UserID:   strconv.FormatInt(raw.UserID, 10),
				GroupID:  strconv.FormatInt(raw.GroupID, 10),
				TargetID: strconv.FormatInt(raw.UserID, 10),
				Duration: time.Duration(raw.Duration) * time.Second,
			}
		}
	}
	return nil
}

// mentions extracts the user ids of [CQ:at] segments.
func mentions(rawMsg string) []string {
	matches := atCode.FindAllStringSubmatch(rawMsg, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m[1])
	}
	return ids
}

// plainText strips CQ code segments, leaving the typed text.
func plainText(rawMsg string) string {
	return strings.TrimSpace(anyCode.ReplaceAllString(rawMsg, ""))
}
