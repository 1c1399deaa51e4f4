package wxmsg

import (
	"strconv"
	"strings"
)

// ContentType discriminates the fixed set of message variants the
// platform emits. Values are the platform's own wire codes.
type ContentType int

const (
	TypeText           ContentType = 1
	TypeImage          ContentType = 2
	TypeVoice          ContentType = 3
	TypeSystem         ContentType = 5
	TypeLink           ContentType = 6
	TypeFile           ContentType = 8
	TypeContactCard    ContentType = 9
	TypeLocation       ContentType = 10
	TypeRedEnvelope    ContentType = 11
	TypeTransfer       ContentType = 12
	TypeMiniProgram    ContentType = 13
	TypeSticker        ContentType = 14
	TypeGroupAdmin     ContentType = 15
	TypeEnvelopeClaim  ContentType = 16
	TypeGroupSystem    ContentType = 17
	TypeArticle        ContentType = 18
	TypeVoiceCall      ContentType = 19
	TypeVideoCall      ContentType = 20
	TypeServiceNotice  ContentType = 21
	TypeQuote          ContentType = 22
	TypeGroupChain     ContentType = 23
	TypeVideoChannel   ContentType = 24
	TypeGroupLive      ContentType = 25
	TypePat            ContentType = 26
	TypeSharedMusic    ContentType = 27
	TypeVideoLive      ContentType = 28
	TypeServiceCard    ContentType = 29
	TypeEnterpriseCard ContentType = 30
	TypeUnsupported    ContentType = 99
)

// String returns the enum tag used in rule type filters and logs.
func (t ContentType) String() string {
	return strconv.Itoa(int(t))
}

// RawEvent is one webhook payload as decoded from JSON. The upstream
// platform controls the shape; extra or missing keys are tolerated.
type RawEvent map[string]any

// Extension is the structured payload embedded in non-text messages.
// The platform is inconsistent about key casing ("Title" vs "title"),
// so lookups fall back to a case-insensitive scan.
type Extension map[string]any

// Str returns the value under key rendered as a string, or "" when the
// key is absent.
func (e Extension) Str(key string) string {
	if e == nil {
		return ""
	}
	if v, ok := e[key]; ok {
		return stringify(v)
	}
	for k, v := range e {
		if strings.EqualFold(k, key) {
			return stringify(v)
		}
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		return ""
	}
}

// InboundMessage is the normalized, immutable snapshot of one event.
type InboundMessage struct {
	ActorID      string      `json:"actor_id"`
	RoomID       string      `json:"room_id"`
	SenderID     string      `json:"sender_id"`
	ContentType  ContentType `json:"content_type"`
	DisplayText  string      `json:"display_text"`
	Extension    Extension   `json:"extension,omitempty"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	IsSelf       bool        `json:"is_self"`
	IsGroup      bool        `json:"is_group"`
	IsMentioned  bool        `json:"is_mentioned"`
	MessageID    string      `json:"message_id"`
	CreatedAtMS  int64       `json:"created_at_ms"`
}

// MembershipKey is the authorization lookup key for the sender:
// plain sender id for direct chats, "sender#room" for groups.
func (m *InboundMessage) MembershipKey() string {
	if m.IsGroup {
		return m.SenderID + "#" + m.RoomID
	}
	return m.SenderID
}
