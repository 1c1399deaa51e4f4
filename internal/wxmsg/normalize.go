// Package wxmsg normalizes raw webhook events into typed messages.
package wxmsg

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// groupSuffix marks a room id as a group conversation.
const groupSuffix = "@chatroom"

// unsupportedText is the terminal fallback for anything the pipeline
// cannot render.
const unsupportedText = "[unsupported]"

// broadcastRe matches @everyone-style mentions, which never count as a
// direct mention of the actor.
var broadcastRe = regexp.MustCompile(`@(?:所有人|all|All)`)

// Normalize converts one raw webhook event into an InboundMessage. It
// never fails: malformed or missing fields degrade to the most
// conservative interpretation, and DisplayText is always non-empty.
func Normalize(raw RawEvent) *InboundMessage {
	m := &InboundMessage{
		ActorID:     rawString(raw, "wechatid"),
		RoomID:      rawString(raw, "friendid"),
		IsSelf:      rawString(raw, "issend") == "true",
		MessageID:   rawString(raw, "msgsvrid"),
		CreatedAtMS: rawInt64(raw, "createTime"),
	}
	m.IsGroup = strings.Contains(m.RoomID, groupSuffix)
	m.ContentType = ContentType(rawInt64(raw, "contenttype"))
	if m.ContentType <= 0 {
		m.ContentType = TypeText
	}

	content := rawString(raw, "content")
	mentionList := rawString(raw, "ext")

	// Resolve the sender and the working content string. Messages that
	// carry a structured payload arrive as "sender:{json}"; plain group
	// messages as "sender:\ncontent"; direct messages are used as-is
	// with the room id as sender.
	m.SenderID = m.RoomID
	working := content
	var ext Extension
	if ci := strings.Index(content, ":"); ci >= 0 && strings.Contains(content[ci+1:], "{") {
		if payload := parseExtension(content[ci+1:]); payload != nil {
			m.SenderID = content[:ci]
			ext = payload
			m.ThumbnailURL = ext.Str("Thumb")
			working = ""
		}
	}
	if ext == nil && m.IsGroup {
		if i := strings.Index(content, ":\n"); i >= 0 {
			m.SenderID = content[:i]
			working = content[i+2:]
		} else {
			m.SenderID = ""
		}
	}

	m.render(ext, content, working)

	if m.DisplayText == "" {
		m.DisplayText = unsupportedText
	}
	if m.ContentType != TypeText && m.Extension == nil {
		m.Extension = Extension{"content": content}
	}

	m.IsMentioned = m.IsGroup &&
		m.ActorID != "" &&
		strings.Contains(mentionList, m.ActorID) &&
		!broadcastRe.MatchString(m.DisplayText)

	return m
}

// render produces DisplayText, Extension and ThumbnailURL for the
// resolved content type. Exactly one formatting rule per variant; any
// code the platform adds later lands in the unsupported branch.
func (m *InboundMessage) render(ext Extension, content, working string) {
	m.Extension = ext
	switch m.ContentType {
	case TypeText:
		m.DisplayText = working
		m.Extension = nil
	case TypeImage:
		m.DisplayText = "[image]"
	case TypeVoice:
		// Voice events are "sender:http..." in groups; recover the
		// media URL from the original content string.
		m.Extension = nil
		if m.IsGroup {
			if i := strings.Index(content, ":http"); i >= 0 {
				m.SenderID = content[:i]
				m.Extension = Extension{"url": content[i+1:]}
			}
		} else {
			m.SenderID = m.RoomID
			m.Extension = Extension{"url": content}
		}
		m.DisplayText = "[voice]"
	case TypeSystem:
		m.DisplayText = "[system] " + firstNonEmpty(working, content)
	case TypeLink:
		m.DisplayText = fmt.Sprintf("[link] %s %s %s", ext.Str("Title"), ext.Str("TypeStr"), ext.Str("Source"))
	case TypeFile:
		m.DisplayText = "[file] " + ext.Str("Title")
	case TypeContactCard:
		m.DisplayText = "[contact-card] " + ext.Str("Nickname")
	case TypeLocation:
		m.DisplayText = "[location] " + ext.Str("Title")
	case TypeRedEnvelope:
		m.DisplayText = "[red-envelope] " + ext.Str("Title")
	case TypeTransfer:
		m.DisplayText = fmt.Sprintf("[transfer%s] %s %s", ext.Str("PaySubType"), ext.Str("Title"), ext.Str("Feedesc"))
	case TypeMiniProgram:
		m.DisplayText = fmt.Sprintf("[mini-program] | %s | %s", ext.Str("Source"), ext.Str("Title"))
	case TypeSticker:
		m.DisplayText = "[sticker]"
	case TypeGroupAdmin:
		m.DisplayText = "[group-admin]"
	case TypeEnvelopeClaim:
		m.DisplayText = "[envelope-claimed] " + ext.Str("Title")
	case TypeGroupSystem:
		m.DisplayText = "[group-system] " + ext.Str("title")
		if user := ext.Str("user"); user != "" {
			m.SenderID = user
		}
	case TypeArticle:
		m.DisplayText = "[article] " + ext.Str("Title")
	case TypeVoiceCall:
		m.DisplayText = "[voice-call]"
	case TypeVideoCall:
		m.DisplayText = "[video-call]"
	case TypeServiceNotice:
		m.DisplayText = "[service-notice] " + ext.Str("title")
	case TypeQuote:
		m.DisplayText = fmt.Sprintf("%s \n [quote] %s: %s", ext.Str("title"), ext.Str("displayName"), ext.Str("content"))
	case TypeGroupChain:
		m.DisplayText = "[group-chain]"
	case TypeVideoChannel:
		m.DisplayText = "[video-channel] " + ext.Str("des")
	case TypeGroupLive:
		m.DisplayText = "[group-live] " + ext.Str("Title")
	case TypePat:
		m.DisplayText = "[pat] " + firstNonEmpty(working, content)
	case TypeSharedMusic:
		m.DisplayText = "[shared-music]"
	case TypeVideoLive:
		m.DisplayText = "[video-live]"
	case TypeServiceCard:
		m.DisplayText = "[service-card] " + ext.Str("Title")
	case TypeEnterpriseCard:
		m.DisplayText = "[enterprise-card] " + ext.Str("Title")
	case TypeUnsupported:
		m.DisplayText = unsupportedText
	default:
		m.ContentType = TypeUnsupported
		m.DisplayText = unsupportedText
	}
}

func parseExtension(s string) Extension {
	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil
	}
	return Extension(payload)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func rawString(raw RawEvent, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func rawInt64(raw RawEvent, key string) int64 {
	switch v := raw[key].(type) {
	case float64:
		return int64(v)
	case int:
		return int64(v)
	case int64:
		return v
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
