package wxmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePlainDirectText(t *testing.T) {
	msg := Normalize(RawEvent{
		"wechatid":    "bot_wxid",
		"friendid":    "friend_1",
		"issend":      "false",
		"contenttype": float64(1),
		"content":     "hello there",
		"msgsvrid":    "m-1",
		"createTime":  float64(1718000000000),
	})

	assert.Equal(t, "bot_wxid", msg.ActorID)
	assert.Equal(t, "friend_1", msg.RoomID)
	assert.Equal(t, "friend_1", msg.SenderID)
	assert.Equal(t, TypeText, msg.ContentType)
	assert.Equal(t, "hello there", msg.DisplayText)
	assert.Nil(t, msg.Extension)
	assert.False(t, msg.IsGroup)
	assert.False(t, msg.IsSelf)
	assert.Equal(t, int64(1718000000000), msg.CreatedAtMS)
}

func TestNormalizeGroupTextSplitsSender(t *testing.T) {
	msg := Normalize(RawEvent{
		"friendid":    "12345@chatroom",
		"contenttype": float64(1),
		"content":     "alice_wxid:\ngood morning",
	})

	assert.True(t, msg.IsGroup)
	assert.Equal(t, "alice_wxid", msg.SenderID)
	assert.Equal(t, "good morning", msg.DisplayText)
}

func TestNormalizeMiniProgram(t *testing.T) {
	msg := Normalize(RawEvent{
		"friendid":    "12345@chatroom",
		"contenttype": float64(13),
		"content":     `alice_wxid:{"Source":"app","Title":"Pay","Thumb":"http://x/y.png"}`,
	})

	assert.Equal(t, TypeMiniProgram, msg.ContentType)
	assert.Equal(t, "[mini-program] | app | Pay", msg.DisplayText)
	assert.Equal(t, "http://x/y.png", msg.ThumbnailURL)
	assert.Equal(t, "alice_wxid", msg.SenderID)
	require.NotNil(t, msg.Extension)
	assert.Equal(t, "app", msg.Extension.Str("Source"))
}

func TestNormalizeDisplayTable(t *testing.T) {
	tests := []struct {
		name    string
		event   RawEvent
		display string
	}{
		{
			name: "link",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(6),
				"content":     `f1:{"Title":"Weekly","TypeStr":"news","Source":"feed"}`,
			},
			display: "[link] Weekly news feed",
		},
		{
			name: "file",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(8),
				"content":     `f1:{"Title":"report.pdf"}`,
			},
			display: "[file] report.pdf",
		},
		{
			name: "transfer",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(12),
				"content":     `f1:{"PaySubType":1,"Title":"¥20.00","Feedesc":"lunch"}`,
			},
			display: "[transfer1] ¥20.00 lunch",
		},
		{
			name: "quote",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(22),
				"content":     `f1:{"title":"ok","displayName":"Bob","content":"see you"}`,
			},
			display: "ok \n [quote] Bob: see you",
		},
		{
			name: "system direct",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(5),
				"content":     "you added a friend",
			},
			display: "[system] you added a friend",
		},
		{
			name: "video channel",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(24),
				"content":     `f1:{"des":"clip of the day"}`,
			},
			display: "[video-channel] clip of the day",
		},
		{
			name: "explicit unsupported",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(99),
				"content":     "whatever",
			},
			display: "[unsupported]",
		},
		{
			name: "unknown code falls through",
			event: RawEvent{
				"friendid":    "f1",
				"contenttype": float64(57),
				"content":     "future format",
			},
			display: "[unsupported]",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := Normalize(tc.event)
			assert.Equal(t, tc.display, msg.DisplayText)
			assert.NotEmpty(t, msg.DisplayText)
		})
	}
}

func TestNormalizeGroupSystemOverridesSender(t *testing.T) {
	msg := Normalize(RawEvent{
		"friendid":    "12345@chatroom",
		"contenttype": float64(17),
		"content":     `12345@chatroom:{"title":"Bob joined the group","user":"bob_wxid"}`,
	})

	assert.Equal(t, "[group-system] Bob joined the group", msg.DisplayText)
	assert.Equal(t, "bob_wxid", msg.SenderID)
}

func TestNormalizeVoiceRecoversURL(t *testing.T) {
	msg := Normalize(RawEvent{
		"friendid":    "12345@chatroom",
		"contenttype": float64(3),
		"content":     "alice_wxid:http://media/host/a.amr",
	})

	assert.Equal(t, "[voice]", msg.DisplayText)
	assert.Equal(t, "alice_wxid", msg.SenderID)
	require.NotNil(t, msg.Extension)
	assert.Equal(t, "http://media/host/a.amr", msg.Extension.Str("url"))
}

func TestNormalizeMention(t *testing.T) {
	base := RawEvent{
		"wechatid":    "bot_wxid",
		"friendid":    "12345@chatroom",
		"contenttype": float64(1),
		"content":     "alice_wxid:\n@bot hello",
		"ext":         "bot_wxid,other_wxid",
	}

	msg := Normalize(base)
	assert.True(t, msg.IsMentioned)

	direct := Normalize(RawEvent{
		"wechatid":    "bot_wxid",
		"friendid":    "friend_1",
		"contenttype": float64(1),
		"content":     "@bot hello",
		"ext":         "bot_wxid",
	})
	assert.False(t, direct.IsMentioned, "mentions only exist in groups")

	broadcast := RawEvent{
		"wechatid":    "bot_wxid",
		"friendid":    "12345@chatroom",
		"contenttype": float64(1),
		"content":     "alice_wxid:\n@所有人 meeting at 9",
		"ext":         "bot_wxid",
	}
	assert.False(t, Normalize(broadcast).IsMentioned, "@everyone is not a mention")

	notListed := Normalize(RawEvent{
		"wechatid":    "bot_wxid",
		"friendid":    "12345@chatroom",
		"contenttype": float64(1),
		"content":     "alice_wxid:\nhello",
		"ext":         "other_wxid",
	})
	assert.False(t, notListed.IsMentioned)
}

func TestNormalizeTotality(t *testing.T) {
	events := []RawEvent{
		nil,
		{},
		{"content": ""},
		{"contenttype": "not-a-number"},
		{"contenttype": float64(13), "content": "alice:{not json"},
		{"friendid": "x@chatroom", "content": "no separator"},
		{"wechatid": 42, "friendid": true, "issend": 1, "createTime": "soon"},
	}

	for _, ev := range events {
		msg := Normalize(ev)
		require.NotNil(t, msg)
		assert.NotEmpty(t, msg.DisplayText)
	}
}

func TestNormalizeBadExtensionFallsBackToText(t *testing.T) {
	msg := Normalize(RawEvent{
		"friendid":    "f1",
		"contenttype": float64(1),
		"content":     "price: {100}",
	})

	// "{100}" is not valid JSON, so the whole string stays plain text.
	assert.Equal(t, "price: {100}", msg.DisplayText)
	assert.Nil(t, msg.Extension)
}

func TestMembershipKey(t *testing.T) {
	group := &InboundMessage{SenderID: "alice", RoomID: "g@chatroom", IsGroup: true}
	assert.Equal(t, "alice#g@chatroom", group.MembershipKey())

	direct := &InboundMessage{SenderID: "alice", RoomID: "alice"}
	assert.Equal(t, "alice", direct.MembershipKey())
}
