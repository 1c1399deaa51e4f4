package webhook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamir/gowxbot/internal/router"
	"github.com/kamir/gowxbot/internal/store"
	"github.com/kamir/gowxbot/internal/wxmsg"
)

type fakeRules struct{ rules []store.Rule }

func (f *fakeRules) ListActiveRules() ([]store.Rule, error) { return f.rules, nil }

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendText(ctx context.Context, receiver, content, aters, producer, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, receiver+"|"+content)
	return nil
}

func (f *fakeSender) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeDispatcher struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, key string, msg *wxmsg.InboundMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
}

func (f *fakeDispatcher) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

func newTestServer(rules []store.Rule) (*httptest.Server, *fakeSender, *fakeDispatcher) {
	sender := &fakeSender{}
	dispatcher := &fakeDispatcher{}
	rt := router.New(&fakeRules{rules: rules}, nil)
	srv := NewServer("", rt, dispatcher, sender, nil, nil)
	return httptest.NewServer(srv.Handler()), sender, dispatcher
}

func postEvent(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post event: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestEventRoutedAndReplied(t *testing.T) {
	ts, sender, dispatcher := newTestServer([]store.Rule{
		{ID: 1, Active: true, Whitelist: []string{"all"}, TypeFilter: "all",
			Pattern: `^ping$`, ReplyText: "pong", FunctionKey: "stats"},
	})
	defer ts.Close()

	resp := postEvent(t, ts.URL, `{"wechatid":"bot","friendid":"friend_1","contenttype":1,"content":"ping","msgsvrid":"m-1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(sender.all()) == 1 && len(dispatcher.all()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "friend_1|pong", sender.all()[0])
	assert.Equal(t, "stats", dispatcher.all()[0])
}

func TestSelfEchoSuppressed(t *testing.T) {
	ts, sender, _ := newTestServer([]store.Rule{
		{ID: 1, Active: true, Whitelist: []string{"all"}, TypeFilter: "all", Pattern: `.*`, ReplyText: "always"},
	})
	defer ts.Close()

	resp := postEvent(t, ts.URL, `{"wechatid":"bot","friendid":"friend_1","issend":"true","contenttype":1,"content":"my own message"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sender.all(), "self messages must not be routed")
}

func TestNoMatchIsSilent(t *testing.T) {
	ts, sender, dispatcher := newTestServer([]store.Rule{
		{ID: 1, Active: true, Whitelist: []string{"all"}, TypeFilter: "all", Pattern: `^specific$`, ReplyText: "hi"},
	})
	defer ts.Close()

	resp := postEvent(t, ts.URL, `{"friendid":"friend_1","contenttype":1,"content":"no rule for this"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sender.all())
	assert.Empty(t, dispatcher.all())
}

func TestConfiguredActorEnablesMentionRules(t *testing.T) {
	sender := &fakeSender{}
	dispatcher := &fakeDispatcher{}
	rt := router.New(&fakeRules{rules: []store.Rule{
		{ID: 1, Active: true, Whitelist: []string{"all"}, TypeFilter: "all",
			RequiresMention: true, Pattern: `.*`, ReplyText: "at your service"},
	}}, nil)
	srv := NewServer("", rt, dispatcher, sender, nil, nil)
	srv.SetActorID("bot_wxid")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// The event carries no wechatid; the configured actor id fills it
	// so the mention in ext can be recognized.
	resp := postEvent(t, ts.URL, `{"friendid":"g1@chatroom","contenttype":1,"content":"u1:\n@bot hello","ext":"bot_wxid"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Eventually(t, func() bool {
		return len(sender.all()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "g1@chatroom|at your service", sender.all()[0])
}

func TestBadJSONRejected(t *testing.T) {
	ts, _, _ := newTestServer(nil)
	defer ts.Close()

	resp := postEvent(t, ts.URL, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	ts, _, _ := newTestServer(nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
