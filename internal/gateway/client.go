// Package gateway talks to the upstream chat platform's HTTP gateway.
// Send helpers build the form payload and hand it to the durable
// queue; they never call the network themselves.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	sendPath     = "send_message_250514.html"
	contactPath  = "contact_info_250514.html"
	downloadPath = "trigger_download_file.html"
)

// ErrNoCredential is returned when no gateway token is provisioned.
var ErrNoCredential = errors.New("gateway credential not provisioned")

// StaticTokenSource serves a pre-provisioned, long-lived credential.
// Refresh is a placeholder that returns the cached value; a stale
// token makes every drain tick fail until the operator rotates it.
type StaticTokenSource struct {
	token string
}

func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

func (s *StaticTokenSource) CheckToken() (string, error) {
	if strings.TrimSpace(s.token) == "" {
		return "", ErrNoCredential
	}
	return s.token, nil
}

// Enqueuer is the durable queue's producer side.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload url.Values, destination, producer, messageID string) error
}

// Contact is one friend entry from the gateway's contact listing.
type Contact struct {
	FriendID string `json:"friendid"`
	WechatNo string `json:"friend_wechatno"`
	Memo     string `json:"memo"`
	NickName string `json:"nick_name"`
	RoomName string `json:"room_name,omitempty"`
}

type Client struct {
	baseURL string
	queue   Enqueuer
	tokens  interface{ CheckToken() (string, error) }
	httpCli *http.Client
}

func NewClient(baseURL string, q Enqueuer, tokens interface{ CheckToken() (string, error) }) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Client{
		baseURL: baseURL,
		queue:   q,
		tokens:  tokens,
		httpCli: &http.Client{Timeout: 30 * time.Second},
	}
}

// SendURL is the delivery destination for queued messages.
func (c *Client) SendURL() string {
	return c.baseURL + sendPath
}

// SendText enqueues a text message to receiver. aters carries the
// wxids to @-mention in a group, or "".
func (c *Client) SendText(ctx context.Context, receiver, content, aters, producer, messageID string) error {
	form := url.Values{}
	form.Set("friend_id", receiver)
	form.Set("message", content)
	form.Set("remark", aters)
	form.Set("content_type", "1")
	return c.queue.Enqueue(ctx, form, c.SendURL(), producer, messageID)
}

// SendImage enqueues an image by URL or path.
func (c *Client) SendImage(ctx context.Context, receiver, image, producer, messageID string) error {
	form := url.Values{}
	form.Set("friend_id", receiver)
	form.Set("message", image)
	form.Set("content_type", "2")
	return c.queue.Enqueue(ctx, form, c.SendURL(), producer, messageID)
}

// SendRichText enqueues a link card.
func (c *Client) SendRichText(ctx context.Context, receiver, description, thumb, title, linkURL, producer, messageID string) error {
	card, err := json.Marshal(map[string]string{
		"des":   description,
		"thumb": thumb,
		"title": title,
		"url":   linkURL,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal rich text card: %w", err)
	}
	form := url.Values{}
	form.Set("friend_id", receiver)
	form.Set("message", string(card))
	form.Set("content_type", "6")
	return c.queue.Enqueue(ctx, form, c.SendURL(), producer, messageID)
}

// ContactInfo fetches the friend (contentType 0) or chatroom
// (contentType 1) listing. Unlike sends, listings are synchronous
// reads and bypass the queue.
func (c *Client) ContactInfo(ctx context.Context, contentType int) ([]Contact, error) {
	token, err := c.tokens.CheckToken()
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("content_type", strconv.Itoa(contentType))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+contactPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build contact request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("contact request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read contact response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %d listing contacts", resp.StatusCode)
	}

	var contacts []Contact
	if err := json.Unmarshal(body, &contacts); err != nil {
		return nil, fmt.Errorf("failed to decode contact listing: %w", err)
	}
	return contacts, nil
}

// TriggerDownload asks the gateway to stage a file message for
// download and returns the resulting URL once ready.
func (c *Client) TriggerDownload(ctx context.Context, msgSvrID string) (string, error) {
	token, err := c.tokens.CheckToken()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("msg_svr_id", msgSvrID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+downloadPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build download request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("download trigger failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read download response: %w", err)
	}

	var out struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		URL     string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode download response: %w", err)
	}
	if out.URL == "" {
		return "", fmt.Errorf("file not ready: %s", out.Message)
	}
	return out.URL, nil
}
