// Package contacts keeps a snapshot of the platform's friend and
// chatroom listings. The cache is explicitly constructed and refreshed
// by its owner; there is no ambient global state.
package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kamir/gowxbot/internal/gateway"
)

const (
	listFriends   = 0
	listChatrooms = 1
)

// Lister fetches one contact listing from the gateway.
type Lister interface {
	ContactInfo(ctx context.Context, contentType int) ([]gateway.Contact, error)
}

type Cache struct {
	lister Lister
	logger *slog.Logger

	mu          sync.RWMutex
	friends     []gateway.Contact
	rooms       []gateway.Contact
	refreshedAt time.Time
}

func NewCache(lister Lister, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{lister: lister, logger: logger.With("component", "contacts")}
}

// Refresh replaces both snapshots from the gateway. Either listing
// failing leaves the previous snapshot intact.
func (c *Cache) Refresh(ctx context.Context) error {
	friends, err := c.lister.ContactInfo(ctx, listFriends)
	if err != nil {
		return fmt.Errorf("failed to refresh friends: %w", err)
	}
	rooms, err := c.lister.ContactInfo(ctx, listChatrooms)
	if err != nil {
		return fmt.Errorf("failed to refresh chatrooms: %w", err)
	}

	c.mu.Lock()
	c.friends = friends
	c.rooms = rooms
	c.refreshedAt = time.Now()
	c.mu.Unlock()

	c.logger.Info("contact cache refreshed", "friends", len(friends), "chatrooms", len(rooms))
	return nil
}

func (c *Cache) Friends() []gateway.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gateway.Contact, len(c.friends))
	copy(out, c.friends)
	return out
}

func (c *Cache) Chatrooms() []gateway.Contact {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]gateway.Contact, len(c.rooms))
	copy(out, c.rooms)
	return out
}

// RoomName resolves a chatroom id to its display name, or "" when the
// room is unknown to the snapshot.
func (c *Cache) RoomName(roomID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.rooms {
		if r.FriendID == roomID {
			if r.RoomName != "" {
				return r.RoomName
			}
			return r.NickName
		}
	}
	return ""
}

// LastRefreshed is the zero time until the first successful Refresh.
func (c *Cache) LastRefreshed() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.refreshedAt
}
