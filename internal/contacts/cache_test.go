package contacts

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamir/gowxbot/internal/gateway"
)

type fakeLister struct {
	friends []gateway.Contact
	rooms   []gateway.Contact
	fail    bool
}

func (f *fakeLister) ContactInfo(ctx context.Context, contentType int) ([]gateway.Contact, error) {
	if f.fail {
		return nil, errors.New("gateway down")
	}
	if contentType == listChatrooms {
		return f.rooms, nil
	}
	return f.friends, nil
}

func TestRefreshAndLookup(t *testing.T) {
	lister := &fakeLister{
		friends: []gateway.Contact{{FriendID: "alice", NickName: "Alice"}},
		rooms:   []gateway.Contact{{FriendID: "g1@chatroom", RoomName: "Class of 2026"}},
	}
	c := NewCache(lister, nil)

	assert.True(t, c.LastRefreshed().IsZero())
	require.NoError(t, c.Refresh(context.Background()))

	assert.Len(t, c.Friends(), 1)
	assert.Equal(t, "Class of 2026", c.RoomName("g1@chatroom"))
	assert.Equal(t, "", c.RoomName("unknown@chatroom"))
	assert.False(t, c.LastRefreshed().IsZero())
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	lister := &fakeLister{
		friends: []gateway.Contact{{FriendID: "alice"}},
	}
	c := NewCache(lister, nil)
	require.NoError(t, c.Refresh(context.Background()))

	lister.fail = true
	err := c.Refresh(context.Background())
	require.Error(t, err)
	assert.Len(t, c.Friends(), 1, "failed refresh must not clear the snapshot")
}
