package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Lifecycle(t *testing.T) {
	r := New()

	r.Register("c1")
	conn, ok := r.Lookup("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", conn.ID)
	assert.False(t, conn.Authenticated())
	assert.Empty(t, conn.RoomID)

	require.True(t, r.Authenticate("c1", "user-1", "alice"))
	conn, ok = r.Lookup("c1")
	require.True(t, ok)
	assert.True(t, conn.Authenticated())
	assert.Equal(t, "user-1", conn.UserID)
	assert.Equal(t, "alice", conn.Username)

	r.SetRoom("c1", "room-9")
	conn, _ = r.Lookup("c1")
	assert.Equal(t, "room-9", conn.RoomID)

	r.SetRoom("c1", "")
	conn, _ = r.Lookup("c1")
	assert.Empty(t, conn.RoomID)

	r.Remove("c1")
	_, ok = r.Lookup("c1")
	assert.False(t, ok)
}

func TestRegistry_AuthenticateUnknownConnection(t *testing.T) {
	r := New()
	assert.False(t, r.Authenticate("ghost", "user-1", "alice"))
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := New()
	r.Register("c1")
	r.Authenticate("c1", "user-1", "alice")

	conn, _ := r.Lookup("c1")
	conn.UserID = "mutated"

	again, _ := r.Lookup("c1")
	assert.Equal(t, "user-1", again.UserID)
}

func TestRegistry_Counts(t *testing.T) {
	r := New()
	r.Register("c1")
	r.Register("c2")
	r.Register("c3")
	r.Authenticate("c2", "user-2", "bob")

	total, authed := r.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, authed)
}
