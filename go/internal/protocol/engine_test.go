package protocol

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micdrop/karaoke-server/go/internal/auth"
	"github.com/micdrop/karaoke-server/go/internal/catalog"
	"github.com/micdrop/karaoke-server/go/internal/registry"
	"github.com/micdrop/karaoke-server/go/internal/rooms"
)

type mockSender struct {
	id string

	mu      sync.Mutex
	sent    []map[string]any
	sendErr error
}

func (m *mockSender) ID() string { return m.id }

func (m *mockSender) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *mockSender) messages() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.sent...)
}

func (m *mockSender) last(t *testing.T) map[string]any {
	t.Helper()
	msgs := m.messages()
	require.NotEmpty(t, msgs, "connection %s received no messages", m.id)
	return msgs[len(msgs)-1]
}

func (m *mockSender) ofType(msgType string) []map[string]any {
	var out []map[string]any
	for _, msg := range m.messages() {
		if msg["type"] == msgType {
			out = append(out, msg)
		}
	}
	return out
}

type testEnv struct {
	engine   *Engine
	verifier *auth.HMACVerifier
	clock    *clockwork.FakeClock
	registry *registry.Registry
	store    *rooms.Store
	nextID   int
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := clockwork.NewFakeClock()
	verifier := auth.NewHMACVerifier("test-secret", clock)
	reg := registry.New()
	store := rooms.NewStore(clock)
	cat := catalog.New(catalog.DefaultSongs())
	return &testEnv{
		engine:   NewEngine(verifier, reg, store, cat, clock),
		verifier: verifier,
		clock:    clock,
		registry: reg,
		store:    store,
	}
}

func (env *testEnv) connect(t *testing.T) *mockSender {
	t.Helper()
	env.nextID++
	conn := &mockSender{id: fmt.Sprintf("conn-%d", env.nextID)}
	env.engine.HandleConnect(conn)
	return conn
}

func (env *testEnv) token(t *testing.T, userID, username string) string {
	t.Helper()
	token, err := env.verifier.Sign(auth.Claims{
		UserID:   userID,
		Username: username,
		Role:     "user",
		IssuedAt: env.clock.Now().Unix(),
		Expiry:   env.clock.Now().Add(24 * time.Hour).Unix(),
	})
	require.NoError(t, err)
	return token
}

func (env *testEnv) sendMsg(t *testing.T, conn *mockSender, msg ClientMessage) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	env.engine.HandleMessage(conn, data)
}

func (env *testEnv) authedConn(t *testing.T, userID, username string) *mockSender {
	t.Helper()
	conn := env.connect(t)
	env.sendMsg(t, conn, ClientMessage{
		Type:     TypeAuthenticate,
		Token:    env.token(t, userID, username),
		UserID:   userID,
		Username: username,
	})
	require.Equal(t, TypeAuthenticated, conn.last(t)["type"])
	return conn
}

func TestEngine_Authenticate(t *testing.T) {
	env := newTestEnv(t)

	t.Run("missing fields", func(t *testing.T) {
		conn := env.connect(t)
		env.sendMsg(t, conn, ClientMessage{Type: TypeAuthenticate, Token: "x"})
		last := conn.last(t)
		assert.Equal(t, TypeError, last["type"])
		assert.Equal(t, CodeMalformed, last["code"])
		assert.Equal(t, "Missing authentication data", last["message"])
	})

	t.Run("invalid token", func(t *testing.T) {
		conn := env.connect(t)
		env.sendMsg(t, conn, ClientMessage{
			Type: TypeAuthenticate, Token: "not.a.token", UserID: "u1", Username: "alice",
		})
		last := conn.last(t)
		assert.Equal(t, TypeError, last["type"])
		assert.Equal(t, CodeAuthInvalid, last["code"])
	})

	t.Run("expired token", func(t *testing.T) {
		conn := env.connect(t)
		token := env.token(t, "u1", "alice")
		env.clock.Advance(48 * time.Hour)
		env.sendMsg(t, conn, ClientMessage{
			Type: TypeAuthenticate, Token: token, UserID: "u1", Username: "alice",
		})
		assert.Equal(t, CodeAuthInvalid, conn.last(t)["code"])
	})

	t.Run("success", func(t *testing.T) {
		conn := env.connect(t)
		env.sendMsg(t, conn, ClientMessage{
			Type: TypeAuthenticate, Token: env.token(t, "u1", "alice"), UserID: "u1", Username: "alice",
		})
		last := conn.last(t)
		assert.Equal(t, TypeAuthenticated, last["type"])
		assert.Equal(t, "u1", last["userId"])
		assert.Equal(t, "alice", last["username"])
	})
}

func TestEngine_ReauthenticateRejected(t *testing.T) {
	env := newTestEnv(t)
	conn := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, conn, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	roomID := conn.last(t)["roomId"].(string)

	env.sendMsg(t, conn, ClientMessage{
		Type: TypeAuthenticate, Token: env.token(t, "u2", "bob"), UserID: "u2", Username: "bob",
	})
	last := conn.last(t)
	assert.Equal(t, TypeError, last["type"])
	assert.Equal(t, CodeAuthInvalid, last["code"])

	// identity untouched
	c, ok := env.registry.Lookup(conn.ID())
	require.True(t, ok)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "alice", c.Username)

	// leaving under the original identity still empties and deletes the room
	env.sendMsg(t, conn, ClientMessage{Type: TypeLeaveRoom})
	_, ok = env.store.Get(roomID)
	assert.False(t, ok, "room should be deleted once its only member left")
}

func TestEngine_RequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)

	for _, msgType := range []string{TypeCreateRoom, TypeJoinRoom, TypePlaySong, TypeSyncTime, TypeStopSong, TypeLeaveRoom} {
		t.Run(msgType, func(t *testing.T) {
			conn := env.connect(t)
			env.sendMsg(t, conn, ClientMessage{Type: msgType, RoomID: "r", SongID: "1"})
			last := conn.last(t)
			assert.Equal(t, TypeError, last["type"])
			assert.Equal(t, CodeNotAuthenticated, last["code"])
		})
	}
}

func TestEngine_MalformedMessages(t *testing.T) {
	env := newTestEnv(t)
	conn := env.connect(t)

	env.engine.HandleMessage(conn, []byte("{not json"))
	last := conn.last(t)
	assert.Equal(t, TypeError, last["type"])
	assert.Equal(t, CodeMalformed, last["code"])

	env.sendMsg(t, conn, ClientMessage{Type: "warp_speed"})
	last = conn.last(t)
	assert.Equal(t, CodeMalformed, last["code"])
	assert.Equal(t, "Unknown message type", last["message"])

	// protocol errors never drop the connection
	_, ok := env.registry.Lookup(conn.ID())
	assert.True(t, ok)
}

func TestEngine_CreateRoom(t *testing.T) {
	env := newTestEnv(t)
	conn := env.authedConn(t, "u1", "alice")

	env.sendMsg(t, conn, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	created := conn.last(t)
	require.Equal(t, TypeRoomCreated, created["type"])
	assert.Equal(t, "Party", created["roomName"])
	assert.EqualValues(t, 1, created["participantCount"])
	roomID := created["roomId"].(string)
	require.NotEmpty(t, roomID)

	snap, ok := env.store.Get(roomID)
	require.True(t, ok)
	assert.Equal(t, "u1", snap.HostUserID)

	t.Run("second create while in a room", func(t *testing.T) {
		env.sendMsg(t, conn, ClientMessage{Type: TypeCreateRoom, RoomName: "Another"})
		last := conn.last(t)
		assert.Equal(t, TypeError, last["type"])
		assert.Equal(t, CodeAlreadyInRoom, last["code"])
	})
}

func TestEngine_JoinRoom(t *testing.T) {
	env := newTestEnv(t)
	host := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, host, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	roomID := host.last(t)["roomId"].(string)

	t.Run("unknown room", func(t *testing.T) {
		conn := env.authedConn(t, "u2", "bob")
		env.sendMsg(t, conn, ClientMessage{Type: TypeJoinRoom, RoomID: "missing"})
		last := conn.last(t)
		assert.Equal(t, TypeError, last["type"])
		assert.Equal(t, CodeRoomNotFound, last["code"])
	})

	t.Run("missing roomId", func(t *testing.T) {
		conn := env.authedConn(t, "u3", "carol")
		env.sendMsg(t, conn, ClientMessage{Type: TypeJoinRoom})
		assert.Equal(t, CodeMalformed, conn.last(t)["code"])
	})

	t.Run("join delivers snapshot and notifies the room", func(t *testing.T) {
		joiner := env.authedConn(t, "u4", "dave")
		env.sendMsg(t, joiner, ClientMessage{Type: TypeJoinRoom, RoomID: roomID})

		joined := joiner.last(t)
		require.Equal(t, TypeRoomJoined, joined["type"])
		assert.Equal(t, roomID, joined["roomId"])
		assert.Equal(t, "Party", joined["roomName"])
		assert.Equal(t, false, joined["isPlaying"])
		assert.EqualValues(t, 0, joined["currentTime"])

		// user_joined goes to the rest of the room, not the joiner
		assert.Empty(t, joiner.ofType(TypeUserJoined))
		events := host.ofType(TypeUserJoined)
		require.Len(t, events, 1)
		assert.Equal(t, "u4", events[0]["userId"])
		assert.Equal(t, "dave", events[0]["username"])
	})
}

func TestEngine_PlaybackFlow(t *testing.T) {
	env := newTestEnv(t)
	host := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, host, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	roomID := host.last(t)["roomId"].(string)

	member := env.authedConn(t, "u2", "bob")
	env.sendMsg(t, member, ClientMessage{Type: TypeJoinRoom, RoomID: roomID})

	t.Run("non-host cannot play", func(t *testing.T) {
		env.sendMsg(t, member, ClientMessage{Type: TypePlaySong, SongID: "1"})
		last := member.last(t)
		assert.Equal(t, TypeError, last["type"])
		assert.Equal(t, CodeNotHost, last["code"])

		snap, _ := env.store.Get(roomID)
		assert.False(t, snap.IsPlaying)
	})

	t.Run("unknown song rejected before mutation", func(t *testing.T) {
		env.sendMsg(t, host, ClientMessage{Type: TypePlaySong, SongID: "999"})
		assert.Equal(t, CodeSongNotFound, host.last(t)["code"])

		snap, _ := env.store.Get(roomID)
		assert.False(t, snap.IsPlaying)
	})

	t.Run("host plays, whole room notified", func(t *testing.T) {
		env.sendMsg(t, host, ClientMessage{Type: TypePlaySong, SongID: "1"})

		wantStart := env.clock.Now().UnixMilli()
		for _, conn := range []*mockSender{host, member} {
			events := conn.ofType(TypeSongPlaying)
			require.Len(t, events, 1, "conn %s", conn.ID())
			assert.Equal(t, "1", events[0]["songId"])
			assert.EqualValues(t, wantStart, events[0]["startTime"])
		}
	})

	t.Run("sync_time broadcasts the projection", func(t *testing.T) {
		env.clock.Advance(5 * time.Second)
		env.sendMsg(t, member, ClientMessage{Type: TypeSyncTime})

		for _, conn := range []*mockSender{host, member} {
			events := conn.ofType(TypeTimeSync)
			require.Len(t, events, 1, "conn %s", conn.ID())
			assert.EqualValues(t, 5000, events[0]["currentTime"])
		}

		// read-only: repeated sync after more time is non-decreasing
		env.clock.Advance(time.Second)
		env.sendMsg(t, member, ClientMessage{Type: TypeSyncTime})
		events := member.ofType(TypeTimeSync)
		require.Len(t, events, 2)
		assert.EqualValues(t, 6000, events[1]["currentTime"])
	})

	t.Run("non-host cannot stop", func(t *testing.T) {
		env.sendMsg(t, member, ClientMessage{Type: TypeStopSong})
		assert.Equal(t, CodeNotHost, member.last(t)["code"])
	})

	t.Run("host stops, projection freezes", func(t *testing.T) {
		env.sendMsg(t, host, ClientMessage{Type: TypeStopSong})
		for _, conn := range []*mockSender{host, member} {
			assert.Len(t, conn.ofType(TypeSongStopped), 1, "conn %s", conn.ID())
		}

		env.clock.Advance(time.Minute)
		env.sendMsg(t, member, ClientMessage{Type: TypeSyncTime})
		events := member.ofType(TypeTimeSync)
		require.Len(t, events, 3)
		assert.EqualValues(t, 6000, events[2]["currentTime"])
	})
}

func TestEngine_LeaveRoom(t *testing.T) {
	env := newTestEnv(t)
	host := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, host, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	roomID := host.last(t)["roomId"].(string)

	member := env.authedConn(t, "u2", "bob")
	env.sendMsg(t, member, ClientMessage{Type: TypeJoinRoom, RoomID: roomID})

	t.Run("leave while not in a room", func(t *testing.T) {
		conn := env.authedConn(t, "u3", "carol")
		env.sendMsg(t, conn, ClientMessage{Type: TypeLeaveRoom})
		assert.Equal(t, CodeRoomNotFound, conn.last(t)["code"])
	})

	t.Run("member leaves, room notified", func(t *testing.T) {
		env.sendMsg(t, member, ClientMessage{Type: TypeLeaveRoom})
		assert.Equal(t, TypeLeftRoom, member.last(t)["type"])

		events := host.ofType(TypeUserLeft)
		require.Len(t, events, 1)
		assert.Equal(t, "u2", events[0]["userId"])
		assert.EqualValues(t, 1, events[0]["participantCount"])
	})

	t.Run("last member leaving deletes the room", func(t *testing.T) {
		env.sendMsg(t, host, ClientMessage{Type: TypeLeaveRoom})
		assert.Equal(t, TypeLeftRoom, host.last(t)["type"])

		// no user_left is broadcast for a deleted room
		assert.Empty(t, host.ofType(TypeUserLeft)[1:])

		conn := env.authedConn(t, "u4", "dave")
		env.sendMsg(t, conn, ClientMessage{Type: TypeJoinRoom, RoomID: roomID})
		assert.Equal(t, CodeRoomNotFound, conn.last(t)["code"])
	})
}

func TestEngine_SwitchRooms(t *testing.T) {
	env := newTestEnv(t)
	hostA := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, hostA, ClientMessage{Type: TypeCreateRoom, RoomName: "A"})
	roomA := hostA.last(t)["roomId"].(string)

	hostB := env.authedConn(t, "u2", "bob")
	env.sendMsg(t, hostB, ClientMessage{Type: TypeCreateRoom, RoomName: "B"})
	roomB := hostB.last(t)["roomId"].(string)

	mover := env.authedConn(t, "u3", "carol")
	env.sendMsg(t, mover, ClientMessage{Type: TypeJoinRoom, RoomID: roomA})
	env.sendMsg(t, mover, ClientMessage{Type: TypeJoinRoom, RoomID: roomB})

	// the old room saw the user leave, the new one saw them join
	require.Len(t, hostA.ofType(TypeUserLeft), 1)
	require.Len(t, hostB.ofType(TypeUserJoined), 1)

	snapA, ok := env.store.Get(roomA)
	require.True(t, ok)
	assert.False(t, snapA.HasMember("u3"))
	snapB, ok := env.store.Get(roomB)
	require.True(t, ok)
	assert.True(t, snapB.HasMember("u3"))
}

func TestEngine_Disconnect(t *testing.T) {
	env := newTestEnv(t)
	host := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, host, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	roomID := host.last(t)["roomId"].(string)

	member := env.authedConn(t, "u2", "bob")
	env.sendMsg(t, member, ClientMessage{Type: TypeJoinRoom, RoomID: roomID})

	env.engine.HandleDisconnect(member)

	// immediate cleanup: membership gone, user_left broadcast, registry entry dropped
	snap, ok := env.store.Get(roomID)
	require.True(t, ok)
	assert.False(t, snap.HasMember("u2"))

	events := host.ofType(TypeUserLeft)
	require.Len(t, events, 1)
	assert.Equal(t, "u2", events[0]["userId"])

	_, ok = env.registry.Lookup(member.ID())
	assert.False(t, ok)

	// host disconnecting as last member deletes the room silently
	env.engine.HandleDisconnect(host)
	_, ok = env.store.Get(roomID)
	assert.False(t, ok)
}

func TestEngine_HostDisconnectFreezesRoom(t *testing.T) {
	env := newTestEnv(t)
	host := env.authedConn(t, "u1", "alice")
	env.sendMsg(t, host, ClientMessage{Type: TypeCreateRoom, RoomName: "Party"})
	roomID := host.last(t)["roomId"].(string)

	member := env.authedConn(t, "u2", "bob")
	env.sendMsg(t, member, ClientMessage{Type: TypeJoinRoom, RoomID: roomID})

	env.sendMsg(t, host, ClientMessage{Type: TypePlaySong, SongID: "1"})
	env.clock.Advance(2 * time.Second)
	env.engine.HandleDisconnect(host)

	// playback state survives, frozen under host authority no one holds
	env.sendMsg(t, member, ClientMessage{Type: TypeStopSong})
	assert.Equal(t, CodeNotHost, member.last(t)["code"])

	env.clock.Advance(3 * time.Second)
	env.sendMsg(t, member, ClientMessage{Type: TypeSyncTime})
	events := member.ofType(TypeTimeSync)
	require.NotEmpty(t, events)
	assert.EqualValues(t, 5000, events[len(events)-1]["currentTime"])
}
