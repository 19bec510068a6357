// Package protocol implements the room sync message protocol: it parses and
// validates inbound client messages, drives the room store, and fans
// resulting events out to room members. The transport is abstracted behind
// Sender, so the engine is testable without sockets.
package protocol

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/micdrop/karaoke-server/go/internal/auth"
	"github.com/micdrop/karaoke-server/go/internal/catalog"
	"github.com/micdrop/karaoke-server/go/internal/registry"
	"github.com/micdrop/karaoke-server/go/internal/rooms"
)

// Sender is one client connection as the engine sees it. Send must not
// block; transports queue outbound data and surface backpressure as an
// error.
type Sender interface {
	ID() string
	Send(data []byte) error
}

// SongCatalog is the read-only catalog lookup the engine needs to validate
// play_song requests.
type SongCatalog interface {
	Get(id string) (*catalog.Song, bool)
}

// Engine is the sync protocol state machine. Each connection moves through
// Unauthenticated → Authenticated → InRoom; the current position is derived
// from the registry record (identity set, room set), not stored separately.
//
// Token verification happens before any room state is touched, so no lock
// is ever held across the verifier call.
type Engine struct {
	verifier auth.Verifier
	registry *registry.Registry
	store    *rooms.Store
	catalog  SongCatalog
	clock    clockwork.Clock

	// Per-room multicast lists, conn-id keyed. Kept separate from the room
	// store so broadcast fan-out never reaches into membership state.
	mu        sync.RWMutex
	roomConns map[string]map[string]Sender
}

func NewEngine(verifier auth.Verifier, reg *registry.Registry, store *rooms.Store, cat SongCatalog, clock clockwork.Clock) *Engine {
	return &Engine{
		verifier:  verifier,
		registry:  reg,
		store:     store,
		catalog:   cat,
		clock:     clock,
		roomConns: make(map[string]map[string]Sender),
	}
}

// HandleConnect registers a fresh, unauthenticated connection.
func (e *Engine) HandleConnect(conn Sender) {
	e.registry.Register(conn.ID())
}

// HandleDisconnect removes the connection and, if it was in a room, leaves
// it immediately: membership is cleaned up and user_left (or room deletion)
// happens synchronously, with no grace period.
func (e *Engine) HandleDisconnect(conn Sender) {
	c, ok := e.registry.Lookup(conn.ID())
	if ok && c.RoomID != "" {
		e.leaveRoom(conn, c, false)
	}
	e.registry.Remove(conn.ID())
}

// HandleMessage parses and dispatches one inbound message. Malformed or
// unknown messages get an error reply; the connection always stays open.
func (e *Engine) HandleMessage(conn Sender, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Warn().Str("connection_id", conn.ID()).Err(err).Msg("invalid message")
		e.sendError(conn, CodeMalformed, "Invalid message format")
		return
	}

	log.Debug().Str("connection_id", conn.ID()).Str("type", msg.Type).Msg("message received")

	switch msg.Type {
	case TypeAuthenticate:
		e.handleAuthenticate(conn, msg)
	case TypeCreateRoom:
		e.handleCreateRoom(conn, msg)
	case TypeJoinRoom:
		e.handleJoinRoom(conn, msg)
	case TypePlaySong:
		e.handlePlaySong(conn, msg)
	case TypeSyncTime:
		e.handleSyncTime(conn)
	case TypeStopSong:
		e.handleStopSong(conn)
	case TypeLeaveRoom:
		e.handleLeaveRoom(conn)
	default:
		e.sendError(conn, CodeMalformed, "Unknown message type")
	}
}

func (e *Engine) handleAuthenticate(conn Sender, msg ClientMessage) {
	// One identity per connection. Allowing a second authenticate would
	// overwrite the user id while room membership still carries the old one,
	// leaving ghost members behind.
	if c, ok := e.registry.Lookup(conn.ID()); ok && c.Authenticated() {
		e.sendError(conn, CodeAuthInvalid, "Already authenticated")
		return
	}
	if msg.Token == "" || msg.UserID == "" || msg.Username == "" {
		e.sendError(conn, CodeMalformed, "Missing authentication data")
		return
	}

	if _, err := e.verifier.Verify(msg.Token); err != nil {
		log.Warn().Str("connection_id", conn.ID()).Err(err).Msg("authentication failed")
		e.sendError(conn, CodeAuthInvalid, "Invalid token")
		return
	}

	if !e.registry.Authenticate(conn.ID(), msg.UserID, msg.Username) {
		e.sendError(conn, CodeMalformed, "Unknown connection")
		return
	}

	log.Info().Str("connection_id", conn.ID()).Str("user_id", msg.UserID).Msg("connection authenticated")
	e.send(conn, AuthenticatedMessage{
		Type:     TypeAuthenticated,
		UserID:   msg.UserID,
		Username: msg.Username,
	})
}

func (e *Engine) handleCreateRoom(conn Sender, msg ClientMessage) {
	c, ok := e.authenticated(conn)
	if !ok {
		return
	}
	if c.RoomID != "" {
		e.sendError(conn, CodeAlreadyInRoom, "Already in a room")
		return
	}

	snap := e.store.Create(c.UserID, msg.RoomName)
	e.registry.SetRoom(conn.ID(), snap.ID)
	e.attach(snap.ID, conn)

	e.send(conn, RoomCreatedMessage{
		Type:             TypeRoomCreated,
		RoomID:           snap.ID,
		RoomName:         snap.Name,
		ParticipantCount: snap.MemberCount(),
	})
}

func (e *Engine) handleJoinRoom(conn Sender, msg ClientMessage) {
	c, ok := e.authenticated(conn)
	if !ok {
		return
	}
	if msg.RoomID == "" {
		e.sendError(conn, CodeMalformed, "Missing roomId")
		return
	}

	// Moving between rooms is a leave followed by a join; membership of the
	// old room never lingers.
	if c.RoomID != "" && c.RoomID != msg.RoomID {
		e.leaveRoom(conn, c, false)
		c.RoomID = ""
	}

	snap, err := e.store.Join(msg.RoomID, c.UserID)
	if err != nil {
		e.sendError(conn, CodeRoomNotFound, "Room not found")
		return
	}

	e.registry.SetRoom(conn.ID(), snap.ID)
	e.attach(snap.ID, conn)

	elapsed := rooms.Elapsed(snap, e.clock.Now())
	e.send(conn, RoomJoinedMessage{
		Type:             TypeRoomJoined,
		RoomID:           snap.ID,
		RoomName:         snap.Name,
		IsPlaying:        snap.IsPlaying,
		CurrentSongID:    snap.CurrentSongID,
		CurrentTime:      elapsed.Milliseconds(),
		ParticipantCount: snap.MemberCount(),
	})

	e.broadcast(snap.ID, UserEventMessage{
		Type:             TypeUserJoined,
		UserID:           c.UserID,
		Username:         c.Username,
		ParticipantCount: snap.MemberCount(),
	}, conn.ID())
}

func (e *Engine) handlePlaySong(conn Sender, msg ClientMessage) {
	c, ok := e.inRoom(conn)
	if !ok {
		return
	}
	if msg.SongID == "" {
		e.sendError(conn, CodeMalformed, "Missing songId")
		return
	}
	if _, found := e.catalog.Get(msg.SongID); !found {
		e.sendError(conn, CodeSongNotFound, "Unknown song")
		return
	}

	snap, err := e.store.Play(c.RoomID, c.UserID, msg.SongID)
	if err != nil {
		e.sendMutationError(conn, err, "Only host can play songs")
		return
	}

	e.broadcast(snap.ID, SongPlayingMessage{
		Type:      TypeSongPlaying,
		SongID:    snap.CurrentSongID,
		StartTime: snap.StartedAt.UnixMilli(),
	}, "")
}

func (e *Engine) handleSyncTime(conn Sender) {
	c, ok := e.inRoom(conn)
	if !ok {
		return
	}

	snap, elapsed, err := e.store.Sync(c.RoomID)
	if err != nil {
		e.sendError(conn, CodeRoomNotFound, "Room not found")
		return
	}

	e.broadcast(snap.ID, TimeSyncMessage{
		Type:        TypeTimeSync,
		CurrentTime: elapsed.Milliseconds(),
	}, "")
}

func (e *Engine) handleStopSong(conn Sender) {
	c, ok := e.inRoom(conn)
	if !ok {
		return
	}

	snap, err := e.store.Stop(c.RoomID, c.UserID)
	if err != nil {
		e.sendMutationError(conn, err, "Only host can stop songs")
		return
	}

	e.broadcast(snap.ID, SongStoppedMessage{Type: TypeSongStopped}, "")
}

func (e *Engine) handleLeaveRoom(conn Sender) {
	c, ok := e.inRoom(conn)
	if !ok {
		return
	}
	e.leaveRoom(conn, c, true)
}

// leaveRoom removes the connection's user from their room, detaches the
// multicast entry, and notifies: left_room to the leaver (when confirm is
// set) and user_left to the remaining members if the room survived.
func (e *Engine) leaveRoom(conn Sender, c registry.Connection, confirm bool) {
	snap, deleted, err := e.store.Leave(c.RoomID, c.UserID)
	e.detach(c.RoomID, conn.ID())
	e.registry.SetRoom(conn.ID(), "")

	if confirm {
		e.send(conn, LeftRoomMessage{Type: TypeLeftRoom})
	}

	if err != nil || deleted {
		return
	}

	e.broadcast(snap.ID, UserEventMessage{
		Type:             TypeUserLeft,
		UserID:           c.UserID,
		Username:         c.Username,
		ParticipantCount: snap.MemberCount(),
	}, conn.ID())
}

// authenticated gates messages that require a verified identity.
func (e *Engine) authenticated(conn Sender) (registry.Connection, bool) {
	c, ok := e.registry.Lookup(conn.ID())
	if !ok || !c.Authenticated() {
		e.sendError(conn, CodeNotAuthenticated, "Not authenticated")
		return registry.Connection{}, false
	}
	return c, true
}

// inRoom gates messages that require room membership.
func (e *Engine) inRoom(conn Sender) (registry.Connection, bool) {
	c, ok := e.authenticated(conn)
	if !ok {
		return registry.Connection{}, false
	}
	if c.RoomID == "" {
		e.sendError(conn, CodeRoomNotFound, "Not in a room")
		return registry.Connection{}, false
	}
	return c, true
}

func (e *Engine) sendMutationError(conn Sender, err error, notHostMsg string) {
	switch {
	case errors.Is(err, rooms.ErrNotHost):
		e.sendError(conn, CodeNotHost, notHostMsg)
	case errors.Is(err, rooms.ErrRoomNotFound):
		e.sendError(conn, CodeRoomNotFound, "Room not found")
	default:
		e.sendError(conn, CodeMalformed, err.Error())
	}
}

func (e *Engine) attach(roomID string, conn Sender) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.roomConns[roomID] == nil {
		e.roomConns[roomID] = make(map[string]Sender)
	}
	e.roomConns[roomID][conn.ID()] = conn
}

func (e *Engine) detach(roomID, connID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if conns, ok := e.roomConns[roomID]; ok {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(e.roomConns, roomID)
		}
	}
}

// broadcast sends v to every connection in the room, excluding excludeID
// when non-empty. The payload is marshalled once.
func (e *Engine) broadcast(roomID string, v any, excludeID string) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("room_id", roomID).Msg("failed to marshal broadcast")
		return
	}

	e.mu.RLock()
	targets := make([]Sender, 0, len(e.roomConns[roomID]))
	for id, conn := range e.roomConns[roomID] {
		if id == excludeID {
			continue
		}
		targets = append(targets, conn)
	}
	e.mu.RUnlock()

	for _, conn := range targets {
		if err := conn.Send(data); err != nil {
			log.Warn().Str("connection_id", conn.ID()).Str("room_id", roomID).
				Err(err).Msg("failed to broadcast to connection")
		}
	}
}

func (e *Engine) send(conn Sender, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}
	if err := conn.Send(data); err != nil {
		log.Warn().Str("connection_id", conn.ID()).Err(err).Msg("failed to send message")
	}
}

func (e *Engine) sendError(conn Sender, code, message string) {
	e.send(conn, ErrorMessage{Type: TypeError, Code: code, Message: message})
}
