// Package rooms is the in-memory room table: membership, host authority and
// the host-authoritative playback state. Rooms live only as long as they
// have members and never survive a process restart.
package rooms

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrNotHost      = errors.New("only the host can control playback")
)

const roomIDLength = 9

// room is the mutable record. Its mutex serializes all reads and writes of
// one room; the store's outer lock only guards the table itself, so
// different rooms mutate in parallel.
type room struct {
	mu sync.Mutex

	id         string
	name       string
	hostUserID string
	members    map[string]struct{}

	isPlaying     bool
	currentSongID string
	startedAt     time.Time
	frozen        time.Duration
}

// Snapshot is an immutable copy of a room's state, taken atomically under
// the room lock. Everything handed out of the store is a Snapshot.
type Snapshot struct {
	ID            string
	Name          string
	HostUserID    string
	Members       []string
	IsPlaying     bool
	CurrentSongID string
	StartedAt     time.Time
	Frozen        time.Duration
}

// MemberCount returns the number of members in the snapshot.
func (s Snapshot) MemberCount() int {
	return len(s.Members)
}

// HasMember reports whether userID was a member at snapshot time.
func (s Snapshot) HasMember(userID string) bool {
	for _, m := range s.Members {
		if m == userID {
			return true
		}
	}
	return false
}

func (r *room) snapshot() Snapshot {
	members := make([]string, 0, len(r.members))
	for m := range r.members {
		members = append(members, m)
	}
	sort.Strings(members)
	return Snapshot{
		ID:            r.id,
		Name:          r.name,
		HostUserID:    r.hostUserID,
		Members:       members,
		IsPlaying:     r.isPlaying,
		CurrentSongID: r.currentSongID,
		StartedAt:     r.startedAt,
		Frozen:        r.frozen,
	}
}

// Store is the live room table. All mutations of a single room are atomic:
// no partially-updated state is ever observable through a Snapshot.
type Store struct {
	mu    sync.RWMutex
	rooms map[string]*room
	clock clockwork.Clock
}

// NewStore builds an empty room table using the given clock for playback
// timestamps. Production wiring passes clockwork.NewRealClock().
func NewStore(clock clockwork.Clock) *Store {
	return &Store{
		rooms: make(map[string]*room),
		clock: clock,
	}
}

// Create makes a new room with the creator as host and sole member. An
// empty name defaults to "Room <id>".
func (s *Store) Create(hostUserID, name string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := newRoomID()
	for {
		if _, taken := s.rooms[id]; !taken {
			break
		}
		id = newRoomID()
	}

	if name == "" {
		name = "Room " + id
	}

	rm := &room{
		id:         id,
		name:       name,
		hostUserID: hostUserID,
		members:    map[string]struct{}{hostUserID: {}},
	}
	s.rooms[id] = rm

	log.Info().Str("room_id", id).Str("host", hostUserID).Str("name", name).Msg("room created")
	return rm.snapshot()
}

// Get returns a snapshot of the room, if it exists.
func (s *Store) Get(roomID string) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, false
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.snapshot(), true
}

// Join adds userID to the room's members. Joining a room you are already in
// is a no-op that still returns the current snapshot.
func (s *Store) Join(roomID, userID string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.members[userID] = struct{}{}

	log.Info().Str("room_id", roomID).Str("user_id", userID).
		Int("members", len(rm.members)).Msg("user joined room")
	return rm.snapshot(), nil
}

// Leave removes userID from the room. When the last member leaves the room
// is deleted outright; deleted reports that. The returned snapshot is the
// room state after removal (zero when deleted or not found).
func (s *Store) Leave(roomID, userID string) (snap Snapshot, deleted bool, err error) {
	// Write lock: deletion mutates the table itself.
	s.mu.Lock()
	defer s.mu.Unlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, false, ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	delete(rm.members, userID)

	if len(rm.members) == 0 {
		delete(s.rooms, roomID)
		log.Info().Str("room_id", roomID).Msg("room deleted, last member left")
		return Snapshot{}, true, nil
	}

	log.Info().Str("room_id", roomID).Str("user_id", userID).
		Int("members", len(rm.members)).Msg("user left room")
	return rm.snapshot(), false, nil
}

// Play starts playback of songID, stamping the start time from the store
// clock. Only the host may start playback; host authority is re-checked on
// every mutation rather than held as a lock, so a disconnected host simply
// stops being able to issue valid mutations.
func (s *Store) Play(roomID, actingUserID, songID string) (Snapshot, error) {
	return s.mutatePlayback(roomID, actingUserID, func(rm *room) {
		rm.isPlaying = true
		rm.currentSongID = songID
		rm.startedAt = s.clock.Now()
		rm.frozen = 0
		log.Info().Str("room_id", roomID).Str("song_id", songID).Msg("playback started")
	})
}

// Stop halts playback, freezing the elapsed time at the stop moment so the
// clock projection keeps reporting the last position.
func (s *Store) Stop(roomID, actingUserID string) (Snapshot, error) {
	return s.mutatePlayback(roomID, actingUserID, func(rm *room) {
		if rm.isPlaying {
			rm.frozen = s.clock.Now().Sub(rm.startedAt)
		}
		rm.isPlaying = false
		rm.currentSongID = ""
		rm.startedAt = time.Time{}
		log.Info().Str("room_id", roomID).Dur("frozen", rm.frozen).Msg("playback stopped")
	})
}

// mutatePlayback is the single gate for playback state changes. It rejects
// non-hosts before touching anything, so a failed mutation leaves no trace.
func (s *Store) mutatePlayback(roomID, actingUserID string, mutate func(*room)) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.hostUserID != actingUserID {
		return Snapshot{}, ErrNotHost
	}

	mutate(rm)
	return rm.snapshot(), nil
}

// Sync returns the room snapshot together with the playback clock
// projection at the current instant. Read-only and safe to call at any
// rate; it never mutates stored state.
func (s *Store) Sync(roomID string) (Snapshot, time.Duration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rm, ok := s.rooms[roomID]
	if !ok {
		return Snapshot{}, 0, ErrRoomNotFound
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()
	snap := rm.snapshot()
	return snap, Elapsed(snap, s.clock.Now()), nil
}

// Counts returns the number of live rooms and total memberships.
func (s *Store) Counts() (roomCount, memberCount int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roomCount = len(s.rooms)
	for _, rm := range s.rooms {
		rm.mu.Lock()
		memberCount += len(rm.members)
		rm.mu.Unlock()
	}
	return roomCount, memberCount
}

func newRoomID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:roomIDLength]
}
