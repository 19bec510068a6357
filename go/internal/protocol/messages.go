package protocol

// Client message types.
const (
	TypeAuthenticate = "authenticate"
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypePlaySong     = "play_song"
	TypeSyncTime     = "sync_time"
	TypeStopSong     = "stop_song"
	TypeLeaveRoom    = "leave_room"
)

// Server message types.
const (
	TypeAuthenticated = "authenticated"
	TypeRoomCreated   = "room_created"
	TypeRoomJoined    = "room_joined"
	TypeUserJoined    = "user_joined"
	TypeSongPlaying   = "song_playing"
	TypeTimeSync      = "time_sync"
	TypeSongStopped   = "song_stopped"
	TypeUserLeft      = "user_left"
	TypeLeftRoom      = "left_room"
	TypeError         = "error"
)

// Stable error codes carried by error messages. Protocol errors never close
// the connection; clients decide how to surface them.
const (
	CodeNotAuthenticated = "not_authenticated"
	CodeAuthInvalid      = "auth_invalid"
	CodeRoomNotFound     = "room_not_found"
	CodeNotHost          = "not_host"
	CodeSongNotFound     = "song_not_found"
	CodeAlreadyInRoom    = "already_in_room"
	CodeMalformed        = "malformed_message"
)

// ClientMessage is the inbound envelope. Type discriminates; the remaining
// fields are populated per message type.
type ClientMessage struct {
	Type     string `json:"type"`
	Token    string `json:"token,omitempty"`
	UserID   string `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	RoomName string `json:"roomName,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
	SongID   string `json:"songId,omitempty"`
}

// AuthenticatedMessage confirms a successful authenticate.
type AuthenticatedMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// RoomCreatedMessage is sent to the creator only.
type RoomCreatedMessage struct {
	Type             string `json:"type"`
	RoomID           string `json:"roomId"`
	RoomName         string `json:"roomName"`
	ParticipantCount int    `json:"participantCount"`
}

// RoomJoinedMessage gives a joiner the full playback snapshot so late
// joiners can catch up immediately.
type RoomJoinedMessage struct {
	Type             string `json:"type"`
	RoomID           string `json:"roomId"`
	RoomName         string `json:"roomName"`
	IsPlaying        bool   `json:"isPlaying"`
	CurrentSongID    string `json:"currentSongId,omitempty"`
	CurrentTime      int64  `json:"currentTime"`
	ParticipantCount int    `json:"participantCount"`
}

// UserEventMessage announces membership changes (user_joined, user_left).
type UserEventMessage struct {
	Type             string `json:"type"`
	UserID           string `json:"userId"`
	Username         string `json:"username"`
	ParticipantCount int    `json:"participantCount"`
}

// SongPlayingMessage announces playback start. StartTime is server
// wall-clock millis.
type SongPlayingMessage struct {
	Type      string `json:"type"`
	SongID    string `json:"songId"`
	StartTime int64  `json:"startTime"`
}

// TimeSyncMessage carries the playback clock projection in millis.
type TimeSyncMessage struct {
	Type        string `json:"type"`
	CurrentTime int64  `json:"currentTime"`
}

// SongStoppedMessage announces playback stop.
type SongStoppedMessage struct {
	Type string `json:"type"`
}

// LeftRoomMessage confirms a leave_room to the leaver.
type LeftRoomMessage struct {
	Type string `json:"type"`
}

// ErrorMessage reports a recoverable protocol error.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}
