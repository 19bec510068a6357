// Package catalog holds the in-memory song library the sync server and
// scoring engine read from. The real product fetches this from a backend
// API; the server only needs read access to ids, durations and lyric
// timelines, so the store is immutable after construction.
package catalog

import (
	"sort"
	"strings"
)

// LyricLine is one timed line of a song's lyric sheet. Timestamp is in
// milliseconds from the start of the track.
type LyricLine struct {
	Timestamp int64  `json:"timestamp"`
	Text      string `json:"text"`
}

// Song is a catalog entry. Duration is in seconds.
type Song struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	Duration   int         `json:"duration"`
	Category   string      `json:"category"`
	Difficulty string      `json:"difficulty"`
	Plays      int         `json:"plays"`
	Lyrics     []LyricLine `json:"lyrics"`
}

// Store is a read-only song catalog. No mutation happens after New, so
// lookups need no locking.
type Store struct {
	songs map[string]*Song
	order []string
}

// New builds a catalog from the given songs, preserving their order for List.
func New(songs []Song) *Store {
	s := &Store{songs: make(map[string]*Song, len(songs))}
	for i := range songs {
		song := songs[i]
		if _, dup := s.songs[song.ID]; dup {
			continue
		}
		s.songs[song.ID] = &song
		s.order = append(s.order, song.ID)
	}
	return s
}

// Get returns the song with the given id.
func (s *Store) Get(id string) (*Song, bool) {
	song, ok := s.songs[id]
	return song, ok
}

// List returns all songs in catalog order.
func (s *Store) List() []*Song {
	out := make([]*Song, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.songs[id])
	}
	return out
}

// Search returns songs whose title or artist contains the query,
// case-insensitively. An empty query matches nothing.
func (s *Store) Search(query string) []*Song {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []*Song
	for _, id := range s.order {
		song := s.songs[id]
		if strings.Contains(strings.ToLower(song.Title), q) ||
			strings.Contains(strings.ToLower(song.Artist), q) {
			out = append(out, song)
		}
	}
	return out
}

// Categories returns the distinct category names, sorted.
func (s *Store) Categories() []string {
	seen := make(map[string]bool)
	for _, song := range s.songs {
		seen[song.Category] = true
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of songs in the catalog.
func (s *Store) Len() int {
	return len(s.songs)
}
