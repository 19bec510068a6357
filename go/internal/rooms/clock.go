package rooms

import "time"

// Elapsed is the playback clock projection: while playing, the wall-clock
// time since the host started the song; otherwise the value frozen at the
// last stop (zero if nothing was ever played). The elapsed position is
// always derived from StartedAt, never stored, so it cannot drift from
// wall-clock reality. Non-negative as long as StartedAt <= now, which
// holds by construction since StartedAt is stamped at mutation time.
func Elapsed(r Snapshot, now time.Time) time.Duration {
	if r.IsPlaying {
		return now.Sub(r.StartedAt)
	}
	return r.Frozen
}
