package expire

import "time"

// Acceptance deadline tiers by distance between creation and due time
const (
	shortNotice  = 90 * time.Minute
	dayNotice    = 24 * time.Hour
	longNotice   = 72 * time.Hour
	dayMargin    = 30 * time.Minute
	longMargin   = 8 * time.Hour
	remoteMargin = 48 * time.Hour
)

// WillExpireAt returns the deadline after which an unaccepted job is treated as timed out.
// A due in the past is accepted - the result may also be in the past,
// signalling an already expired creation. Rejecting that is the caller's business
func WillExpireAt(due, createdAt time.Time) time.Time {
	diff := due.Sub(createdAt)
	switch {
	case diff <= shortNotice:
		return due
	case diff <= dayNotice:
		return due.Add(-dayMargin)
	case diff < longNotice:
		return due.Add(-longMargin)
	}
	return due.Add(-remoteMargin)
}
