package domain

import "time"

// Freshness labels how recently a subject reported a position. It is derived
// from a sample's age at read time and never stored: "now" advances
// independently of ingestion, so a cached label would rot.
type Freshness string

const (
	FreshnessOnline  Freshness = "online"
	FreshnessRecent  Freshness = "recent"
	FreshnessOffline Freshness = "offline"
)

const (
	onlineMaxAge = 2 * time.Minute
	recentMaxAge = 10 * time.Minute
)

// DefaultPresenceWindow is the trailing interval used by the live view to
// decide whether a subject counts as currently present.
const DefaultPresenceWindow = 5 * time.Minute

// ClassifyFreshness maps a sample age to a freshness label. Boundaries are
// inclusive: exactly 2 minutes is still online, exactly 10 minutes is still
// recent.
func ClassifyFreshness(age time.Duration) Freshness {
	switch {
	case age <= onlineMaxAge:
		return FreshnessOnline
	case age <= recentMaxAge:
		return FreshnessRecent
	default:
		return FreshnessOffline
	}
}
