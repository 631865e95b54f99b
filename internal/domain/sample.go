package domain

import "time"

// LocationSample is one immutable telemetry reading. Samples are append-only:
// the core never updates or deletes them.
//
// RecordedAt is assigned by the server clock at ingestion and is the sole
// ordering key. Latitude/longitude are stored as supplied; the core performs
// no range validation.
type LocationSample struct {
	ID        SampleID
	SubjectID SubjectID

	Latitude  float64
	Longitude float64

	// Accuracy is an optional radius in meters; nil means unreported.
	Accuracy *float64
	// Address is an optional human-readable location, never derived here.
	Address *string

	RecordedAt time.Time
}
