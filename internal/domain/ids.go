package domain

// SubjectID is an internal identifier for a tracked subject. It is assigned at
// registration and never reused.
type SubjectID string

// SampleID is an internal identifier for a location sample record.
type SampleID string
