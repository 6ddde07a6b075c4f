package models

import "time"

// RejectReason classifies why the normalizer refused a raw record.
type RejectReason string

const (
	ReasonMissingField   RejectReason = "missing_required_field"
	ReasonInvalidEnum    RejectReason = "invalid_enum"
	ReasonInvalidState   RejectReason = "invalid_state"
	ReasonInvalidNumeric RejectReason = "invalid_numeric"
)

// Fingerprint is read back from the store after a load commits so the caller
// can cross-check the run against its source.
type Fingerprint struct {
	TotalAreas    int64 `json:"total_areas"`
	MinTwoBedroom *int  `json:"min_two_bedroom"`
	MaxTwoBedroom *int  `json:"max_two_bedroom"`
}

// LoadReport summarizes one loader run. Inserted plus Updated equals the
// number of distinct identity tuples written; Duplicates counts source
// records that were collapsed into a later record with the same tuple.
type LoadReport struct {
	RunID            string               `json:"run_id"`
	Source           string               `json:"source,omitempty"`
	Received         int                  `json:"received"`
	Inserted         int                  `json:"inserted"`
	Updated          int                  `json:"updated"`
	Rejected         int                  `json:"rejected"`
	Duplicates       int                  `json:"duplicates"`
	RejectedByReason map[RejectReason]int `json:"rejected_by_reason,omitempty"`
	Fingerprint      Fingerprint          `json:"fingerprint"`
	StartedAt        time.Time            `json:"started_at"`
	Duration         time.Duration        `json:"duration"`
}
