package core

import (
	"fmt"
	"time"
)

// EnrichmentStatus is the lifecycle state of a vendor enrichment.
type EnrichmentStatus int

const (
	EnrichmentNotStarted EnrichmentStatus = 0
	EnrichmentPending    EnrichmentStatus = 1
	EnrichmentSucceeded  EnrichmentStatus = 2
	EnrichmentFailed     EnrichmentStatus = 3
)

func (s EnrichmentStatus) String() string {
	switch s {
	case EnrichmentPending:
		return "pending"
	case EnrichmentSucceeded:
		return "succeeded"
	case EnrichmentFailed:
		return "failed"
	default:
		return "not_started"
	}
}

// Terminal reports whether the status accepts no further transitions.
func (s EnrichmentStatus) Terminal() bool {
	return s == EnrichmentSucceeded || s == EnrichmentFailed
}

// MarshalText renders the status name.
func (s EnrichmentStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name written by MarshalText.
func (s *EnrichmentStatus) UnmarshalText(text []byte) error {
	switch string(text) {
	case "not_started", "":
		*s = EnrichmentNotStarted
	case "pending":
		*s = EnrichmentPending
	case "succeeded":
		*s = EnrichmentSucceeded
	case "failed":
		*s = EnrichmentFailed
	default:
		return fmt.Errorf("unknown enrichment status %q", text)
	}
	return nil
}

// VendorRef identifies the vendor an outcome belongs to within its result set.
type VendorRef struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// EnrichmentOutcome is the supplemental rating state for one vendor.
type EnrichmentOutcome struct {
	Vendor       VendorRef        `json:"vendor"`
	Status       EnrichmentStatus `json:"status"`
	Rating       *float64         `json:"rating,omitempty"`
	RatingCount  *int             `json:"rating_count,omitempty"`
	Latitude     *float64         `json:"latitude,omitempty"`
	Longitude    *float64         `json:"longitude,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	FromCache    bool             `json:"from_cache,omitempty"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`
}

// ReverseLookup is the enrichment provider's answer for one vendor.
// Detail is non-empty when the provider rejected the lookup.
type ReverseLookup struct {
	Rating      *float64 `json:"rating,omitempty"`
	RatingCount *int     `json:"rating_count,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Detail      string   `json:"detail,omitempty"`
}

// Rejected reports whether the provider refused to match the vendor.
func (r *ReverseLookup) Rejected() bool {
	return r != nil && r.Detail != ""
}

// EnrichmentKey identifies a cached reverse lookup.
type EnrichmentKey struct {
	Vendor      string
	Source      string
	Location    string
	CountryCode string
}
