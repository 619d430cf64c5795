package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSuperseded is returned to a search caller whose invocation was overtaken by a newer one.
var ErrSuperseded = errors.New("search superseded by a newer request")

// ValidationError reports required input that is missing. No request was attempted.
type ValidationError struct {
	Fields  []string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("missing required field(s): %s", strings.Join(e.Fields, ", "))
}

// SearchErrorKind classifies a failed primary search.
type SearchErrorKind string

const (
	SearchErrorNetwork     SearchErrorKind = "network"
	SearchErrorServerFault SearchErrorKind = "server_fault"
)

// SearchError is a failed primary search.
type SearchError struct {
	Kind       SearchErrorKind `json:"kind"`
	Message    string          `json:"message"`
	ID         string          `json:"id,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Err        error           `json:"-"`
}

func (e *SearchError) Error() string {
	switch {
	case e.Kind == SearchErrorServerFault && e.ID != "":
		return fmt.Sprintf("search failed: %s (error id: %s)", e.Message, e.ID)
	case e.Err != nil:
		return fmt.Sprintf("search failed: %s: %v", e.Message, e.Err)
	default:
		return "search failed: " + e.Message
	}
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// EnrichmentError is a failed vendor enrichment. It never escapes the vendor's agent
// other than as the return value of that agent's Enrich call.
type EnrichmentError struct {
	Vendor   string
	Rejected bool
	Message  string
	Err      error
}

func (e *EnrichmentError) Error() string {
	if e.Rejected {
		return fmt.Sprintf("enrichment rejected for %q: %s", e.Vendor, e.Message)
	}
	return fmt.Sprintf("enrichment failed for %q: %s", e.Vendor, e.Message)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

// SubmissionError is a failed feedback submission; the draft is preserved.
type SubmissionError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feedback submission failed: %s: %v", e.Message, e.Err)
	}
	return "feedback submission failed: " + e.Message
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// TransportError is returned by backend clients when no usable HTTP response was obtained:
// connection failures, timeouts, local rate limiting, or bodies that cannot be decoded.
type TransportError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// FaultError is returned by backend clients when the server signals an internal fault.
type FaultError struct {
	StatusCode int
	Status     string
	Message    string
	ID         string
}

func (e *FaultError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("server fault %d: %s (id %s)", e.StatusCode, e.Message, e.ID)
	}
	return fmt.Sprintf("server fault %d: %s", e.StatusCode, e.Message)
}
