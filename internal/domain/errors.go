package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrUnrecognizedFormat = errors.New("unrecognized file format")
	ErrSourceUnreadable   = errors.New("source unreadable")
	ErrMalformedSource    = errors.New("malformed source structure")
	ErrPersist            = errors.New("persist batch")

	// ErrJobFailed marks a Submit error from a job that was accepted and ran:
	// the job has already recorded its own outcome.
	ErrJobFailed = errors.New("job failed")
)

type RejectReason string

const (
	ReasonInvalidID            RejectReason = "invalid_id"
	ReasonInvalidCoordinate    RejectReason = "invalid_coordinate"
	ReasonInvalidRatingsFormat RejectReason = "invalid_ratings_format"
	ReasonInvalidRatingsValue  RejectReason = "invalid_ratings_value"
	ReasonMissingField         RejectReason = "missing_field"
	ReasonFieldTooLong         RejectReason = "field_too_long"
)

// RejectError explains why a raw record did not become a POI.
type RejectError struct {
	Reason RejectReason
	Field  string
	Index  int
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("record %d: %s (%s): %v", e.Index, e.Reason, e.Field, e.Err)
	}
	return fmt.Sprintf("record %d: %s (%s)", e.Index, e.Reason, e.Field)
}

func (e *RejectError) Unwrap() error { return e.Err }

// RejectReasonOf returns the reason carried by err, or "" if err is not a rejection.
func RejectReasonOf(err error) RejectReason {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Reason
	}
	return ""
}
