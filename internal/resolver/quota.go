package resolver

import (
	"errors"
	"fmt"
)

// DefaultMaxReads bounds the reads of one plan when Config.MaxReads is zero.
const DefaultMaxReads = 256

// readQuota counts the reads a plan schedules and fails once the limit is
// passed. It stops a cache that keeps offering new stored queries without
// ever covering the outstanding one.
type readQuota struct {
	max     int
	current int
}

func newReadQuota(limit int) *readQuota {
	if limit <= 0 {
		limit = DefaultMaxReads
	}
	return &readQuota{max: limit}
}

func (q *readQuota) check(subject string) error {
	q.current++
	if q.current > q.max {
		return &ReadsExceededError{Query: subject, Reads: q.current, Limit: q.max}
	}
	return nil
}

// ReadsExceededError is returned when a plan needs more reads than allowed.
type ReadsExceededError struct {
	Query string
	Reads int
	Limit int
}

func (e *ReadsExceededError) Error() string {
	return fmt.Sprintf("plan for %s exceeded read limit: %d reads > %d limit", e.Query, e.Reads, e.Limit)
}

// IsReadsExceededError reports whether err wraps a ReadsExceededError.
func IsReadsExceededError(err error) bool {
	var re *ReadsExceededError
	return errors.As(err, &re)
}
