package planner

import "fmt"

// ValidationError identifies a malformed input record.
type ValidationError struct {
	Record string
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid %s: %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s %s", e.Record, e.Field, e.Reason)
}

// MissingScheduleError is returned instead of the default-day fallback when
// the policy requires every (supplier, store) pair to be scheduled.
type MissingScheduleError struct {
	Key ScheduleKey
}

func (e MissingScheduleError) Error() string {
	return fmt.Sprintf("no delivery schedule for supplier %q at store %q", e.Key.Supplier, e.Key.Store)
}
