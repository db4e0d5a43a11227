package sync

import "fmt"

// PartialApplyError means a pull fetched more records than it managed to
// apply locally. The bookkeeper is left untouched so the next run re-pulls
// the same window.
type PartialApplyError struct {
	Entity  string
	Fetched int
	Applied int
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("%s: applied %d of %d fetched records", e.Entity, e.Applied, e.Fetched)
}

// IntegrityError means existing local data failed a consistency check and a
// forced full resync was scheduled for the entity.
type IntegrityError struct {
	Entity string
	Reason string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s: local integrity check failed: %s", e.Entity, e.Reason)
}
