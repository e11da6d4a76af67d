package domain

import (
	"fmt"
	"strings"
)

// SortOrder selects how the derived task list is ordered.
type SortOrder string

const (
	SortDateAsc           SortOrder = "date_asc"
	SortDateDesc          SortOrder = "date_desc"
	SortPriorityHighFirst SortOrder = "priority_high_first"
	SortPriorityLowFirst  SortOrder = "priority_low_first"
	SortCompletionStatus  SortOrder = "completion_status"
)

// DefaultSortOrder is used when no order was chosen.
const DefaultSortOrder = SortDateAsc

func (o SortOrder) Valid() bool {
	switch o {
	case SortDateAsc, SortDateDesc, SortPriorityHighFirst, SortPriorityLowFirst, SortCompletionStatus:
		return true
	}
	return false
}

// ParseSortOrder is case-insensitive and also accepts the upper-case constant style (DATE_ASC).
func ParseSortOrder(s string) (SortOrder, error) {
	o := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	if o == "" {
		return DefaultSortOrder, nil
	}
	if !o.Valid() {
		return "", fmt.Errorf("unknown sort order %q", s)
	}
	return o, nil
}
