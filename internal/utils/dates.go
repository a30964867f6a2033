package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/yukikurage/mo-task-monitor/internal/constants"
)

// ParseDate parses a calendar date in YYYY-MM-DD form as UTC midnight.
func ParseDate(value string) (time.Time, error) {
	d, err := time.ParseInLocation(constants.DateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return d, nil
}

// ParseOptionalDate returns nil for an empty value.
func ParseOptionalDate(value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	d, err := ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
