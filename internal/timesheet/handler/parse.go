package handler

import (
	"time"

	"github.com/zeitwerk/zeitwerk-backend/pkg/errors"
)

const dateLayout = "2006-01-02"

func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, errors.BadRequest(field + " must be a date in YYYY-MM-DD format")
	}
	return t, nil
}

func parseOptionalDate(field string, value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseDate(field, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// parseClock resolves a HH:MM wall clock onto a calendar day in UTC
func parseClock(field, value string, day time.Time) (time.Time, error) {
	c, err := time.Parse("15:04", value)
	if err != nil {
		return time.Time{}, errors.BadRequest(field + " must be a time in HH:MM format")
	}
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), 0, 0, time.UTC), nil
}
