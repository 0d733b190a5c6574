package services

import (
	"strings"
	"time"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02",
	"02/01/2006",
}

// ParseDate accepts the date formats the front-end sends: RFC 3339, an ISO
// date, or dd/mm/yyyy. Dates without a zone are taken as UTC. An empty string
// yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("date", "fecha inválida: %q", s)
}
