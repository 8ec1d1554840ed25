package server

import (
	"strings"
	"time"

	usagedomain "github.com/smallbiznis/wadesk/internal/usage/domain"
)

func parseOptionalDate(cal usagedomain.Calendar, value string) (*time.Time, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	parsed, err := cal.ParseDate(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}
