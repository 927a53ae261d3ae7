package feed

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// delayPattern matches the free-text delay annotation the operator writes
// into the action field, e.g. "Bus Delayed 15 minutes due to weather".
var delayPattern = regexp.MustCompile(`(?i)delayed\s+(\d+)\s+minutes?`)

// createTimeLayouts are tried in order after RFC 3339 fails. The upstream
// display format has drifted over time; first successful parse wins.
var createTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006 3:04:05 PM",
	"1/2/2006 3:04 PM",
	"01/02/2006 15:04:05",
}

// Project filters raw notification rows down to the allow-listed field set
// for a single tracked route.
//
// A row is kept when its RouteRun equals route under trimmed,
// case-insensitive comparison; rows with a missing or non-string route are
// skipped. Field parsing never fails the row: an unparseable creation time
// leaves CreateTime nil with the original display string preserved, and an
// action without a delay annotation leaves Delay nil.
//
// Project is pure: it does not modify rows, and the same input always
// yields the same output.
func Project(rows []map[string]any, route string) []Row {
	target := strings.TrimSpace(route)

	var out []Row
	for _, raw := range rows {
		candidate, ok := raw["RouteRun"].(string)
		if !ok || !strings.EqualFold(strings.TrimSpace(candidate), target) {
			continue
		}

		row := Row{
			Action:            stringField(raw, "Action"),
			AffectsSchools:    stringField(raw, "AffectsSchools"),
			Comment:           stringField(raw, "Comment"),
			CreateTimeDisplay: stringField(raw, "CreateTimeDisplay"),
			Operator:          stringField(raw, "Operator"),
			TransferSchools:   stringField(raw, "TransferSchools"),
			RouteRun:          candidate,
		}
		row.CreateTime = parseCreateTime(row.CreateTimeDisplay)
		row.Delay = parseDelay(row.Action)

		out = append(out, row)
	}
	return out
}

// stringField reads a string value from a raw row, treating missing keys
// and non-string values as empty.
func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// parseCreateTime attempts RFC 3339 first, then the known display layouts.
// Returns nil when nothing matches; the caller keeps the original string.
func parseCreateTime(display string) *time.Time {
	display = strings.TrimSpace(display)
	if display == "" {
		return nil
	}

	if t, err := time.Parse(time.RFC3339, display); err == nil {
		return &t
	}
	for _, layout := range createTimeLayouts {
		if t, err := time.Parse(layout, display); err == nil {
			return &t
		}
	}
	return nil
}

// parseDelay extracts the delay in minutes from the action text, or nil
// when the text carries no delay annotation.
func parseDelay(action string) *int {
	m := delayPattern.FindStringSubmatch(action)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
