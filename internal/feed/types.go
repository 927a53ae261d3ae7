package feed

import "time"

// StatusEntry is the free-form JSON object stored under one key of the
// status feed. The upstream publishes at least "status" and "note" but is
// free to add attributes, so the whole object is retained.
type StatusEntry map[string]any

// Status returns the entry's "status" field, or empty string when absent
// or not a string.
func (e StatusEntry) Status() string {
	s, _ := e["status"].(string)
	return s
}

// Note returns the entry's "note" field, or empty string when absent or
// not a string.
func (e StatusEntry) Note() string {
	s, _ := e["note"].(string)
	return s
}

// StatusRecord is the full status feed payload: organizational unit name
// mapped to its entry. A record is immutable per refresh and replaced
// wholesale on each successful fetch, never merged.
type StatusRecord map[string]StatusEntry

// Row is one bus notification, reduced to the allow-listed field set.
//
// CreateTimeDisplay preserves the upstream display string; CreateTime is
// the parsed instant and is nil when no layout matched. Delay is derived
// from the Action text and is nil when the action carries no delay
// annotation (rendered as 0 where a numeric default is required).
type Row struct {
	Action            string     `json:"Action"`
	AffectsSchools    string     `json:"AffectsSchools"`
	Comment           string     `json:"Comment"`
	CreateTimeDisplay string     `json:"CreateTimeDisplay"`
	Operator          string     `json:"Operator"`
	TransferSchools   string     `json:"TransferSchools"`
	RouteRun          string     `json:"RouteRun"`
	CreateTime        *time.Time `json:"CreateTime,omitempty"`
	Delay             *int       `json:"Delay"`
}

// DelayMinutes returns the derived delay, defaulting to 0 when no delay
// annotation was found.
func (r Row) DelayMinutes() int {
	if r.Delay == nil {
		return 0
	}
	return *r.Delay
}

// PlaceholderRow is the row a route subscription holds when no
// notification matches its route: on time, zero delay, all text fields
// empty, no timestamp. RouteRun keeps the tracked route so consumers can
// still identify the subscription from the row alone.
func PlaceholderRow(route string) Row {
	delay := 0
	return Row{
		Action:   "On time",
		RouteRun: route,
		Delay:    &delay,
	}
}
