package buswatch

import "time"

// Kind identifies what a [Subscription] tracks.
//
// Kind is a string type with two predefined values, [KindStatus] and
// [KindRoute]. Using a string type allows easy JSON serialization and
// human-readable logging while keeping type safety through the constants.
type Kind string

const (
	// KindStatus tracks the cancellation status feed: one JSON mapping of
	// organizational unit name to {status, note, ...}.
	KindStatus Kind = "status"

	// KindRoute tracks the bus notification feed for a single route.
	KindRoute Kind = "route"
)

// String returns the string representation of the kind.
// This implements the fmt.Stringer interface.
func (k Kind) String() string {
	return string(k)
}

// StatusEntry is the free-form object under one key of the status feed.
// The upstream guarantees "status" and "note"; anything else it publishes
// is carried along untouched.
type StatusEntry map[string]any

// Status returns the entry's "status" field, or empty string when absent.
func (e StatusEntry) Status() string {
	s, _ := e["status"].(string)
	return s
}

// Note returns the entry's "note" field, or empty string when absent.
func (e StatusEntry) Note() string {
	s, _ := e["note"].(string)
	return s
}

// StatusRecord is the status feed payload: organizational unit name mapped
// to its entry. Records are immutable per refresh and replaced wholesale
// on each successful fetch.
type StatusRecord map[string]StatusEntry

// NotificationRow is one bus notification reduced to the allow-listed
// field set, plus the derived delay.
//
// CreateTime is nil when the upstream display string did not parse; the
// original string is still available in CreateTimeDisplay. Delay is nil
// when the action text carries no delay annotation.
type NotificationRow struct {
	Action            string
	AffectsSchools    string
	Comment           string
	CreateTimeDisplay string
	Operator          string
	TransferSchools   string
	RouteRun          string
	CreateTime        *time.Time
	Delay             *int
}

// DelayMinutes returns the derived delay, defaulting to 0 when no delay
// annotation was found.
func (r NotificationRow) DelayMinutes() int {
	if r.Delay == nil {
		return 0
	}
	return *r.Delay
}

// Update is delivered to functions registered via [WithUpdateCallback]
// after every refresh, successful or not.
//
// Update is a defensive copy: callbacks may mutate it freely without
// affecting the store or other callbacks. Exactly one of Status or Rows is
// populated, according to Kind. On a failed refresh, the data fields hold
// the last good result, Available is false, and Err carries the cause.
type Update struct {
	// SubscriptionID identifies the subscription this update belongs to.
	SubscriptionID string

	// Name is the subscription's display name.
	Name string

	// Kind is the subscription kind.
	Kind Kind

	// Route is the tracked route for KindRoute updates, empty otherwise.
	Route string

	// Status is the full status record for KindStatus updates.
	Status StatusRecord

	// Rows is the projected row list for KindRoute updates. Normally
	// exactly one row; the placeholder row when nothing matched.
	Rows []NotificationRow

	// Available is false while the last refresh failed.
	Available bool

	// UpdatedAt is the time of the last successful refresh.
	UpdatedAt time.Time

	// Err is the last refresh failure message, empty when Available.
	Err string
}
