package server

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"buswatch/internal/feed"
	"buswatch/internal/store"
)

// Entity is one externally observable named value derived from a
// subscription snapshot, in the shape of a host-platform sensor: an id, a
// display name, the current state, and free-form attributes.
type Entity struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	State      any            `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// BuildEntities projects the current snapshots into named values.
//
// Entities are rebuilt from the live snapshots on every call, so states
// always reflect the latest refresh rather than anything captured at
// registration time.
//
// A status snapshot yields two entities per status key ("<key> status" and
// "<key> note"), each carrying the full object under that key as
// attributes. A route snapshot yields one entity per field of its first
// row, including the derived delay.
func BuildEntities(snaps []store.Snapshot) []Entity {
	var entities []Entity
	for _, snap := range snaps {
		switch snap.Kind {
		case store.KindStatus:
			entities = append(entities, statusEntities(snap)...)
		case store.KindRoute:
			entities = append(entities, routeEntities(snap)...)
		}
	}
	return entities
}

func statusEntities(snap store.Snapshot) []Entity {
	keys := make([]string, 0, len(snap.Status))
	for key := range snap.Status {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entities := make([]Entity, 0, 2*len(keys))
	for _, key := range keys {
		entry := snap.Status[key]
		attrs := make(map[string]any, len(entry)+1)
		for k, v := range entry {
			attrs[k] = v
		}
		attrs["available"] = snap.Available

		entities = append(entities,
			Entity{
				ID:         entityID(snap.ID, key, "status"),
				Name:       fmt.Sprintf("%s status", key),
				State:      entry.Status(),
				Attributes: attrs,
			},
			Entity{
				ID:         entityID(snap.ID, key, "note"),
				Name:       fmt.Sprintf("%s note", key),
				State:      entry.Note(),
				Attributes: attrs,
			},
		)
	}
	return entities
}

func routeEntities(snap store.Snapshot) []Entity {
	if len(snap.Rows) == 0 {
		return nil
	}
	row := snap.Rows[0]

	fields := []struct {
		name  string
		state any
	}{
		{"Action", row.Action},
		{"AffectsSchools", row.AffectsSchools},
		{"Comment", row.Comment},
		{"CreateTimeDisplay", renderCreateTime(row)},
		{"Operator", row.Operator},
		{"TransferSchools", row.TransferSchools},
		{"RouteRun", row.RouteRun},
		{"Delay", row.DelayMinutes()},
	}

	attrs := map[string]any{
		"route":      snap.Route,
		"available":  snap.Available,
		"updated_at": snap.UpdatedAt.Format(time.RFC3339),
	}

	entities := make([]Entity, 0, len(fields))
	for _, f := range fields {
		entities = append(entities, Entity{
			ID:         entityID(snap.ID, snap.Name, f.name),
			Name:       fmt.Sprintf("%s %s", snap.Name, f.name),
			State:      f.state,
			Attributes: attrs,
		})
	}
	return entities
}

// renderCreateTime renders the parsed instant as RFC 3339; an unparsed
// value falls back to the original display string, and an absent one to
// nil.
func renderCreateTime(row feed.Row) any {
	if row.CreateTime != nil {
		return row.CreateTime.Format(time.RFC3339)
	}
	if row.CreateTimeDisplay != "" {
		return row.CreateTimeDisplay
	}
	return nil
}

// entityID builds a stable lowercase identifier from the given parts.
func entityID(parts ...string) string {
	slugs := make([]string, 0, len(parts))
	for _, part := range parts {
		slugs = append(slugs, slug(part))
	}
	return strings.Join(slugs, "_")
}

// slug lowercases and replaces runs of non-alphanumerics with underscores.
func slug(s string) string {
	var b strings.Builder
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
