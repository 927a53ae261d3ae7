package server

import (
	"testing"
	"time"

	"buswatch/internal/feed"
	"buswatch/internal/store"
)

func intPtr(n int) *int {
	return &n
}

func TestBuildEntities_Status(t *testing.T) {
	snap := store.Snapshot{
		ID:   "sub-status",
		Name: "Cancelations",
		Kind: store.KindStatus,
		Status: feed.StatusRecord{
			"North Simcoe": {"status": "Buses cancelled", "note": "freezing rain", "updated": "6:05 AM"},
			"South Simcoe": {"status": "On schedule"},
		},
		Available: true,
	}

	entities := BuildEntities([]store.Snapshot{snap})
	if len(entities) != 4 {
		t.Fatalf("got %d entities, want 4 (two per status key)", len(entities))
	}

	// sorted by key, status then note per key
	wantNames := []string{
		"North Simcoe status",
		"North Simcoe note",
		"South Simcoe status",
		"South Simcoe note",
	}
	for i, want := range wantNames {
		if entities[i].Name != want {
			t.Errorf("entities[%d].Name = %q, want %q", i, entities[i].Name, want)
		}
	}

	if got := entities[0].State; got != "Buses cancelled" {
		t.Errorf("North Simcoe status state = %v, want %q", got, "Buses cancelled")
	}
	if got := entities[1].State; got != "freezing rain" {
		t.Errorf("North Simcoe note state = %v, want %q", got, "freezing rain")
	}
	if got := entities[3].State; got != "" {
		t.Errorf("South Simcoe note state = %v, want empty string", got)
	}

	// attributes carry the full entry plus availability
	attrs := entities[0].Attributes
	if attrs["updated"] != "6:05 AM" {
		t.Errorf("attributes[updated] = %v, want %q", attrs["updated"], "6:05 AM")
	}
	if attrs["available"] != true {
		t.Errorf("attributes[available] = %v, want true", attrs["available"])
	}
}

func TestBuildEntities_Route(t *testing.T) {
	created := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)
	snap := store.Snapshot{
		ID:    "sub-12",
		Name:  "Bus 12",
		Kind:  store.KindRoute,
		Route: "12",
		Rows: []feed.Row{{
			Action:            "Delayed 10 minutes",
			AffectsSchools:    "Maple Grove PS",
			Comment:           "mechanical issue",
			CreateTimeDisplay: "2024-01-05 08:00:00",
			CreateTime:        &created,
			Operator:          "First Student",
			TransferSchools:   "none",
			RouteRun:          "12",
			Delay:             intPtr(10),
		}},
		Available: true,
		UpdatedAt: time.Date(2024, 1, 5, 8, 5, 0, 0, time.UTC),
	}

	entities := BuildEntities([]store.Snapshot{snap})
	if len(entities) != 8 {
		t.Fatalf("got %d entities, want 8 (one per row field)", len(entities))
	}

	states := make(map[string]any, len(entities))
	for _, e := range entities {
		states[e.Name] = e.State
	}

	want := map[string]any{
		"Bus 12 Action":            "Delayed 10 minutes",
		"Bus 12 AffectsSchools":    "Maple Grove PS",
		"Bus 12 Comment":           "mechanical issue",
		"Bus 12 CreateTimeDisplay": "2024-01-05T08:00:00Z",
		"Bus 12 Operator":          "First Student",
		"Bus 12 TransferSchools":   "none",
		"Bus 12 RouteRun":          "12",
		"Bus 12 Delay":             10,
	}
	for name, wantState := range want {
		got, ok := states[name]
		if !ok {
			t.Errorf("missing entity %q", name)
			continue
		}
		if got != wantState {
			t.Errorf("%s state = %v, want %v", name, got, wantState)
		}
	}

	attrs := entities[0].Attributes
	if attrs["route"] != "12" {
		t.Errorf("attributes[route] = %v, want %q", attrs["route"], "12")
	}
	if attrs["updated_at"] != "2024-01-05T08:05:00Z" {
		t.Errorf("attributes[updated_at] = %v, want RFC 3339 string", attrs["updated_at"])
	}
}

func TestBuildEntities_PlaceholderRow(t *testing.T) {
	snap := store.Snapshot{
		ID:        "sub-99",
		Name:      "Bus 99",
		Kind:      store.KindRoute,
		Route:     "99",
		Rows:      []feed.Row{feed.PlaceholderRow("99")},
		Available: true,
	}

	entities := BuildEntities([]store.Snapshot{snap})
	if len(entities) != 8 {
		t.Fatalf("got %d entities, want 8", len(entities))
	}

	states := make(map[string]any, len(entities))
	for _, e := range entities {
		states[e.Name] = e.State
	}

	if states["Bus 99 Action"] != "On time" {
		t.Errorf("Action state = %v, want %q", states["Bus 99 Action"], "On time")
	}
	if states["Bus 99 Delay"] != 0 {
		t.Errorf("Delay state = %v, want 0", states["Bus 99 Delay"])
	}
	if states["Bus 99 RouteRun"] != "99" {
		t.Errorf("RouteRun state = %v, want %q", states["Bus 99 RouteRun"], "99")
	}
	if states["Bus 99 CreateTimeDisplay"] != nil {
		t.Errorf("CreateTimeDisplay state = %v, want nil", states["Bus 99 CreateTimeDisplay"])
	}
}

func TestRenderCreateTime(t *testing.T) {
	parsed := time.Date(2024, 1, 5, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		row  feed.Row
		want any
	}{
		{"parsed instant wins", feed.Row{CreateTime: &parsed, CreateTimeDisplay: "whatever"}, "2024-01-05T08:00:00Z"},
		{"unparsed falls back to display", feed.Row{CreateTimeDisplay: "this morning"}, "this morning"},
		{"absent is nil", feed.Row{}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := renderCreateTime(tt.row); got != tt.want {
				t.Errorf("renderCreateTime() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildEntities_EmptyRows(t *testing.T) {
	snap := store.Snapshot{ID: "sub-12", Name: "Bus 12", Kind: store.KindRoute, Route: "12"}

	if got := BuildEntities([]store.Snapshot{snap}); len(got) != 0 {
		t.Errorf("got %d entities for rowless snapshot, want 0", len(got))
	}
}

func TestSlug(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bus 12", "bus_12"},
		{"North Simcoe", "north_simcoe"},
		{"  spaced  out  ", "spaced_out"},
		{"UPPER", "upper"},
		{"with-dash.dot", "with_dash_dot"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := slug(tt.in); got != tt.want {
			t.Errorf("slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEntityID_Stable(t *testing.T) {
	a := entityID("sub-12", "Bus 12", "Action")
	b := entityID("sub-12", "Bus 12", "Action")
	if a != b {
		t.Errorf("entityID not stable: %q vs %q", a, b)
	}
	if a != "sub_12_bus_12_action" {
		t.Errorf("entityID = %q, want %q", a, "sub_12_bus_12_action")
	}
}
