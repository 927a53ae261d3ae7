package refresh

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"buswatch/internal/feed"
	"buswatch/internal/store"
)

// fixedSchedule fires at a fixed interval. cron.Every floors at one
// second, which is too slow for tests.
type fixedSchedule struct {
	every time.Duration
}

func (s fixedSchedule) Next(t time.Time) time.Time {
	return t.Add(s.every)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBase() store.Snapshot {
	return store.Snapshot{
		ID:    "sub-1",
		Name:  "Bus 12",
		Kind:  store.KindRoute,
		Route: "12",
	}
}

func routeSnapshot(rows []feed.Row) store.Snapshot {
	snap := testBase()
	snap.Rows = rows
	return snap
}

func TestCoordinator_FirstRefresh(t *testing.T) {
	st := store.NewMemoryStore()
	rows := []feed.Row{feed.PlaceholderRow("12")}

	coord := NewCoordinator(testBase(), fixedSchedule{time.Hour},
		func(ctx context.Context) (store.Snapshot, error) {
			return routeSnapshot(rows), nil
		}, st, testLogger())

	if err := coord.FirstRefresh(context.Background()); err != nil {
		t.Fatalf("FirstRefresh() error = %v", err)
	}

	snap, ok := st.Get("sub-1")
	if !ok {
		t.Fatal("snapshot not published after first refresh")
	}
	if !snap.Available {
		t.Error("Available = false after successful first refresh")
	}
	if snap.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
	if len(snap.Rows) != 1 {
		t.Errorf("Rows = %d, want 1", len(snap.Rows))
	}
}

func TestCoordinator_FirstRefreshFailure(t *testing.T) {
	st := store.NewMemoryStore()
	wantErr := errors.New("upstream down")

	coord := NewCoordinator(testBase(), fixedSchedule{time.Hour},
		func(ctx context.Context) (store.Snapshot, error) {
			return store.Snapshot{}, wantErr
		}, st, testLogger())

	err := coord.FirstRefresh(context.Background())
	if err == nil {
		t.Fatal("FirstRefresh() error = nil, want error")
	}
	if !errors.Is(err, wantErr) {
		t.Errorf("FirstRefresh() error = %v, want wrapped %v", err, wantErr)
	}

	// a failed first refresh publishes nothing; setup is reported failed
	if _, ok := st.Get("sub-1"); ok {
		t.Error("snapshot published despite failed first refresh")
	}
}

func TestCoordinator_PeriodicRefresh(t *testing.T) {
	st := store.NewMemoryStore()
	var calls atomic.Int32

	coord := NewCoordinator(testBase(), fixedSchedule{10 * time.Millisecond},
		func(ctx context.Context) (store.Snapshot, error) {
			calls.Add(1)
			return routeSnapshot([]feed.Row{feed.PlaceholderRow("12")}), nil
		}, st, testLogger())

	if err := coord.FirstRefresh(context.Background()); err != nil {
		t.Fatalf("FirstRefresh() error = %v", err)
	}

	coord.Start(context.Background())
	defer coord.Stop()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d refreshes within deadline, want >= 3", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCoordinator_FailureKeepsLastData(t *testing.T) {
	st := store.NewMemoryStore()
	rows := []feed.Row{feed.PlaceholderRow("12")}
	var failing atomic.Bool

	coord := NewCoordinator(testBase(), fixedSchedule{10 * time.Millisecond},
		func(ctx context.Context) (store.Snapshot, error) {
			if failing.Load() {
				return store.Snapshot{}, errors.New("upstream down")
			}
			return routeSnapshot(rows), nil
		}, st, testLogger())

	if err := coord.FirstRefresh(context.Background()); err != nil {
		t.Fatalf("FirstRefresh() error = %v", err)
	}
	failing.Store(true)

	coord.Start(context.Background())
	defer coord.Stop()

	// wait for a failed tick to publish
	deadline := time.After(2 * time.Second)
	for {
		snap, _ := st.Get("sub-1")
		if !snap.Available {
			if len(snap.Rows) != 1 {
				t.Errorf("Rows = %d after failure, want last good data kept", len(snap.Rows))
			}
			if snap.Error == "" {
				t.Error("Error empty after failed refresh")
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("snapshot never marked unavailable after failures")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// recovery clears the error and restores availability
	failing.Store(false)
	deadline = time.After(2 * time.Second)
	for {
		snap, _ := st.Get("sub-1")
		if snap.Available {
			if snap.Error != "" {
				t.Errorf("Error = %q after recovery, want empty", snap.Error)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("snapshot never recovered")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestCoordinator_PanicRecovery(t *testing.T) {
	st := store.NewMemoryStore()

	coord := NewCoordinator(testBase(), fixedSchedule{time.Hour},
		func(ctx context.Context) (store.Snapshot, error) {
			panic("boom")
		}, st, testLogger())

	err := coord.FirstRefresh(context.Background())
	if err == nil {
		t.Fatal("FirstRefresh() error = nil, want panic converted to error")
	}
	if !strings.Contains(err.Error(), "panic") {
		t.Errorf("error = %q, want mention of panic", err.Error())
	}
}

func TestCoordinator_StopIdempotent(t *testing.T) {
	st := store.NewMemoryStore()
	coord := NewCoordinator(testBase(), fixedSchedule{time.Hour},
		func(ctx context.Context) (store.Snapshot, error) {
			return testBase(), nil
		}, st, testLogger())

	// Stop before Start is a safe no-op
	coord.Stop()

	coord.Start(context.Background())
	coord.Stop()
	coord.Stop()

	// Start after Stop must not restart the loop
	coord.Start(context.Background())
	coord.Stop()
}

func TestCoordinator_ContextCancelStopsLoop(t *testing.T) {
	st := store.NewMemoryStore()
	var calls atomic.Int32

	coord := NewCoordinator(testBase(), fixedSchedule{10 * time.Millisecond},
		func(ctx context.Context) (store.Snapshot, error) {
			calls.Add(1)
			return testBase(), nil
		}, st, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	coord.Start(ctx)

	deadline := time.After(2 * time.Second)
	for calls.Load() < 1 {
		select {
		case <-deadline:
			t.Fatal("no refresh before cancel")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	coord.Stop()

	after := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() != after {
		t.Error("refreshes continued after context cancel")
	}
}
