package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"buswatch/internal/feed"
)

func TestMemoryStore_UpdateAndGet(t *testing.T) {
	st := NewMemoryStore()

	snap := Snapshot{
		ID:        "sub-1",
		Name:      "Bus 12",
		Kind:      KindRoute,
		Route:     "12",
		Rows:      []feed.Row{feed.PlaceholderRow("12")},
		Available: true,
		UpdatedAt: time.Now(),
	}
	st.Update(snap)

	got, ok := st.Get("sub-1")
	if !ok {
		t.Fatal("Get() ok = false, want true")
	}
	if got.Name != "Bus 12" || got.Route != "12" {
		t.Errorf("Get() = %+v, want stored snapshot", got)
	}

	if _, ok := st.Get("missing"); ok {
		t.Error("Get() ok = true for unknown ID, want false")
	}
}

func TestMemoryStore_UpdateReplacesWholesale(t *testing.T) {
	st := NewMemoryStore()

	st.Update(Snapshot{ID: "sub-1", Name: "Bus 12", Available: true, Error: ""})
	st.Update(Snapshot{ID: "sub-1", Name: "Bus 12", Available: false, Error: "upstream down"})

	got, _ := st.Get("sub-1")
	if got.Available {
		t.Error("Available = true after failure update, want false")
	}
	if got.Error != "upstream down" {
		t.Errorf("Error = %q, want %q", got.Error, "upstream down")
	}
}

func TestMemoryStore_GetAllSortedByName(t *testing.T) {
	st := NewMemoryStore()
	st.Update(Snapshot{ID: "c", Name: "Bus 7"})
	st.Update(Snapshot{ID: "a", Name: "Bus 12"})
	st.Update(Snapshot{ID: "b", Name: "Cancelations"})

	all := st.GetAll()
	if len(all) != 3 {
		t.Fatalf("GetAll() = %d snapshots, want 3", len(all))
	}

	wantOrder := []string{"Bus 12", "Bus 7", "Cancelations"}
	for i, want := range wantOrder {
		if all[i].Name != want {
			t.Errorf("GetAll()[%d].Name = %q, want %q", i, all[i].Name, want)
		}
	}
}

func TestMemoryStore_Subscribe(t *testing.T) {
	st := NewMemoryStore()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	st.Update(Snapshot{ID: "sub-1", Name: "Bus 12"})

	select {
	case snap := <-ch:
		if snap.ID != "sub-1" {
			t.Errorf("received snapshot ID = %q, want %q", snap.ID, "sub-1")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
	}
}

func TestMemoryStore_UnsubscribeClosesChannel(t *testing.T) {
	st := NewMemoryStore()
	ch := st.Subscribe()

	st.Unsubscribe(ch)

	select {
	case _, open := <-ch:
		if open {
			t.Error("channel still open after Unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after Unsubscribe")
	}

	// double unsubscribe must not panic
	st.Unsubscribe(ch)

	// updates after unsubscribe must not panic either
	st.Update(Snapshot{ID: "sub-1"})
}

func TestMemoryStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	st := NewMemoryStore()
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	// overflow the buffer without draining; Update must never block
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 250; i++ {
			st.Update(Snapshot{ID: fmt.Sprintf("sub-%d", i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Update blocked on a slow subscriber")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	st := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("sub-%d", n)
			for j := 0; j < 100; j++ {
				st.Update(Snapshot{ID: id, Name: id})
				st.Get(id)
				st.GetAll()
			}
		}(i)
	}
	wg.Wait()

	if got := len(st.GetAll()); got != 10 {
		t.Errorf("GetAll() = %d snapshots, want 10", got)
	}
}
