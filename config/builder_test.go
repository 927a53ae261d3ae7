package config

import (
	"testing"
	"time"

	"buswatch"
)

func TestBuildSubscriptions(t *testing.T) {
	cfg, err := Parse([]byte(`
refresh_interval: 2m
subscriptions:
  - type: status
  - type: route
    route: "12"
    interval: 30s
  - type: route
    route: "7"
    schedule: "@every 5m"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	subs, err := BuildSubscriptions(cfg)
	if err != nil {
		t.Fatalf("BuildSubscriptions() error = %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("got %d subscriptions, want 3", len(subs))
	}

	if subs[0].Kind() != buswatch.KindStatus {
		t.Errorf("subs[0].Kind() = %q, want status", subs[0].Kind())
	}
	// no own interval: inherits the global refresh_interval
	if subs[0].Interval() != 2*time.Minute {
		t.Errorf("subs[0].Interval() = %v, want inherited 2m", subs[0].Interval())
	}

	if subs[1].Route() != "12" {
		t.Errorf("subs[1].Route() = %q, want %q", subs[1].Route(), "12")
	}
	if subs[1].Interval() != 30*time.Second {
		t.Errorf("subs[1].Interval() = %v, want own 30s", subs[1].Interval())
	}

	if subs[2].Schedule() != "@every 5m" {
		t.Errorf("subs[2].Schedule() = %q, want the cron expression", subs[2].Schedule())
	}
}

func TestBuildOptions(t *testing.T) {
	cfg, err := Parse([]byte(`
port: 9090
status_feed_url: "https://example.com/status.json"
fetch_timeout: 5s
subscriptions:
  - type: route
    route: "12"
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	opts, err := BuildOptions(cfg)
	if err != nil {
		t.Fatalf("BuildOptions() error = %v", err)
	}

	// the options must produce a valid BusWatch carrying the config values
	bw, err := buswatch.New(opts...)
	if err != nil {
		t.Fatalf("New(BuildOptions()) error = %v", err)
	}
	if bw.Port() != 9090 {
		t.Errorf("Port() = %d, want 9090", bw.Port())
	}
	if got := len(bw.Subscriptions()); got != 1 {
		t.Errorf("Subscriptions() = %d, want 1", got)
	}
}
