package escalation

import (
	"testing"
	"time"
)

func TestConsentManager_PendingWithinTTL(t *testing.T) {
	m := NewConsentManager(15 * time.Minute)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	m.Request("whatsapp:34600111222", "necesito una cama extra", "availability", "pms sin respuesta", "")

	base = base.Add(10 * time.Minute)
	req := m.GetPending("whatsapp:34600111222")
	if req == nil {
		t.Fatal("request expired before TTL")
	}
	if req.Type != "availability" {
		t.Errorf("Type = %q, want %q", req.Type, "availability")
	}
}

func TestConsentManager_ExpiresLazilyAndClears(t *testing.T) {
	m := NewConsentManager(15 * time.Minute)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	m.Request("chat-1", "msg", "general", "reason", "")

	base = base.Add(15*time.Minute + time.Second)
	if req := m.GetPending("chat-1"); req != nil {
		t.Fatal("expired request still returned")
	}

	// Expiry clears the entry: a second read (even at the original time)
	// must also find nothing.
	base = time.Date(2026, 3, 10, 12, 1, 0, 0, time.UTC)
	if req := m.GetPending("chat-1"); req != nil {
		t.Fatal("expired request not cleared on first read")
	}
}

func TestConsentManager_RequestOverwrites(t *testing.T) {
	m := NewConsentManager(15 * time.Minute)
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	first := m.Request("chat-1", "first", "general", "r1", "")
	base = base.Add(14 * time.Minute)
	m.Request("chat-1", "second", "booking", "r2", "")

	// The overwrite is freshly timestamped, so it survives past the first
	// request's would-be expiry.
	base = base.Add(10 * time.Minute)
	req := m.GetPending("chat-1")
	if req == nil {
		t.Fatal("overwritten request expired with the original's timestamp")
	}
	if req.GuestMessage != "second" || req.ID == first.ID {
		t.Errorf("got request %+v, want the overwriting one", req)
	}
}

func TestConsentManager_ClearIdempotent(t *testing.T) {
	m := NewConsentManager(0)

	m.Clear("never-existed")

	m.Request("chat-1", "msg", "general", "r", "")
	m.Clear("chat-1")
	m.Clear("chat-1")
	if req := m.GetPending("chat-1"); req != nil {
		t.Fatal("request survived Clear")
	}
}
