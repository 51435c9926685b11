package broadcast

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hostalia/concierge/internal/config"
)

type captureSender struct {
	mu   sync.Mutex
	sent []string // "chatID|text"
}

func (c *captureSender) Send(_ context.Context, _, chatID, text string) error {
	c.mu.Lock()
	c.sent = append(c.sent, chatID+"|"+text)
	c.mu.Unlock()
	return nil
}

func TestInvalidSchedulesSkipped(t *testing.T) {
	s := NewScheduler([]config.BroadcastSchedule{
		{Cron: "not a cron", Message: "m", Audience: []string{"1"}},
		{Cron: "0 9 * * *", Message: "", Audience: []string{"1"}},
		{Cron: "0 9 * * *", Message: "Desayuno hasta las 10", Audience: nil},
		{Cron: "0 9 * * *", Message: "Desayuno hasta las 10", Audience: []string{"1"}},
	}, &captureSender{}, "whatsapp")

	if s.Len() != 1 {
		t.Errorf("active schedules = %d, want 1", s.Len())
	}
}

func TestFireDueMatchesCron(t *testing.T) {
	sender := &captureSender{}
	s := NewScheduler([]config.BroadcastSchedule{
		{Cron: "0 9 * * *", Message: "El desayuno se sirve hasta las 10.", Audience: []string{"g1", "g2"}},
		{Cron: "0 20 * * *", Message: "La cena empieza a las 20:30.", Audience: []string{"g1"}},
	}, sender, "whatsapp")

	nine := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	s.fireDue(context.Background(), nine)

	sender.mu.Lock()
	got := append([]string(nil), sender.sent...)
	sender.mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("sent = %v, want 2 morning messages", got)
	}
	for _, entry := range got {
		if entry != "g1|El desayuno se sirve hasta las 10." && entry != "g2|El desayuno se sirve hasta las 10." {
			t.Errorf("unexpected send %q", entry)
		}
	}
}

func TestFireDueQuietMinute(t *testing.T) {
	sender := &captureSender{}
	s := NewScheduler([]config.BroadcastSchedule{
		{Cron: "0 9 * * *", Message: "m", Audience: []string{"g1"}},
	}, sender, "whatsapp")

	s.fireDue(context.Background(), time.Date(2026, 8, 31, 9, 1, 0, 0, time.UTC))

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v, want none", sender.sent)
	}
}
