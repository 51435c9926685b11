// Package broadcast delivers scheduled announcements (breakfast times,
// event reminders) to lists of guest chats on cron schedules.
package broadcast

import (
	"context"
	"log/slog"
	"time"

	"github.com/adhocore/gronx"

	"github.com/hostalia/concierge/internal/approvals"
	"github.com/hostalia/concierge/internal/config"
)

// Scheduler ticks once per minute and fires every schedule that is due.
type Scheduler struct {
	schedules []config.BroadcastSchedule
	sender    approvals.Sender
	channel   string // guest channel broadcasts go out on
	cron      *gronx.Gronx
}

// NewScheduler validates the schedules and returns a scheduler over the
// valid ones. Invalid cron expressions are logged and skipped, never fatal.
func NewScheduler(schedules []config.BroadcastSchedule, sender approvals.Sender, guestChannel string) *Scheduler {
	g := gronx.New()
	valid := make([]config.BroadcastSchedule, 0, len(schedules))
	for _, s := range schedules {
		if !g.IsValid(s.Cron) {
			slog.Warn("broadcast: invalid cron expression, skipping", "cron", s.Cron)
			continue
		}
		if s.Message == "" || len(s.Audience) == 0 {
			slog.Warn("broadcast: schedule without message or audience, skipping", "cron", s.Cron)
			continue
		}
		valid = append(valid, s)
	}
	return &Scheduler{
		schedules: valid,
		sender:    sender,
		channel:   guestChannel,
		cron:      g,
	}
}

// Len returns the number of active schedules.
func (s *Scheduler) Len() int { return len(s.schedules) }

// Run ticks until ctx is cancelled. Blocking; call in a goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	if len(s.schedules) == 0 {
		return
	}
	slog.Info("broadcast scheduler started", "schedules", len(s.schedules))

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("broadcast scheduler stopped")
			return
		case now := <-ticker.C:
			s.fireDue(ctx, now)
		}
	}
}

// fireDue sends every schedule due at ref to its audience.
func (s *Scheduler) fireDue(ctx context.Context, ref time.Time) {
	for _, sched := range s.schedules {
		due, err := s.cron.IsDue(sched.Cron, ref)
		if err != nil || !due {
			continue
		}
		slog.Info("broadcast: firing schedule", "cron", sched.Cron, "audience", len(sched.Audience))
		for _, chatID := range sched.Audience {
			if err := s.sender.Send(ctx, s.channel, chatID, sched.Message); err != nil {
				slog.Warn("broadcast: send failed", "chat_id", chatID, "error", err)
			}
		}
	}
}
