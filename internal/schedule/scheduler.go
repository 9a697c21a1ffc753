package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lileeluna/chores-bot/internal/gateway"
	"github.com/lileeluna/chores-bot/internal/model"
	"github.com/lileeluna/chores-bot/internal/store"
)

// Scheduler periodically fires persisted chore reminders and, once per
// calendar day, pings the assignees of overdue chores. Reminder times and the
// daily sweep marker live in the database, so neither is lost on restart.
type Scheduler struct {
	mu      sync.RWMutex
	chores  *store.ChoreStore
	notifs  *store.NotificationStore
	gw      gateway.Gateway
	channel string
	logger  *slog.Logger

	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewScheduler creates a scheduler that sends overdue pings to the channel
// with the given name.
func NewScheduler(chores *store.ChoreStore, notifs *store.NotificationStore, gw gateway.Gateway, channelName string, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		chores:   chores,
		notifs:   notifs,
		gw:       gw,
		channel:  channelName,
		logger:   logger,
		interval: 60 * time.Second,
		now:      time.Now,
	}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.fireDueReminders(ctx)
	s.dailySweep(ctx)
}

// fireDueReminders sends each pending reminder whose fire time has passed,
// then clears it so it fires at most once. A failed send keeps the reminder
// armed for the next tick.
func (s *Scheduler) fireDueReminders(ctx context.Context) {
	chores, err := s.chores.ListDueReminders(s.now())
	if err != nil {
		s.logger.Error("list due reminders", "error", err)
		return
	}

	for _, c := range chores {
		text := fmt.Sprintf("%s Please do %q whenever possible. Thank you!", gateway.Mention(c.AssignedTo), c.Name)
		if err := s.gw.Send(ctx, c.RemindChannel, text); err != nil {
			s.logger.Error("send reminder", "chore", c.Name, "error", err)
			continue
		}
		if err := s.chores.ClearReminder(c.Name); err != nil {
			s.logger.Error("clear reminder", "chore", c.Name, "error", err)
		}
	}
}

// dailySweep pings the assignee of every overdue chore, once per calendar
// day. Chores that have never been completed are skipped; their first
// reminder comes from the completion cycle.
func (s *Scheduler) dailySweep(ctx context.Context) {
	today := s.now()
	ref := today.Format("2006-01-02")

	sent, err := s.notifs.WasSent(model.NotifKindOverdueSweep, ref)
	if err != nil {
		s.logger.Error("check sweep marker", "error", err)
		return
	}
	if sent {
		return
	}

	channelID, err := s.gw.FindChannel(ctx, s.channel)
	if err != nil {
		s.logger.Warn("sweep channel not found", "channel", s.channel, "error", err)
		return
	}

	chores, err := s.chores.List()
	if err != nil {
		s.logger.Error("list chores for sweep", "error", err)
		return
	}

	for _, c := range chores {
		if c.LastDone == nil {
			continue
		}
		nextDue := NextDue(c.LastDone, c.FrequencyDays, today)
		if startOfDay(today).Before(nextDue) {
			continue
		}
		text := fmt.Sprintf("%s Please complete %q as soon as possible. Thank you!", gateway.Mention(c.AssignedTo), c.Name)
		if err := s.gw.Send(ctx, channelID, text); err != nil {
			s.logger.Error("send overdue ping", "chore", c.Name, "error", err)
		}
	}

	if err := s.notifs.RecordSent(model.NotifKindOverdueSweep, ref); err != nil {
		s.logger.Error("record sweep marker", "error", err)
	}
}
