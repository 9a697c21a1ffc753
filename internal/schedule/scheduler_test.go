package schedule

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lileeluna/chores-bot/internal/database"
	"github.com/lileeluna/chores-bot/internal/gateway"
	"github.com/lileeluna/chores-bot/internal/store"
)

// fakeGateway records sends and serves a fixed member/channel directory.
type fakeGateway struct {
	mu       sync.Mutex
	sent     []sentText
	channels map[string]string
}

type sentText struct {
	channelID string
	text      string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{channels: map[string]string{"bot-test": "chan-sweep"}}
}

func (f *fakeGateway) ResolveMember(_ context.Context, token string) (gateway.Member, error) {
	id := gateway.ParseMention(token)
	if id == "" {
		return gateway.Member{}, gateway.ErrUnresolved
	}
	return gateway.Member{ID: id}, nil
}

func (f *fakeGateway) FetchMember(_ context.Context, id string) (gateway.Member, error) {
	return gateway.Member{ID: id}, nil
}

func (f *fakeGateway) Send(_ context.Context, channelID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentText{channelID: channelID, text: text})
	return nil
}

func (f *fakeGateway) FindChannel(_ context.Context, name string) (string, error) {
	id, ok := f.channels[name]
	if !ok {
		return "", gateway.ErrUnresolved
	}
	return id, nil
}

func (f *fakeGateway) sentTexts() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentText(nil), f.sent...)
}

func setupScheduler(t *testing.T) (*Scheduler, *store.ChoreStore, *fakeGateway) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cs := store.NewChoreStore(db)
	ns := store.NewNotificationStore(db)
	gw := newFakeGateway()
	s := NewScheduler(cs, ns, gw, "bot-test", slog.Default())
	return s, cs, gw
}

func setClock(s *Scheduler, at time.Time) {
	s.now = func() time.Time { return at }
}

func TestReminderFiresOnceAndClears(t *testing.T) {
	s, cs, gw := setupScheduler(t)
	now := time.Date(2026, 3, 18, 0, 5, 0, 0, time.UTC)
	setClock(s, now)

	chore, _ := cs.Create("dishes", "100", 7, []string{"100"})
	fireAt := now.Add(-time.Minute)
	chore.RemindAt = &fireAt
	chore.RemindChannel = "chan-1"
	if err := cs.RecordCompletion(chore); err != nil {
		t.Fatalf("arm reminder: %v", err)
	}

	s.fireDueReminders(context.Background())

	sent := gw.sentTexts()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reminder, got %d", len(sent))
	}
	if sent[0].channelID != "chan-1" {
		t.Errorf("channel = %q, want chan-1", sent[0].channelID)
	}
	if !strings.Contains(sent[0].text, "<@100>") || !strings.Contains(sent[0].text, `"dishes"`) {
		t.Errorf("text = %q, want mention and chore name", sent[0].text)
	}

	// A second pass finds nothing armed.
	s.fireDueReminders(context.Background())
	if len(gw.sentTexts()) != 1 {
		t.Error("reminder fired more than once")
	}
}

func TestReminderNotYetDue(t *testing.T) {
	s, cs, gw := setupScheduler(t)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	setClock(s, now)

	chore, _ := cs.Create("dishes", "100", 7, []string{"100"})
	fireAt := now.Add(time.Hour)
	chore.RemindAt = &fireAt
	chore.RemindChannel = "chan-1"
	cs.RecordCompletion(chore)

	s.fireDueReminders(context.Background())
	if len(gw.sentTexts()) != 0 {
		t.Error("reminder fired before its time")
	}
}

func TestReminderGoneWithChore(t *testing.T) {
	s, cs, gw := setupScheduler(t)
	now := time.Date(2026, 3, 18, 0, 5, 0, 0, time.UTC)
	setClock(s, now)

	chore, _ := cs.Create("dishes", "100", 7, []string{"100"})
	fireAt := now.Add(-time.Minute)
	chore.RemindAt = &fireAt
	chore.RemindChannel = "chan-1"
	cs.RecordCompletion(chore)

	cs.Delete("dishes")

	s.fireDueReminders(context.Background())
	if len(gw.sentTexts()) != 0 {
		t.Error("reminder fired for a removed chore")
	}
}

func TestSweepPingsOverdueChores(t *testing.T) {
	s, cs, gw := setupScheduler(t)
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	setClock(s, now)

	// Overdue: done 10 days ago on a 7-day cadence.
	chore, _ := cs.Create("dishes", "100", 7, []string{"100"})
	done := now.AddDate(0, 0, -10)
	doneBy := "100"
	chore.LastDone = &done
	chore.LastDoneBy = &doneBy
	cs.RecordCompletion(chore)

	// Not yet due: done yesterday.
	fresh, _ := cs.Create("trash", "200", 7, []string{"200"})
	freshDone := now.AddDate(0, 0, -1)
	fresh.LastDone = &freshDone
	fresh.LastDoneBy = &doneBy
	cs.RecordCompletion(fresh)

	// Never completed: skipped by the sweep.
	cs.Create("mopping", "300", 7, []string{"300"})

	s.dailySweep(context.Background())

	sent := gw.sentTexts()
	if len(sent) != 1 {
		t.Fatalf("expected 1 overdue ping, got %d", len(sent))
	}
	if sent[0].channelID != "chan-sweep" {
		t.Errorf("channel = %q, want chan-sweep", sent[0].channelID)
	}
	if !strings.Contains(sent[0].text, `"dishes"`) {
		t.Errorf("text = %q, want the overdue chore named", sent[0].text)
	}
}

func TestSweepRunsOncePerDay(t *testing.T) {
	s, cs, gw := setupScheduler(t)
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	setClock(s, now)

	chore, _ := cs.Create("dishes", "100", 7, []string{"100"})
	done := now.AddDate(0, 0, -10)
	doneBy := "100"
	chore.LastDone = &done
	chore.LastDoneBy = &doneBy
	cs.RecordCompletion(chore)

	s.dailySweep(context.Background())
	s.dailySweep(context.Background())
	if len(gw.sentTexts()) != 1 {
		t.Fatalf("expected 1 ping for the day, got %d", len(gw.sentTexts()))
	}

	// The next day it notifies again: overdue chores are re-pinged daily.
	setClock(s, now.AddDate(0, 0, 1))
	s.dailySweep(context.Background())
	if len(gw.sentTexts()) != 2 {
		t.Fatalf("expected a second ping the following day, got %d", len(gw.sentTexts()))
	}
}

func TestSweepDueTodayCounts(t *testing.T) {
	s, cs, gw := setupScheduler(t)
	now := time.Date(2026, 3, 20, 9, 0, 0, 0, time.UTC)
	setClock(s, now)

	// Due exactly today: today >= next due, so it is pinged.
	chore, _ := cs.Create("dishes", "100", 7, []string{"100"})
	done := now.AddDate(0, 0, -7)
	doneBy := "100"
	chore.LastDone = &done
	chore.LastDoneBy = &doneBy
	cs.RecordCompletion(chore)

	s.dailySweep(context.Background())
	if len(gw.sentTexts()) != 1 {
		t.Fatalf("expected a ping for a chore due today, got %d", len(gw.sentTexts()))
	}
}
