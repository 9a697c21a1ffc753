package rotation

import (
	"database/sql"
	"log/slog"
	"testing"
	"time"

	"github.com/lileeluna/chores-bot/internal/database"
	"github.com/lileeluna/chores-bot/internal/store"
)

func setupEngine(t *testing.T) (*Engine, *store.ChoreStore, *store.SmileyStore) {
	t.Helper()
	e, cs, ss, _ := setupEngineDB(t)
	return e, cs, ss
}

func setupEngineDB(t *testing.T) (*Engine, *store.ChoreStore, *store.SmileyStore, *sql.DB) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cs := store.NewChoreStore(db)
	ss := store.NewSmileyStore(db)
	return NewEngine(db, cs, ss, slog.Default()), cs, ss, db
}

var testDay = time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

func TestCompleteByAssigneeAdvances(t *testing.T) {
	e, cs, _ := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})

	c, err := e.Complete("dishes", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.AssignedTo != "B" {
		t.Errorf("assigned_to = %q, want B", c.AssignedTo)
	}
	if c.LastDone == nil || c.LastDone.Day() != 10 {
		t.Errorf("last_done = %v, want 2026-03-10", c.LastDone)
	}
	if c.LastDoneBy == nil || *c.LastDoneBy != "A" {
		t.Errorf("last_done_by = %v, want A", c.LastDoneBy)
	}
	if c.RemindAt == nil {
		t.Fatal("remind_at should be armed")
	}
	want := time.Date(2026, 3, 18, 0, 0, 0, 0, time.UTC)
	if !c.RemindAt.Equal(want) {
		t.Errorf("remind_at = %v, want %v", c.RemindAt, want)
	}
	if c.RemindChannel != "chan-1" {
		t.Errorf("remind_channel = %q, want chan-1", c.RemindChannel)
	}
}

func TestCompleteByNonAssigneeAwardsCredit(t *testing.T) {
	e, cs, ss := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})

	c, err := e.Complete("dishes", "C", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.AssignedTo != "A" {
		t.Errorf("assigned_to = %q, want unchanged A", c.AssignedTo)
	}
	if c.LastDoneBy == nil || *c.LastDoneBy != "C" {
		t.Errorf("last_done_by = %v, want C", c.LastDoneBy)
	}

	count, _ := ss.Peek("A", "dishes")
	if count != 1 {
		t.Errorf("A's credit = %d, want 1", count)
	}
	count, _ = ss.Peek("C", "dishes")
	if count != 0 {
		t.Errorf("C's credit = %d, want 0", count)
	}
}

func TestCompleteSkipsCreditHolder(t *testing.T) {
	e, cs, ss := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})
	ss.Award("B", "dishes")

	c, err := e.Complete("dishes", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.AssignedTo != "C" {
		t.Errorf("assigned_to = %q, want C (B skipped)", c.AssignedTo)
	}

	count, _ := ss.Peek("B", "dishes")
	if count != 0 {
		t.Errorf("B's credit = %d, want 0 after skip", count)
	}
}

func TestCompleteAllMembersHoldCredit(t *testing.T) {
	e, cs, ss := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})
	ss.Award("A", "dishes")
	ss.Award("B", "dishes")
	ss.Award("C", "dishes")

	c, err := e.Complete("dishes", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	// A's own credit is spent by completing; the walk then charges B and C
	// and wraps back to A, who is now credit-free.
	if c.AssignedTo != "A" {
		t.Errorf("assigned_to = %q, want A", c.AssignedTo)
	}
	for _, m := range []string{"A", "B", "C"} {
		count, _ := ss.Peek(m, "dishes")
		if count != 0 {
			t.Errorf("%s's credit = %d, want 0", m, count)
		}
	}
}

func TestCompleteBoundedWhenCreditsPileUp(t *testing.T) {
	e, cs, ss := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})
	ss.Award("A", "dishes")
	ss.Award("A", "dishes")
	ss.Award("B", "dishes")
	ss.Award("C", "dishes")

	c, err := e.Complete("dishes", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Every member still held a credit during the full pass, so the walk
	// stops after one lap and the plain successor takes the turn.
	if c.AssignedTo != "B" {
		t.Errorf("assigned_to = %q, want B", c.AssignedTo)
	}
	for _, m := range []string{"A", "B", "C"} {
		count, _ := ss.Peek(m, "dishes")
		if count != 0 {
			t.Errorf("%s's credit = %d, want 0", m, count)
		}
	}
}

func TestCompleteSingleMemberRotationWithCredit(t *testing.T) {
	e, cs, ss := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A"})
	ss.Award("A", "dishes")

	c, err := e.Complete("dishes", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c.AssignedTo != "A" {
		t.Errorf("assigned_to = %q, want A", c.AssignedTo)
	}
	count, _ := ss.Peek("A", "dishes")
	if count != 0 {
		t.Errorf("A's credit = %d, want 0", count)
	}
}

func TestCompleteRollsBackCreditsOnWriteFailure(t *testing.T) {
	e, cs, ss, db := setupEngineDB(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})
	ss.Award("A", "dishes")

	// Reject the chore update so the completion cannot finish.
	_, err := db.Exec(`CREATE TRIGGER reject_completion BEFORE UPDATE ON chores
		BEGIN SELECT RAISE(ABORT, 'update rejected'); END`)
	if err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	if _, err := e.Complete("dishes", "A", "chan-1", testDay); err == nil {
		t.Fatal("expected complete to fail")
	}

	// The whole completion rolled back: the banked credit survives and the
	// assignment did not move.
	if count, _ := ss.Peek("A", "dishes"); count != 1 {
		t.Errorf("A's credit = %d, want 1 after rollback", count)
	}
	c, err := cs.GetByName("dishes")
	if err != nil {
		t.Fatalf("get chore: %v", err)
	}
	if c.AssignedTo != "A" {
		t.Errorf("assigned_to = %q, want unchanged A", c.AssignedTo)
	}
	if c.LastDone != nil {
		t.Errorf("last_done = %v, want nil", c.LastDone)
	}
}

func TestCompleteUnknownChore(t *testing.T) {
	e, _, _ := setupEngine(t)

	c, err := e.Complete("missing", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if c != nil {
		t.Errorf("chore = %+v, want nil for unknown name", c)
	}
}

// Full scenario from the smiley system's design: a helper covers a turn, the
// covered member banks a skip and spends it the next time the rotation lands
// on them.
func TestCompleteCreditLifecycle(t *testing.T) {
	e, cs, ss := setupEngine(t)

	cs.Create("dishes", "A", 7, []string{"A", "B", "C"})

	// A does their own turn: assignment moves to B.
	c, err := e.Complete("dishes", "A", "chan-1", testDay)
	if err != nil {
		t.Fatalf("complete 1: %v", err)
	}
	if c.AssignedTo != "B" {
		t.Fatalf("assigned_to = %q, want B", c.AssignedTo)
	}

	// C covers B's turn: B stays assigned and earns a credit.
	c, err = e.Complete("dishes", "C", "chan-1", testDay.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("complete 2: %v", err)
	}
	if c.AssignedTo != "B" {
		t.Fatalf("assigned_to = %q, want B", c.AssignedTo)
	}
	if count, _ := ss.Peek("B", "dishes"); count != 1 {
		t.Fatalf("B's credit = %d, want 1", count)
	}

	// B does their own turn: the banked credit is spent and the assignment
	// moves on to C.
	c, err = e.Complete("dishes", "B", "chan-1", testDay.AddDate(0, 0, 7))
	if err != nil {
		t.Fatalf("complete 3: %v", err)
	}
	if c.AssignedTo != "C" {
		t.Fatalf("assigned_to = %q, want C", c.AssignedTo)
	}
	if count, _ := ss.Peek("B", "dishes"); count != 0 {
		t.Errorf("B's credit = %d, want 0", count)
	}
}
