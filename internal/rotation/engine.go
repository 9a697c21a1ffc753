package rotation

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lileeluna/chores-bot/internal/model"
	"github.com/lileeluna/chores-bot/internal/schedule"
	"github.com/lileeluna/chores-bot/internal/store"
)

// Engine applies completion events to chores: advancing the assignee through
// the rotation, spending and awarding smiley credits, and arming the next
// reminder.
type Engine struct {
	db      *sql.DB
	chores  *store.ChoreStore
	smileys *store.SmileyStore
	logger  *slog.Logger
}

func NewEngine(db *sql.DB, chores *store.ChoreStore, smileys *store.SmileyStore, logger *slog.Logger) *Engine {
	return &Engine{db: db, chores: chores, smileys: smileys, logger: logger}
}

// Complete records that completer finished the named chore on the given day,
// in the given channel. Returns the updated chore, or nil if no chore has
// that name.
//
// When the responsible member completes their own chore their turn is over:
// any credit they banked is spent, and the assignment advances through the
// rotation, skipping (and charging) members who hold a credit. When someone
// else completes it, the responsible member keeps the assignment and earns a
// credit for the covered turn.
//
// The credit mutations and the chore update commit as one transaction, so a
// failed completion leaves no credit spent or awarded.
func (e *Engine) Complete(choreName, completer, channelID string, today time.Time) (*model.Chore, error) {
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin completion: %w", err)
	}
	defer tx.Rollback()

	chores := e.chores.WithTx(tx)
	smileys := e.smileys.WithTx(tx)

	c, err := chores.GetByName(choreName)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, nil
	}

	if completer == c.AssignedTo {
		// A credit is spent when the holder's turn concludes, whether they
		// were skipped or did the chore themselves.
		had, err := smileys.Consume(completer, c.Name)
		if err != nil {
			return nil, err
		}
		if had {
			e.logger.Info("smiley spent", "chore", c.Name, "member", completer)
		}

		next, err := e.advance(smileys, c)
		if err != nil {
			return nil, err
		}
		e.logger.Info("rotation advanced", "chore", c.Name, "from", c.AssignedTo, "to", next)
		c.AssignedTo = next
	} else {
		// Someone covered the assignee's turn; the assignee owes them one
		// and banks a skip for when the rotation next lands on them.
		if err := smileys.Award(c.AssignedTo, c.Name); err != nil {
			return nil, err
		}
		e.logger.Info("smiley awarded", "chore", c.Name, "member", c.AssignedTo, "completer", completer)
	}

	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	remindAt := schedule.RemindAt(today, c.FrequencyDays)
	c.LastDone = &day
	c.LastDoneBy = &completer
	c.RemindAt = &remindAt
	c.RemindChannel = channelID

	if err := chores.RecordCompletion(c); err != nil {
		return nil, fmt.Errorf("complete chore: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit completion: %w", err)
	}
	return c, nil
}

// advance walks the rotation from the current assignee, spending one credit
// per member that holds any, and stops at the first member with none. The
// walk is capped at one full pass; if every member spent a credit, the plain
// cyclic successor takes the turn.
func (e *Engine) advance(smileys *store.SmileyStore, c *model.Chore) (string, error) {
	candidate := c.AssignedTo
	for i := 0; i < len(c.Rotation); i++ {
		candidate = Next(c.Rotation, candidate)
		count, err := smileys.Peek(candidate, c.Name)
		if err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		if _, err := smileys.Consume(candidate, c.Name); err != nil {
			return "", err
		}
		e.logger.Info("smiley spent", "chore", c.Name, "member", candidate)
	}
	return Next(c.Rotation, c.AssignedTo), nil
}
