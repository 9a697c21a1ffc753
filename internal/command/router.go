package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lileeluna/chores-bot/internal/gateway"
	"github.com/lileeluna/chores-bot/internal/rotation"
	"github.com/lileeluna/chores-bot/internal/schedule"
	"github.com/lileeluna/chores-bot/internal/store"
)

// Prefix marks a chat message as a bot command.
const Prefix = "!"

const (
	commandLimit  = 10
	commandWindow = time.Minute
)

// Router maps inbound chat commands onto roster, registry, and rotation
// operations, and replies through the gateway. Commands arrive sequentially
// from the gateway's read loop; each is processed to completion before the
// next starts.
type Router struct {
	gw      gateway.Gateway
	roster  *store.RosterStore
	chores  *store.ChoreStore
	smileys *store.SmileyStore
	engine  *rotation.Engine
	limiter *Limiter
	monthly schedule.MonthlyPolicy
	logger  *slog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

func NewRouter(gw gateway.Gateway, roster *store.RosterStore, chores *store.ChoreStore, smileys *store.SmileyStore, engine *rotation.Engine, monthly schedule.MonthlyPolicy, logger *slog.Logger) *Router {
	return &Router{
		gw:      gw,
		roster:  roster,
		chores:  chores,
		smileys: smileys,
		engine:  engine,
		limiter: NewLimiter(),
		monthly: monthly,
		logger:  logger,
		now:     time.Now,
	}
}

// Limiter exposes the command rate limiter for periodic cleanup.
func (r *Router) Limiter() *Limiter {
	return r.limiter
}

// Handle processes one inbound chat message. Non-command messages are
// ignored.
func (r *Router) Handle(ctx context.Context, msg gateway.Message) {
	if !strings.HasPrefix(msg.Content, Prefix) {
		return
	}

	fields := strings.Fields(strings.TrimPrefix(msg.Content, Prefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	args := fields[1:]

	if !r.limiter.Allow(msg.AuthorID, commandLimit, commandWindow) {
		r.reply(ctx, msg.ChannelID, "You're sending commands too quickly. Please wait a moment.")
		return
	}

	switch name {
	case "adduser":
		r.addUser(ctx, msg, args)
	case "removeuser":
		r.removeUser(ctx, msg, args)
	case "clearrotation":
		r.clearRotation(ctx, msg)
	case "listrotation":
		r.listRotation(ctx, msg)
	case "addchore":
		r.addChore(ctx, msg, args)
	case "addweeklychore":
		r.addFixedChore(ctx, msg, args, 7)
	case "addmonthlychore":
		r.addFixedChore(ctx, msg, args, schedule.MonthlyFrequencyDays(r.now(), r.monthly))
	case "removechore":
		r.removeChore(ctx, msg, args)
	case "clearchores":
		r.clearChores(ctx, msg)
	case "listchores":
		r.listChores(ctx, msg)
	case "donechore":
		r.doneChore(ctx, msg, args)
	case "nextchore":
		r.nextChore(ctx, msg, args)
	case "viewsmileys":
		r.viewSmileys(ctx, msg, args)
	default:
		// Unknown commands are ignored, like any other chatter.
	}
}

func (r *Router) reply(ctx context.Context, channelID, text string) {
	if err := r.gw.Send(ctx, channelID, text); err != nil {
		r.logger.Error("send reply", "channel", channelID, "error", err)
	}
}
