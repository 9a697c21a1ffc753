package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lileeluna/chores-bot/internal/gateway"
	"github.com/lileeluna/chores-bot/internal/schedule"
)

const saveFailedReply = "Something went wrong saving that. Please try again."

// resolveAll maps mention tokens to member ids, stopping at the first token
// the platform cannot resolve.
func (r *Router) resolveAll(ctx context.Context, tokens []string) ([]string, string, error) {
	var ids []string
	for _, token := range tokens {
		m, err := r.gw.ResolveMember(ctx, token)
		if errors.Is(err, gateway.ErrUnresolved) {
			return nil, token, nil
		}
		if err != nil {
			return nil, "", err
		}
		ids = append(ids, m.ID)
	}
	return ids, "", nil
}

func (r *Router) addUser(ctx context.Context, msg gateway.Message, args []string) {
	if len(args) == 0 {
		r.reply(ctx, msg.ChannelID, "Usage: !adduser <members...>")
		return
	}

	ids, bad, err := r.resolveAll(ctx, args)
	if err != nil {
		r.logger.Error("resolve members", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if bad != "" {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Could not find member %s.", bad))
		return
	}

	res, err := r.roster.AddMembers(ids)
	if err != nil {
		r.logger.Error("add roster members", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}

	for _, id := range res.Already {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("%s is already in the chore rotation.", gateway.Mention(id)))
	}
	r.reply(ctx, msg.ChannelID, fmt.Sprintf("Added %d users to the chore rotation. Total: %d users.", len(res.Added), res.Total))
}

func (r *Router) removeUser(ctx context.Context, msg gateway.Message, args []string) {
	if len(args) != 1 {
		r.reply(ctx, msg.ChannelID, "Usage: !removeuser <member>")
		return
	}

	m, err := r.gw.ResolveMember(ctx, args[0])
	if errors.Is(err, gateway.ErrUnresolved) {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Could not find member %s.", args[0]))
		return
	}
	if err != nil {
		r.logger.Error("resolve member", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}

	removed, err := r.roster.Remove(m.ID)
	if err != nil {
		r.logger.Error("remove roster member", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if !removed {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("%s is not in the chore rotation.", gateway.Mention(m.ID)))
		return
	}
	r.reply(ctx, msg.ChannelID, fmt.Sprintf("Removed %s from the chore rotation.", gateway.Mention(m.ID)))
}

func (r *Router) clearRotation(ctx context.Context, msg gateway.Message) {
	if err := r.roster.Clear(); err != nil {
		r.logger.Error("clear roster", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	r.reply(ctx, msg.ChannelID, "Cleared the chore rotation.")
}

func (r *Router) listRotation(ctx context.Context, msg gateway.Message) {
	members, err := r.roster.Members()
	if err != nil {
		r.logger.Error("list roster", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if len(members) == 0 {
		r.reply(ctx, msg.ChannelID, "Chore rotation is empty.")
		return
	}

	var b strings.Builder
	b.WriteString("Default Chore Rotation:\n")
	for _, m := range members {
		if _, err := r.gw.FetchMember(ctx, m.MemberID); err != nil {
			b.WriteString("- Unknown User\n")
			continue
		}
		fmt.Fprintf(&b, "- %s\n", gateway.Mention(m.MemberID))
	}
	r.reply(ctx, msg.ChannelID, b.String())
}

func (r *Router) addChore(ctx context.Context, msg gateway.Message, args []string) {
	if len(args) < 3 {
		r.reply(ctx, msg.ChannelID, "Usage: !addchore <member> <name> <frequency_days> [rotation]")
		return
	}

	freq, err := strconv.Atoi(args[2])
	if err != nil || freq < 1 {
		r.reply(ctx, msg.ChannelID, "Frequency must be a positive number of days.")
		return
	}
	r.createChore(ctx, msg, args[0], args[1], freq, args[3:])
}

// addFixedChore backs !addweeklychore and !addmonthlychore, where the
// frequency is decided by the command rather than an argument.
func (r *Router) addFixedChore(ctx context.Context, msg gateway.Message, args []string, freq int) {
	if len(args) < 2 {
		r.reply(ctx, msg.ChannelID, "Usage: !addweeklychore <member> <name> [rotation]")
		return
	}
	r.createChore(ctx, msg, args[0], args[1], freq, args[2:])
}

func (r *Router) createChore(ctx context.Context, msg gateway.Message, memberToken, name string, freq int, rotationTokens []string) {
	m, err := r.gw.ResolveMember(ctx, memberToken)
	if errors.Is(err, gateway.ErrUnresolved) {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Could not find member %s.", memberToken))
		return
	}
	if err != nil {
		r.logger.Error("resolve member", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}

	existing, err := r.chores.GetByName(name)
	if err != nil {
		r.logger.Error("get chore", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if existing != nil {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q already exists! Please choose a different name or remove the existing chore first.", name))
		return
	}

	inRoster, err := r.roster.Contains(m.ID)
	if err != nil {
		r.logger.Error("check roster", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if !inRoster {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("%s is not in the chore rotation. Please add them first using !adduser.", gateway.Mention(m.ID)))
		return
	}

	var choreRotation []string
	if len(rotationTokens) > 0 {
		ids, bad, err := r.resolveAll(ctx, rotationTokens)
		if err != nil {
			r.logger.Error("resolve rotation members", "error", err)
			r.reply(ctx, msg.ChannelID, saveFailedReply)
			return
		}
		if bad != "" {
			r.reply(ctx, msg.ChannelID, fmt.Sprintf("Could not find member %s.", bad))
			return
		}
		choreRotation = ids
	} else {
		choreRotation, err = r.roster.List()
		if err != nil {
			r.logger.Error("list roster", "error", err)
			r.reply(ctx, msg.ChannelID, saveFailedReply)
			return
		}
	}

	// The assignee always belongs to their chore's rotation.
	found := false
	for _, id := range choreRotation {
		if id == m.ID {
			found = true
			break
		}
	}
	if !found {
		choreRotation = append(choreRotation, m.ID)
	}

	if _, err := r.chores.Create(name, m.ID, freq, choreRotation); err != nil {
		r.logger.Error("create chore", "chore", name, "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q added for %s with frequency %d days.", name, gateway.Mention(m.ID), freq))
}

func (r *Router) removeChore(ctx context.Context, msg gateway.Message, args []string) {
	if len(args) != 1 {
		r.reply(ctx, msg.ChannelID, "Usage: !removechore <name>")
		return
	}

	deleted, err := r.chores.Delete(args[0])
	if err != nil {
		r.logger.Error("delete chore", "chore", args[0], "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if !deleted {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q not found.", args[0]))
		return
	}
	r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q removed.", args[0]))
}

func (r *Router) clearChores(ctx context.Context, msg gateway.Message) {
	if err := r.chores.Clear(); err != nil {
		r.logger.Error("clear chores", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	r.reply(ctx, msg.ChannelID, "All chores cleared.")
}

func (r *Router) listChores(ctx context.Context, msg gateway.Message) {
	chores, err := r.chores.List()
	if err != nil {
		r.logger.Error("list chores", "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if len(chores) == 0 {
		r.reply(ctx, msg.ChannelID, "No chores found.")
		return
	}

	var b strings.Builder
	b.WriteString("Chores:\n")
	for _, c := range chores {
		lastDone := "Never"
		if c.LastDone != nil {
			lastDone = c.LastDone.Format("2006-01-02")
			if c.LastDoneBy != nil {
				lastDone += " by " + gateway.Mention(*c.LastDoneBy)
			}
		}
		fmt.Fprintf(&b, "- %s: assigned to %s, frequency %d days, last done: %s\n",
			c.Name, gateway.Mention(c.AssignedTo), c.FrequencyDays, lastDone)
	}
	r.reply(ctx, msg.ChannelID, b.String())
}

func (r *Router) doneChore(ctx context.Context, msg gateway.Message, args []string) {
	if len(args) != 1 {
		r.reply(ctx, msg.ChannelID, "Usage: !donechore <name>")
		return
	}

	c, err := r.engine.Complete(args[0], msg.AuthorID, msg.ChannelID, r.now())
	if err != nil {
		r.logger.Error("complete chore", "chore", args[0], "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if c == nil {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q not found.", args[0]))
		return
	}
	r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q marked as done.", c.Name))
}

func (r *Router) nextChore(ctx context.Context, msg gateway.Message, args []string) {
	if len(args) != 1 {
		r.reply(ctx, msg.ChannelID, "Usage: !nextchore <name>")
		return
	}

	c, err := r.chores.GetByName(args[0])
	if err != nil {
		r.logger.Error("get chore", "chore", args[0], "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if c == nil {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q not found.", args[0]))
		return
	}
	if c.LastDone == nil {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("Chore %q has never been done. It is due now.", c.Name))
		return
	}

	nextDue := schedule.NextDue(c.LastDone, c.FrequencyDays, r.now())
	r.reply(ctx, msg.ChannelID, fmt.Sprintf("Next due date for chore %q is %s.", c.Name, nextDue.Format("2006-01-02")))
}

func (r *Router) viewSmileys(ctx context.Context, msg gateway.Message, args []string) {
	target := msg.AuthorID
	if len(args) > 0 {
		m, err := r.gw.ResolveMember(ctx, args[0])
		if errors.Is(err, gateway.ErrUnresolved) {
			r.reply(ctx, msg.ChannelID, fmt.Sprintf("Could not find member %s.", args[0]))
			return
		}
		if err != nil {
			r.logger.Error("resolve member", "error", err)
			r.reply(ctx, msg.ChannelID, saveFailedReply)
			return
		}
		target = m.ID
	}

	smileys, err := r.smileys.ListByMember(target)
	if err != nil {
		r.logger.Error("list smileys", "member", target, "error", err)
		r.reply(ctx, msg.ChannelID, saveFailedReply)
		return
	}
	if len(smileys) == 0 {
		r.reply(ctx, msg.ChannelID, fmt.Sprintf("%s has no smileys recorded.", gateway.Mention(target)))
		return
	}

	var b strings.Builder
	for _, sm := range smileys {
		fmt.Fprintf(&b, "%s: %s has %d smileys.\n", sm.ChoreName, gateway.Mention(target), sm.Count)
	}
	r.reply(ctx, msg.ChannelID, b.String())
}
