package gateway

import (
	"context"
	"errors"
	"regexp"
)

// ErrUnresolved is returned when a mention token, member id, or channel name
// does not map to anything the chat platform knows about.
var ErrUnresolved = errors.New("gateway: not resolved")

// ErrDisconnected is returned when a send is attempted with no live relay
// connection.
var ErrDisconnected = errors.New("gateway: not connected")

// Member identifies a chat-platform user.
type Member struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Message is an inbound chat message.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
	AuthorID  string `json:"author_id"`
	Content   string `json:"content"`
}

// Gateway is the bot's view of the chat platform: resolving user handles and
// delivering text. Implementations must be safe for concurrent use.
type Gateway interface {
	// ResolveMember maps a mention token ("<@123>", "<@!123>") or bare id
	// to a known member. Returns ErrUnresolved for unknown members.
	ResolveMember(ctx context.Context, token string) (Member, error)
	// FetchMember looks up a member by id. Returns ErrUnresolved if unknown.
	FetchMember(ctx context.Context, id string) (Member, error)
	// Send delivers text to a channel.
	Send(ctx context.Context, channelID, text string) error
	// FindChannel maps a channel name to its id. Returns ErrUnresolved if
	// no channel has that name.
	FindChannel(ctx context.Context, name string) (string, error)
}

var mentionRe = regexp.MustCompile(`^<@!?(\d+)>$`)

// ParseMention extracts the member id from a mention token. Bare numeric ids
// pass through unchanged. Returns "" when the token is not a mention.
func ParseMention(token string) string {
	if m := mentionRe.FindStringSubmatch(token); m != nil {
		return m[1]
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return token
}

// Mention formats a member id as a mention token.
func Mention(id string) string {
	return "<@" + id + ">"
}
