package gateway

import (
	"context"
	"errors"
	"log/slog"
	"testing"
)

func TestParseMention(t *testing.T) {
	cases := []struct {
		token string
		want  string
	}{
		{"<@123>", "123"},
		{"<@!123>", "123"},
		{"123", "123"},
		{"<@abc>", ""},
		{"hello", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ParseMention(tc.token); got != tc.want {
			t.Errorf("ParseMention(%q) = %q, want %q", tc.token, got, tc.want)
		}
	}
}

func TestMention(t *testing.T) {
	if got := Mention("123"); got != "<@123>" {
		t.Errorf("Mention = %q, want <@123>", got)
	}
}

func TestClientDirectoryFromFrames(t *testing.T) {
	c := NewClient(Config{}, slog.Default())
	ctx := context.Background()

	c.handleFrame(ctx, frame{
		Op:       "ready",
		Members:  []Member{{ID: "100", Name: "alice"}, {ID: "200", Name: "bob"}},
		Channels: []Channel{{ID: "c1", Name: "chores"}},
	})

	m, err := c.ResolveMember(ctx, "<@100>")
	if err != nil {
		t.Fatalf("resolve member: %v", err)
	}
	if m.Name != "alice" {
		t.Errorf("name = %q, want alice", m.Name)
	}

	if _, err := c.ResolveMember(ctx, "<@999>"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
	if _, err := c.ResolveMember(ctx, "not-a-mention"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved for malformed token", err)
	}

	id, err := c.FindChannel(ctx, "chores")
	if err != nil {
		t.Fatalf("find channel: %v", err)
	}
	if id != "c1" {
		t.Errorf("channel id = %q, want c1", id)
	}
	if _, err := c.FindChannel(ctx, "nope"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved", err)
	}
}

func TestClientMemberUpserts(t *testing.T) {
	c := NewClient(Config{}, slog.Default())
	ctx := context.Background()

	c.handleFrame(ctx, frame{Op: "member", Member: &Member{ID: "100", Name: "alice"}})
	if _, err := c.FetchMember(ctx, "100"); err != nil {
		t.Fatalf("fetch member: %v", err)
	}

	c.handleFrame(ctx, frame{Op: "member_gone", Member: &Member{ID: "100"}})
	if _, err := c.FetchMember(ctx, "100"); !errors.Is(err, ErrUnresolved) {
		t.Errorf("err = %v, want ErrUnresolved after member_gone", err)
	}
}

func TestClientDispatchesMessages(t *testing.T) {
	c := NewClient(Config{}, slog.Default())
	ctx := context.Background()

	var got []Message
	c.SetHandler(func(_ context.Context, msg Message) {
		got = append(got, msg)
	})

	c.handleFrame(ctx, frame{Op: "message", Message: &Message{
		ID: "m1", ChannelID: "c1", AuthorID: "100", Content: "!listchores",
	}})

	if len(got) != 1 {
		t.Fatalf("expected 1 dispatched message, got %d", len(got))
	}
	if got[0].Content != "!listchores" {
		t.Errorf("content = %q, want !listchores", got[0].Content)
	}
}

func TestClientSendWithoutConnection(t *testing.T) {
	c := NewClient(Config{}, slog.Default())

	err := c.Send(context.Background(), "c1", "hello")
	if !errors.Is(err, ErrDisconnected) {
		t.Errorf("err = %v, want ErrDisconnected", err)
	}
}
