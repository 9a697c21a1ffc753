package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	ws "github.com/coder/websocket"
	"github.com/google/uuid"
)

const (
	pingInterval    = 30 * time.Second
	maxBackoff      = 2 * time.Minute
	initialBackoff  = 2 * time.Second
	identifyTimeout = 10 * time.Second
)

// Config holds the chat relay connection settings.
type Config struct {
	URL   string
	Token string
}

// Channel identifies a chat channel.
type Channel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// frame is the wire format exchanged with the chat relay. Op selects which
// fields are populated.
type frame struct {
	Op        string    `json:"op"`
	Nonce     string    `json:"nonce,omitempty"`
	Token     string    `json:"token,omitempty"`
	ChannelID string    `json:"channel_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	Message   *Message  `json:"message,omitempty"`
	Member    *Member   `json:"member,omitempty"`
	Members   []Member  `json:"members,omitempty"`
	Channels  []Channel `json:"channels,omitempty"`
}

// Handler consumes inbound chat messages. The client invokes it sequentially
// from its read loop, so each command is handled to completion before the
// next starts.
type Handler func(ctx context.Context, msg Message)

// Client is a websocket Gateway implementation. It dials the chat relay,
// identifies with the bot token, and keeps a directory of members and
// channels from relay events. Disconnects trigger reconnection with
// exponential backoff.
type Client struct {
	mu       sync.RWMutex
	cfg      Config
	logger   *slog.Logger
	handler  Handler
	conn     *ws.Conn
	writeMu  sync.Mutex
	members  map[string]Member
	channels map[string]string

	cancel       context.CancelFunc
	done         chan struct{}
	failureCount int
}

// NewClient creates a gateway client. SetHandler must be called before Start
// for inbound messages to be delivered.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		cfg:      cfg,
		logger:   logger,
		members:  make(map[string]Member),
		channels: make(map[string]string),
	}
}

// SetHandler installs the inbound message handler.
func (c *Client) SetHandler(h Handler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

// Start launches the connect/read loop. No-op if already running.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(ctx)
}

// Stop closes the connection and waits for the run loop to exit.
func (c *Client) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	if done != nil {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			c.logger.Warn("gateway stop timed out")
		}
	}
}

func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	for {
		if err := c.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("gateway connection lost", "error", err)
		}
		if ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		c.failureCount++
		backoff := initialBackoff << (c.failureCount - 1)
		if backoff > maxBackoff || backoff <= 0 {
			backoff = maxBackoff
		}
		c.mu.Unlock()

		c.logger.Info("gateway reconnecting", "backoff", backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	conn, _, err := ws.Dial(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	identifyCtx, cancel := context.WithTimeout(ctx, identifyTimeout)
	err = c.writeFrame(identifyCtx, frame{Op: "identify", Token: c.cfg.Token})
	cancel()
	if err != nil {
		return err
	}

	pingCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	go c.pingLoop(pingCtx, conn)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn("gateway bad frame", "error", err)
			continue
		}
		c.handleFrame(ctx, f)
	}
}

// pingLoop detects stale connections; a failed ping aborts the read via
// connection closure.
func (c *Client) pingLoop(ctx context.Context, conn *ws.Conn) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.Ping(ctx); err != nil {
				conn.Close(ws.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (c *Client) handleFrame(ctx context.Context, f frame) {
	switch f.Op {
	case "ready":
		c.mu.Lock()
		c.failureCount = 0
		for _, m := range f.Members {
			c.members[m.ID] = m
		}
		for _, ch := range f.Channels {
			c.channels[ch.Name] = ch.ID
		}
		c.mu.Unlock()
		c.logger.Info("gateway ready", "members", len(f.Members), "channels", len(f.Channels))

	case "member":
		if f.Member == nil {
			return
		}
		c.mu.Lock()
		c.members[f.Member.ID] = *f.Member
		c.mu.Unlock()

	case "member_gone":
		if f.Member == nil {
			return
		}
		c.mu.Lock()
		delete(c.members, f.Member.ID)
		c.mu.Unlock()

	case "message":
		if f.Message == nil {
			return
		}
		c.mu.RLock()
		handler := c.handler
		c.mu.RUnlock()
		if handler != nil {
			handler(ctx, *f.Message)
		}

	default:
		c.logger.Debug("gateway unhandled op", "op", f.Op)
	}
}

func (c *Client) writeFrame(ctx context.Context, f frame) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrDisconnected
	}

	data, err := json.Marshal(f)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(ctx, ws.MessageText, data)
}

// ResolveMember implements Gateway.
func (c *Client) ResolveMember(_ context.Context, token string) (Member, error) {
	id := ParseMention(token)
	if id == "" {
		return Member{}, ErrUnresolved
	}
	c.mu.RLock()
	m, ok := c.members[id]
	c.mu.RUnlock()
	if !ok {
		return Member{}, ErrUnresolved
	}
	return m, nil
}

// FetchMember implements Gateway.
func (c *Client) FetchMember(_ context.Context, id string) (Member, error) {
	c.mu.RLock()
	m, ok := c.members[id]
	c.mu.RUnlock()
	if !ok {
		return Member{}, ErrUnresolved
	}
	return m, nil
}

// Send implements Gateway.
func (c *Client) Send(ctx context.Context, channelID, text string) error {
	return c.writeFrame(ctx, frame{
		Op:        "send",
		Nonce:     uuid.NewString(),
		ChannelID: channelID,
		Content:   text,
	})
}

// FindChannel implements Gateway.
func (c *Client) FindChannel(_ context.Context, name string) (string, error) {
	c.mu.RLock()
	id, ok := c.channels[name]
	c.mu.RUnlock()
	if !ok {
		return "", ErrUnresolved
	}
	return id, nil
}
