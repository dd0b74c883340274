// ABOUTME: OneBot v11 WebSocket client: event stream plus API calls
// ABOUTME: API responses are correlated to requests by uuid echo tokens

package onebot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/blockgate/internal/event"
)

// callTimeout bounds a single API round trip.
const callTimeout = 10 * time.Second

// Client maintains one WebSocket connection to a OneBot endpoint and
// splits inbound traffic into classified events and API responses.
type Client struct {
	url       string
	token     string
	reconnect time.Duration
	logger    *slog.Logger

	events chan *event.Event

	mu      sync.Mutex // guards conn writes and pending
	conn    *websocket.Conn
	pending map[string]chan apiResponse
}

type apiRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
	Echo   string         `json:"echo"`
}

type apiResponse struct {
	Status  string          `json:"status"`
	Retcode int             `json:"retcode"`
	Data    json.RawMessage `json:"data"`
	Echo    string          `json:"echo"`
}

// New creates a client for the given endpoint. Run must be called
// before any API method is used.
func New(url, token string, reconnect time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:       url,
		token:     token,
		reconnect: reconnect,
		logger:    logger.With("component", "onebot"),
		events:    make(chan *event.Event, 64),
		pending:   make(map[string]chan apiResponse),
	}
}

// Events is the stream of classified inbound events. It is closed when
// Run returns.
func (c *Client) Events() <-chan *event.Event {
	return c.events
}

// Run connects and reads until ctx is cancelled, reconnecting after
// transient failures.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.events)

	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Warn("connect failed", "url", c.url, "error", err)
		} else {
			c.readLoop(ctx)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Info("reconnecting", "in", c.reconnect)
		select {
		case <-time.After(c.reconnect):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", c.url, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Info("connected", "url", c.url)
	return nil
}

// readLoop consumes frames until the connection breaks or ctx ends.
// Frames carrying an echo token resolve pending API calls; everything
// else is classified as an event.
func (c *Client) readLoop(ctx context.Context) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.closeConn()
		case <-done:
		}
	}()

	for {
		_, data, err := c.readConn()
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Warn("read failed", "error", err)
			}
			c.failPending()
			return
		}

		var probe struct {
			Echo string `json:"echo"`
		}
		if json.Unmarshal(data, &probe) == nil && probe.Echo != "" {
			c.resolvePending(data, probe.Echo)
			continue
		}

		if ev := classify(data); ev != nil {
			select {
			case c.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (c *Client) readConn() (int, []byte, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, nil, fmt.Errorf("not connected")
	}
	return conn.ReadMessage()
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) resolvePending(data []byte, echo string) {
	var resp apiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		c.logger.Warn("malformed api response", "error", err)
		return
	}

	c.mu.Lock()
	ch, ok := c.pending[echo]
	delete(c.pending, echo)
	c.mu.Unlock()

	if ok {
		ch <- resp
	}
}

// failPending unblocks every in-flight call when the connection drops.
func (c *Client) failPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for echo, ch := range c.pending {
		close(ch)
		delete(c.pending, echo)
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// call performs one API round trip.
func (c *Client) call(ctx context.Context, action string, params map[string]any) (json.RawMessage, error) {
	echo := uuid.New().String()
	ch := make(chan apiResponse, 1)

	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil, fmt.Errorf("%s: not connected", action)
	}
	c.pending[echo] = ch
	err := c.conn.WriteJSON(apiRequest{Action: action, Params: params, Echo: echo})
	c.mu.Unlock()

	if err != nil {
		c.dropPending(echo)
		return nil, fmt.Errorf("%s: %w", action, err)
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("%s: connection lost", action)
		}
		if resp.Status == "failed" {
			return nil, fmt.Errorf("%s: retcode %d", action, resp.Retcode)
		}
		return resp.Data, nil
	case <-timer.C:
		c.dropPending(echo)
		return nil, fmt.Errorf("%s: timed out", action)
	case <-ctx.Done():
		c.dropPending(echo)
		return nil, ctx.Err()
	}
}

func (c *Client) dropPending(echo string) {
	c.mu.Lock()
	delete(c.pending, echo)
	c.mu.Unlock()
}

// SendPrivate delivers a direct message to a user.
func (c *Client) SendPrivate(ctx context.Context, userID, text string) error {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad user id %q: %w", userID, err)
	}
	_, err = c.call(ctx, "send_private_msg", map[string]any{"user_id": id, "message": text})
	return err
}

// SendGroup delivers a message to a group.
func (c *Client) SendGroup(ctx context.Context, groupID, text string) error {
	id, err := strconv.ParseInt(groupID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad group id %q: %w", groupID, err)
	}
	_, err = c.call(ctx, "send_group_msg", map[string]any{"group_id": id, "message": text})
	return err
}

// Reply answers in the conversation an event came from.
func (c *Client) Reply(ctx context.Context, ev *event.Event, text string) error {
	if ev.IsGroup() {
		return c.SendGroup(ctx, ev.GroupID, text)
	}
	return c.SendPrivate(ctx, ev.UserID, text)
}

// GroupIDs lists every group the bot is in.
func (c *Client) GroupIDs(ctx context.Context) ([]string, error) {
	data, err := c.call(ctx, "get_group_list", nil)
	if err != nil {
		return nil, err
	}
	var groups []struct {
		GroupID int64 `json:"group_id"`
	}
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("parsing group list: %w", err)
	}
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		ids = append(ids, strconv.FormatInt(g.GroupID, 10))
	}
	return ids, nil
}

// FriendIDs lists every friend of the bot.
func (c *Client) FriendIDs(ctx context.Context) ([]string, error) {
	data, err := c.call(ctx, "get_friend_list", nil)
	if err != nil {
		return nil, err
	}
	var friends []struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.Unmarshal(data, &friends); err != nil {
		return nil, fmt.Errorf("parsing friend list: %w", err)
	}
	ids := make([]string, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, strconv.FormatInt(f.UserID, 10))
	}
	return ids, nil
}
