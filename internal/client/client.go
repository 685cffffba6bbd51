package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gatherly/gatherly/internal/broadcast"
	"github.com/gatherly/gatherly/internal/storage"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

var ErrNotConnected = errors.New("not connected")

// Client is a connected session: an HTTP caller for the request/response
// surface plus a websocket consumer feeding the local projection.
type Client struct {
	baseURL string
	token   string
	http    *http.Client

	Projection *Projection

	writeMu sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		http:       &http.Client{},
		Projection: NewProjection(),
		done:       make(chan struct{}),
	}
}

// Connect dials the broadcast channel and starts merging notifications into
// the projection until the connection drops or ctx is cancelled.
func (c *Client) Connect(ctx context.Context) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/ws"
	if c.token != "" {
		wsURL += "?token=" + c.token
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("failed to connect (%s): %w", resp.Status, err)
		}
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-c.done:
		}
	}()
	go c.readLoop()
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		n, err := broadcast.Decode(data)
		if err != nil {
			log.Warnf("skipping unreadable notification: %v", err)
			continue
		}
		c.Projection.Apply(n)
	}
}

func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
		<-c.done
	}
}

// Done is closed once the broadcast connection has ended.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Refresh refetches the full collection; this is the reconciliation path for
// anything a dropped notification left stale.
func (c *Client) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/events", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to list events: %s", resp.Status)
	}
	var events []storage.Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return err
	}
	c.Projection.Replace(events)
	return nil
}

// Watch subscribes this session to the event's room; joined-count updates
// for that event start arriving, beginning with a one-time resync.
func (c *Client) Watch(eventID string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	data, err := broadcast.EncodeJoinRoom(eventID)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Join attends the event as the authenticated user userID. The local count
// is bumped immediately to mask latency; if the server round-trip fails the
// optimistic change is rolled back.
func (c *Client) Join(ctx context.Context, eventID, userID string) error {
	rollback := c.Projection.OptimisticJoin(eventID, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/events/"+eventID+"/join", nil)
	if err != nil {
		rollback()
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		rollback()
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		rollback()
		return fmt.Errorf("failed to join event: %s", resp.Status)
	}

	var confirmed storage.Event
	if err := json.NewDecoder(resp.Body).Decode(&confirmed); err != nil {
		// The join committed; the projection keeps the optimistic state
		// until the next notification or refresh corrects it.
		return nil
	}
	c.Projection.Set(confirmed)
	return nil
}
