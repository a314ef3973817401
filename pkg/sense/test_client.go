package sense

import (
	"context"
	"sync"
	"time"
)

// TestClient is an in-memory stand-in for Client. CloseStream on an open
// stream reports a clean CloseEvent, like the real feed does.
type TestClient struct {
	mu       sync.Mutex
	events   chan Event
	open     bool
	shutdown bool
	auths    int
	opens    int
	closes   int
	deadline time.Time
	AuthErr  error
	OpenErr  error
}

func NewTestClient() *TestClient {
	return &TestClient{
		events: make(chan Event, 64),
	}
}

func (c *TestClient) Events() <-chan Event {
	return c.events
}

func (c *TestClient) GetAuth(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auths++
	c.deadline, _ = ctx.Deadline()
	return c.AuthErr
}

func (c *TestClient) OpenStream(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.OpenErr != nil {
		return c.OpenErr
	}
	c.open = true
	return nil
}

func (c *TestClient) CloseStream() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	c.open = false
	c.closes++
	if !c.shutdown {
		c.events <- CloseEvent{WasClean: true}
	}
	return nil
}

func (c *TestClient) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shutdown {
		c.shutdown = true
		c.open = false
		close(c.events)
	}
}

// Emit injects an event as if it came from the feed.
func (c *TestClient) Emit(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.shutdown {
		c.events <- ev
	}
}

func (c *TestClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *TestClient) Counts() (auths, opens, closes int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auths, c.opens, c.closes
}

// AuthDeadline is the deadline of the last GetAuth context, zero if it had none.
func (c *TestClient) AuthDeadline() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deadline
}
