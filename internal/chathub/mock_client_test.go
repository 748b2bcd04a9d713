package chathub_test

import (
	"sync"

	"pairchat/backend/internal/models"
)

type MockClient struct {
	id     string
	userID uint
	send   chan models.Event

	mu     sync.Mutex
	closed int
}

func newMockClient(id string, userID uint, buffer int) *MockClient {
	return &MockClient{id: id, userID: userID, send: make(chan models.Event, buffer)}
}

func (c *MockClient) GetID() string                        { return c.id }
func (c *MockClient) GetUserID() uint                      { return c.userID }
func (c *MockClient) GetSendChannel() chan<- models.Event { return c.send }
func (c *MockClient) Run()                                 {}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	close(c.send)
}

func (c *MockClient) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// drain returns the events buffered so far without blocking.
func (c *MockClient) drain() []models.Event {
	var out []models.Event
	for {
		select {
		case ev, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}
