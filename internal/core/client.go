package core

import "sync"

const clientBuffer = 16

// Client is a realtime connection as seen by the core layer.
// The transport writes to Commands and reads from Events; the hub closes Events once the
// connection has been torn down.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	closeOnce sync.Once
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, clientBuffer),
		Events:   make(chan *Event, clientBuffer),
	}
}

// closeCommands ends the command stream. Safe to call more than once.
func (c *Client) closeCommands() {
	c.closeOnce.Do(func() {
		close(c.Commands)
	})
}
