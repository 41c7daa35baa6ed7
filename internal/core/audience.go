package core

// audience is the set of connected clients a snapshot fans out to.
type audience struct {
	clients map[*Client]*Session
}

func newAudience() *audience {
	return &audience{clients: make(map[*Client]*Session)}
}

// add inserts a client with its session. Returns true if newly added.
func (a *audience) add(c *Client, s *Session) bool {
	if _, exists := a.clients[c]; exists {
		return false
	}
	a.clients[c] = s
	return true
}

// remove deletes a client and returns its session.
func (a *audience) remove(c *Client) (*Session, bool) {
	s, exists := a.clients[c]
	if !exists {
		return nil, false
	}
	delete(a.clients, c)
	return s, true
}

func (a *audience) session(c *Client) (*Session, bool) {
	s, ok := a.clients[c]
	return s, ok
}

// broadcast sends an event to every client and returns how many were skipped.
func (a *audience) broadcast(event *Event) int {
	dropped := 0
	for client := range a.clients {
		if !send(client, event) {
			dropped++
		}
	}
	return dropped
}

func (a *audience) size() int {
	return len(a.clients)
}

// send delivers without blocking; slow consumers miss the event and can resync with a snapshot request.
func send(c *Client, event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
