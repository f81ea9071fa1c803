package server

import "sync"

// ConnectionRegistry maps verified user ids to their live connection
// handles. A user may hold several handles at once (multi-device); the
// user is online iff at least one handle remains.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[int]map[*Client]struct{}
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[int]map[*Client]struct{}),
	}
}

func (r *ConnectionRegistry) Register(userId int, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conns[userId] == nil {
		r.conns[userId] = make(map[*Client]struct{})
	}
	r.conns[userId][c] = struct{}{}
}

// Unregister removes exactly the given handle and reports whether it
// was the user's last one.
func (r *ConnectionRegistry) Unregister(userId int, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles, ok := r.conns[userId]
	if !ok {
		return false
	}

	delete(handles, c)
	if len(handles) == 0 {
		delete(r.conns, userId)
		return true
	}

	return false
}

func (r *ConnectionRegistry) HandlesFor(userId int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := make([]*Client, 0, len(r.conns[userId]))
	for c := range r.conns[userId] {
		handles = append(handles, c)
	}

	return handles
}

func (r *ConnectionRegistry) IsOnline(userId int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns[userId]) > 0
}
