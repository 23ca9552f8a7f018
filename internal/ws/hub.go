package ws

import (
	"sync"
	"time"
)

// Hub knows which note each connected client has open and pushes note
// changes to the clients following that note. A client follows at most
// one note at a time.
type Hub struct {
	mu        sync.RWMutex
	following map[*Client]string
	followers map[string]map[*Client]struct{}
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		following: make(map[*Client]string),
		followers: make(map[string]map[*Client]struct{}),
	}
}

// Register adds a client that follows no note yet.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.following[c]; !ok {
		h.following[c] = ""
	}
}

// Unregister drops the client and whatever note it followed.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.unfollow(c)
	delete(h.following, c)
}

// Follow makes c follow noteID instead of its previous note. An empty
// noteID follows nothing, which is what a new unsaved note needs. Following
// an unregistered client is a no-op.
func (h *Hub) Follow(c *Client, noteID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	current, ok := h.following[c]
	if !ok || current == noteID {
		return
	}

	h.unfollow(c)
	h.following[c] = noteID

	if noteID == "" {
		return
	}

	set := h.followers[noteID]
	if set == nil {
		set = make(map[*Client]struct{})
		h.followers[noteID] = set
	}

	set[c] = struct{}{}
}

// unfollow must be called with h.mu held.
func (h *Hub) unfollow(c *Client) {
	noteID := h.following[c]
	if noteID == "" {
		return
	}

	h.following[c] = ""

	set := h.followers[noteID]
	delete(set, c)

	if len(set) == 0 {
		delete(h.followers, noteID)
	}
}

// Following returns the note c follows, or "" if none.
func (h *Hub) Following(c *Client) string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.following[c]
}

// NoteUpdated sends an updated message to every follower of u.NoteID,
// each from its own goroutine.
func (h *Hub) NoteUpdated(u UpdatedPayload) {
	// A deleted note has no title or save time to report.
	if u.Deleted {
		u.Title = ""
		u.UpdatedAt = time.Time{}
	}

	msg := Message{Type: MessageTypeUpdated, Payload: u}

	for _, c := range h.followersOf(u.NoteID) {
		go func() { _ = c.Send(msg) }()
	}
}

func (h *Hub) followersOf(noteID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Client, 0, len(h.followers[noteID]))
	for c := range h.followers[noteID] {
		out = append(out, c)
	}

	return out
}

// Followers returns how many clients follow noteID.
func (h *Hub) Followers(noteID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.followers[noteID])
}

// Len returns the number of registered clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.following)
}

// CloseAll closes every client connection. Clients stay registered until
// their handlers unregister them.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.following))

	for c := range h.following {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		_ = c.Close()
	}
}
