// Package notifier provides the broadcast mechanism behind the
// server's SSE update stream.
package notifier

import "sync"

// Event is one update notification. Clients re-query the affected
// workspace when they receive it.
type Event struct {
	// WorkspaceID scopes the update; empty means all workspaces.
	WorkspaceID string `json:"workspace_id,omitempty"`
	// Kind is "change" (grid data changed) or "progress" (run progress).
	Kind string `json:"kind"`
	// Message is the human-readable progress line, set for progress
	// events.
	Message string `json:"message,omitempty"`
}

// Notifier fans events out to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

// New creates a Notifier.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel receiving future events. The caller must
// call Unsubscribe when done to prevent leaks.
func (n *Notifier) Subscribe() chan Event {
	ch := make(chan Event, 8)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan Event) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends an event to all listeners. Non-blocking: a listener
// with a full channel misses the event and catches up on the next one.
func (n *Notifier) Broadcast(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
