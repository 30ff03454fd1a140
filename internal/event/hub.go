// Package event is the in-memory notification fan-out: a per-user mailbox
// registry fed by the order event coordinator and drained by long-lived
// client connections. All of it is ephemeral; clients re-register after a
// restart and re-fetch state on reconnect.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// liveProbeInterval bounds how long a waiting listener goes without
// re-checking its connection, so dead connections are reclaimed promptly
// instead of leaking.
const liveProbeInterval = time.Second

// Listener is one live client connection's private notification mailbox.
// The buffer is FIFO relative to the publishes that targeted it.
type Listener struct {
	id    uuid.UUID
	user  User
	alive func() bool

	mu      sync.Mutex
	pending []Notification
	wake    chan struct{} // capacity 1
}

func (l *Listener) ID() uuid.UUID { return l.id }

func (l *Listener) User() User { return l.user }

func (l *Listener) push(n Notification) {
	l.mu.Lock()
	l.pending = append(l.pending, n)
	l.mu.Unlock()
	l.wakeup()
}

func (l *Listener) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Listener) pop() (Notification, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil, false
	}
	n := l.pending[0]
	l.pending = l.pending[1:]
	return n, true
}

// Next returns the oldest buffered notification, blocking until one arrives
// or the connection is found dead. The second return is false at end of
// stream. The wake channel is the primary wakeup; the timeout exists only
// to re-poll liveness.
func (l *Listener) Next() (Notification, bool) {
	for {
		if n, ok := l.pop(); ok {
			return n, true
		}
		if !l.alive() {
			return nil, false
		}
		select {
		case <-l.wake:
		case <-time.After(liveProbeInterval):
		}
	}
}

// Hub routes notifications to listeners by user identity. It owns every
// listener's lifetime; memory is bounded by live connection count.
type Hub struct {
	mu        sync.Mutex
	listeners map[User][]*Listener
}

func NewHub() *Hub {
	return &Hub{listeners: make(map[User][]*Listener)}
}

// Register creates and tracks a new mailbox for user. alive must be a
// non-blocking probe of the underlying connection. Multiple simultaneous
// listeners per user are allowed.
func (h *Hub) Register(user User, alive func() bool) *Listener {
	l := &Listener{
		id:    uuid.New(),
		user:  user,
		alive: alive,
		wake:  make(chan struct{}, 1),
	}
	h.mu.Lock()
	h.listeners[user] = append(h.listeners[user], l)
	h.mu.Unlock()
	return l
}

// Unregister removes the listener; called when the owning connection closes
// normally. The waiter, if any, is woken so it observes the dead connection
// without waiting out the probe interval.
func (h *Hub) Unregister(l *Listener) {
	h.mu.Lock()
	h.remove(l)
	h.mu.Unlock()
	l.wakeup()
}

// remove expects h.mu to be held.
func (h *Hub) remove(l *Listener) {
	ls := h.listeners[l.user]
	for i, cur := range ls {
		if cur == l {
			ls = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	if len(ls) == 0 {
		delete(h.listeners, l.user)
	} else {
		h.listeners[l.user] = ls
	}
}

// Publish appends n to every live mailbox registered for user. Listeners
// found disconnected during the pass are dropped on the spot; there is no
// background sweep. A user with no listeners is a silent no-op: this is a
// best-effort live-update channel, not guaranteed delivery.
func (h *Hub) Publish(user User, n Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var dead []*Listener
	for _, l := range h.listeners[user] {
		if !l.alive() {
			dead = append(dead, l)
			continue
		}
		l.push(n)
	}
	for _, l := range dead {
		h.remove(l)
	}
}

// ListenerCount reports the number of registered mailboxes across all
// users.
func (h *Hub) ListenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, ls := range h.listeners {
		n += len(ls)
	}
	return n
}
