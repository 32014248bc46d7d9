// Package broadcast keeps an ordered, replayable event log per session and fans
// it out to any number of subscribers without letting a slow one stall the
// publisher.
package broadcast

import (
	"errors"
	"fmt"
	"sync"

	"slingshot-be/pkg/research/domain"
)

// ErrClosed is returned when publishing to a log whose run already ended.
var ErrClosed = errors.New("event log closed")

// DefaultBuffer is the live-event headroom of a subscriber beyond its replay.
const DefaultBuffer = 64

type Broadcaster struct {
	mu     sync.RWMutex
	logs   map[string]*eventLog
	buffer int
	onDrop func(sessionID string)
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
	subs   map[*Subscription]struct{}
	closed bool
	// runStart is the index of the first event of the current run.
	runStart int
}

// replay returns the events after since, leaving out the terminal events of
// earlier runs so a restarted session does not look finished.
func (l *eventLog) replay(since uint64) []Event {
	if since >= uint64(len(l.events)) {
		return nil
	}
	out := make([]Event, 0, len(l.events)-int(since))
	for i := int(since); i < len(l.events); i++ {
		if i < l.runStart && l.events[i].Terminal() {
			continue
		}
		out = append(out, l.events[i])
	}
	return out
}

// Subscription delivers a session's events in order. C is closed after a
// terminal event, on overflow, on Close, or when the log is dropped.
type Subscription struct {
	C         <-chan Event
	ch        chan Event
	sessionID string
	b         *Broadcaster
	dropped   bool
}

func New(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broadcaster{logs: make(map[string]*eventLog), buffer: buffer}
}

// OnDrop registers fn to be called when a subscriber is dropped for falling
// behind.
func (b *Broadcaster) OnDrop(fn func(sessionID string)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Open prepares the log of a session for a new run. History of earlier runs is
// kept so replay and sequence numbers stay continuous; their terminal events
// are no longer replayed.
func (b *Broadcaster) Open(sessionID string) {
	b.mu.Lock()
	l, ok := b.logs[sessionID]
	if !ok {
		b.logs[sessionID] = &eventLog{subs: make(map[*Subscription]struct{})}
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	l.mu.Lock()
	if l.closed {
		l.closed = false
		l.runStart = len(l.events)
	}
	l.mu.Unlock()
}

func (b *Broadcaster) log(sessionID string) (*eventLog, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	l, ok := b.logs[sessionID]
	return l, ok
}

// Publish appends ev to the session log and delivers it to every subscriber.
// Subscribers whose buffer is full are dropped. A terminal event closes the
// log and all subscriptions.
func (b *Broadcaster) Publish(ev Event) (Event, error) {
	l, ok := b.log(ev.SessionID)
	if !ok {
		return ev, fmt.Errorf("publish %s: %w", ev.SessionID, domain.ErrNotFound)
	}

	var dropped int
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ev, ErrClosed
	}
	ev.Seq = uint64(len(l.events) + 1)
	l.events = append(l.events, ev)
	for sub := range l.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.dropped = true
			delete(l.subs, sub)
			close(sub.ch)
			dropped++
		}
	}
	if ev.Terminal() {
		l.closed = true
		for sub := range l.subs {
			delete(l.subs, sub)
			close(sub.ch)
		}
	}
	l.mu.Unlock()

	if dropped > 0 {
		b.mu.RLock()
		fn := b.onDrop
		b.mu.RUnlock()
		for i := 0; fn != nil && i < dropped; i++ {
			fn(ev.SessionID)
		}
	}
	return ev, nil
}

// Subscribe returns a subscription that first replays every event with a
// sequence number greater than since, then follows live events. A session
// whose run has ended yields the replay followed by a closed channel.
func (b *Broadcaster) Subscribe(sessionID string, since uint64) (*Subscription, error) {
	l, ok := b.log(sessionID)
	if !ok {
		return nil, fmt.Errorf("subscribe %s: %w", sessionID, domain.ErrNotFound)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	replay := l.replay(since)
	ch := make(chan Event, len(replay)+b.buffer)
	for _, ev := range replay {
		ch <- ev
	}
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, b: b}
	if l.closed {
		close(ch)
		return sub, nil
	}
	l.subs[sub] = struct{}{}
	return sub, nil
}

// Close detaches the subscription. It is safe to call more than once and after
// the channel was closed by the broadcaster.
func (s *Subscription) Close() {
	l, ok := s.b.log(s.sessionID)
	if !ok {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.subs[s]; ok {
		delete(l.subs, s)
		close(s.ch)
	}
}

// Dropped reports whether the subscriber was cut off for falling behind. Only
// meaningful once C is closed.
func (s *Subscription) Dropped() bool {
	l, ok := s.b.log(s.sessionID)
	if !ok {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return s.dropped
}

// History returns a copy of the session log, including the terminal events of
// earlier runs.
func (b *Broadcaster) History(sessionID string) []Event {
	l, ok := b.log(sessionID)
	if !ok {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Event(nil), l.events...)
}

// Subscribers returns the number of live subscriptions of a session.
func (b *Broadcaster) Subscribers(sessionID string) int {
	l, ok := b.log(sessionID)
	if !ok {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subs)
}

// Drop discards the session log and closes its subscriptions.
func (b *Broadcaster) Drop(sessionID string) {
	b.mu.Lock()
	l, ok := b.logs[sessionID]
	delete(b.logs, sessionID)
	b.mu.Unlock()
	if !ok {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	for sub := range l.subs {
		delete(l.subs, sub)
		close(sub.ch)
	}
}
