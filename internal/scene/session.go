package scene

import (
	"sync"
	"time"

	"github.com/JesusEspinola/TFG/internal/tree"
)

// EventKind tells subscribers what changed.
type EventKind string

const (
	EventScattered   EventKind = "scattered"
	EventDebugToggle EventKind = "debug"
)

// Event is broadcast to subscribers after every change to the session.
type Event struct {
	Kind       EventKind     `json:"kind"`
	Generation uint64        `json:"generation"`
	Debug      bool          `json:"debug"`
	Trees      []tree.Record `json:"trees,omitempty"`
}

// DebugView is the host owned debug overlay switch.
type DebugView interface {
	Visible() bool
	Toggle() bool
}

// DebugFlag is a DebugView backed by a single boolean.
type DebugFlag struct {
	mu      sync.Mutex
	visible bool
}

func (d *DebugFlag) Visible() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.visible
}

// Toggle flips the flag and returns the new state.
func (d *DebugFlag) Toggle() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.visible = !d.visible
	return d.visible
}

const subscriberBuffer = 16

// Session holds the trees placed for the lifetime of the process.
type Session struct {
	mu          sync.RWMutex
	trees       []*tree.Tree
	generation  uint64
	scatteredAt time.Time
	debug       DebugView

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]chan Event
}

func NewSession(debug DebugView) *Session {
	if debug == nil {
		debug = &DebugFlag{}
	}
	return &Session{
		debug:       debug,
		subscribers: make(map[int]chan Event),
	}
}

// Replace swaps in a freshly scattered set. The previous set is dropped.
func (s *Session) Replace(trees []*tree.Tree) uint64 {
	owned := make([]*tree.Tree, len(trees))
	copy(owned, trees)

	s.mu.Lock()
	s.trees = owned
	s.generation++
	s.scatteredAt = time.Now()
	gen := s.generation
	s.mu.Unlock()

	s.publish(Event{Kind: EventScattered, Generation: gen, Debug: s.debug.Visible(), Trees: records(owned)})
	return gen
}

func (s *Session) Trees() []*tree.Tree {
	s.mu.RLock()
	defer s.mu.RUnlock()
	dup := make([]*tree.Tree, len(s.trees))
	copy(dup, s.trees)
	return dup
}

func (s *Session) Records() []tree.Record {
	return records(s.Trees())
}

func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trees)
}

// Generation counts Replace calls; zero means nothing was scattered yet.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Session) ScatteredAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scatteredAt
}

func (s *Session) Debug() DebugView {
	return s.debug
}

// ToggleDebug flips the debug view and notifies subscribers.
func (s *Session) ToggleDebug() bool {
	visible := s.debug.Toggle()
	s.publish(Event{Kind: EventDebugToggle, Generation: s.Generation(), Debug: visible})
	return visible
}

// Current returns an event describing the session as it is now.
func (s *Session) Current() Event {
	s.mu.RLock()
	gen := s.generation
	trees := records(s.trees)
	s.mu.RUnlock()
	return Event{Kind: EventScattered, Generation: gen, Debug: s.debug.Visible(), Trees: trees}
}

// Subscribe registers for events. Events are dropped for subscribers that
// fall behind. The returned function unsubscribes and closes the channel.
func (s *Session) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, id)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

func (s *Session) publish(ev Event) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func records(trees []*tree.Tree) []tree.Record {
	out := make([]tree.Record, 0, len(trees))
	for _, t := range trees {
		out = append(out, t.Snapshot())
	}
	return out
}
