package device

import "sync"

// OrientationMonitor reports the current orientation and notifies on change.
type OrientationMonitor interface {
	Current() Orientation
	// Subscribe registers fn to be called after every orientation change.
	// The returned function removes the subscription.
	Subscribe(fn func(Orientation)) (unsubscribe func())
}

// ManualMonitor is an OrientationMonitor whose orientation is set explicitly,
// for desktops without an orientation sensor.
type ManualMonitor struct {
	mu          sync.RWMutex
	current     Orientation
	nextID      int
	subscribers map[int]func(Orientation)
}

// NewManualMonitor creates a ManualMonitor starting at the given orientation.
func NewManualMonitor(initial Orientation) *ManualMonitor {
	return &ManualMonitor{
		current:     initial,
		subscribers: make(map[int]func(Orientation)),
	}
}

// Current returns the current orientation.
func (m *ManualMonitor) Current() Orientation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Subscribe registers a change callback.
func (m *ManualMonitor) Subscribe(fn func(Orientation)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subscribers, id)
	}
}

// Set changes the orientation. Subscribers are notified only when it differs
// from the current value.
func (m *ManualMonitor) Set(o Orientation) {
	m.mu.Lock()
	if m.current == o {
		m.mu.Unlock()
		return
	}
	m.current = o

	callbacks := make([]func(Orientation), 0, len(m.subscribers))
	for _, fn := range m.subscribers {
		callbacks = append(callbacks, fn)
	}
	m.mu.Unlock()

	// Call the callbacks outside the lock to prevent deadlocks
	for _, fn := range callbacks {
		fn(o)
	}
}
