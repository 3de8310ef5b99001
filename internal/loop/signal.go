package loop

// Signal is a resettable flag owned by the loop. Waiters receive a channel
// that is closed when the flag is set; other goroutines set it through
// SetThreadsafe.
type Signal struct {
	set bool
	ch  chan struct{}
}

// NewSignal returns an unset signal.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// Set raises the flag and wakes every waiter. Loop only.
func (s *Signal) Set() {
	if s.set {
		return
	}
	s.set = true
	close(s.ch)
}

// Clear lowers the flag so later waiters block again. Loop only.
func (s *Signal) Clear() {
	if !s.set {
		return
	}
	s.set = false
	s.ch = make(chan struct{})
}

// IsSet reports whether the flag is raised. Loop only.
func (s *Signal) IsSet() bool {
	return s.set
}

// Wait returns a channel closed when the flag is next raised. Loop only;
// the returned channel itself may be received from anywhere.
func (s *Signal) Wait() <-chan struct{} {
	return s.ch
}

// SetThreadsafe raises the flag from any goroutine.
func (s *Signal) SetThreadsafe(l *Loop) error {
	return l.Post(s.Set)
}
