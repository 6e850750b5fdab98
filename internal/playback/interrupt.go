package playback

// InterruptReason identifies why playback was cut short
type InterruptReason int

const (
	// BargeIn means the remote channel reported the user speaking over the agent
	BargeIn InterruptReason = iota

	// Teardown means the session is stopping
	Teardown
)

// String returns the human-readable name of the interrupt reason
func (r InterruptReason) String() string {
	switch r {
	case BargeIn:
		return "barge_in"
	case Teardown:
		return "teardown"
	default:
		return "unknown"
	}
}

// Interrupt stops every active source, clears the active set and rewinds the
// cursor to zero. It is safe to call with nothing playing.
// Returns the number of sources stopped.
func (s *Scheduler) Interrupt(reason InterruptReason) int {
	stopped := len(s.active)
	for src := range s.active {
		src.Stop()
	}
	clear(s.active)
	s.nextStartTime = 0
	s.lastInterrupt = reason
	s.interrupts++
	return stopped
}

// Interrupts returns how many times Interrupt has run and the most recent reason
func (s *Scheduler) Interrupts() (int, InterruptReason) {
	return s.interrupts, s.lastInterrupt
}
