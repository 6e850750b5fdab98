package playback

import (
	"sort"

	"github.com/lexiqai/voice-coach/internal/audio"
)

// Output is the part of the output graph the scheduler needs
type Output interface {
	CurrentTime() float64
	Start(chunk audio.InboundChunk, at float64) (*audio.Source, error)
}

// Entry is one scheduled chunk, a member of the active set until it ends
type Entry struct {
	Source   *audio.Source
	Start    float64 // context seconds
	Duration float64 // seconds
	Late     bool    // the previous chunk had already finished when this one arrived
}

// End returns when the entry stops playing
func (e Entry) End() float64 {
	return e.Start + e.Duration
}

// Scheduler turns inbound chunks into gapless, back-to-back playback.
// It is not safe for concurrent use; the session loop owns it.
type Scheduler struct {
	output        Output
	nextStartTime float64
	active        map[*audio.Source]Entry

	interrupts    int
	lastInterrupt InterruptReason
}

// NewScheduler creates a scheduler over output
func NewScheduler(output Output) *Scheduler {
	return &Scheduler{
		output: output,
		active: make(map[*audio.Source]Entry),
	}
}

// Schedule queues chunk right after the previously scheduled one.
// If the cursor has already fallen behind the output clock the chunk plays now.
func (s *Scheduler) Schedule(chunk audio.InboundChunk) (Entry, error) {
	now := s.output.CurrentTime()
	start := s.nextStartTime
	late := false
	if now > start {
		late = s.nextStartTime > 0
		start = now
	}

	src, err := s.output.Start(chunk, start)
	if err != nil {
		return Entry{}, err
	}

	entry := Entry{
		Source:   src,
		Start:    start,
		Duration: chunk.Duration(),
		Late:     late,
	}
	s.nextStartTime = start + entry.Duration
	s.active[src] = entry
	return entry, nil
}

// Reap drops every entry whose completion signal has fired and returns how many were removed
func (s *Scheduler) Reap() int {
	removed := 0
	for src := range s.active {
		if src.Ended() {
			delete(s.active, src)
			removed++
		}
	}
	return removed
}

// NextStartTime returns the clock cursor
func (s *Scheduler) NextStartTime() float64 {
	return s.nextStartTime
}

// Len returns the number of entries not yet ended
func (s *Scheduler) Len() int {
	s.Reap()
	return len(s.active)
}

// Active returns the entries not yet ended, ordered by start time
func (s *Scheduler) Active() []Entry {
	s.Reap()
	entries := make([]Entry, 0, len(s.active))
	for _, e := range s.active {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Start < entries[j].Start })
	return entries
}
