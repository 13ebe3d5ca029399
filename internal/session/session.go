// Package session holds the conversation state for one interactive session:
// the active topic and a bounded question/answer history. The state is an
// explicit value owned by the caller; nothing here is a process-wide
// singleton.
package session

import (
	"errors"
	"time"
)

// ErrNoTopic indicates a question was asked before any topic was set.
var ErrNoTopic = errors.New("session: no topic set")

// DefaultHistoryCap bounds how many entries the history retains.
const DefaultHistoryCap = 20

// recentEntries is how many trailing history entries feed the prompt's
// recent-conversation block (two exchanges).
const recentEntries = 4

// Role identifies the author of a history entry.
type Role string

const (
	// RoleUser is a question asked by the operator.
	RoleUser Role = "user"
	// RoleAssistant is a synthesized answer.
	RoleAssistant Role = "assistant"
)

// Entry is one turn in the conversation history.
type Entry struct {
	// Role is the author of the entry.
	Role Role
	// Content is the entry text.
	Content string
	// CreatedAt is when the entry was recorded.
	CreatedAt time.Time
}

// Phase is the session's lifecycle state.
type Phase int

const (
	// PhaseNoTopic means no topic has been set; questions are rejected.
	PhaseNoTopic Phase = iota
	// PhaseTopicSet means a topic is active and questions can be answered.
	PhaseTopicSet
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	if p == PhaseTopicSet {
		return "TOPIC_SET"
	}
	return "NO_TOPIC"
}

// Session is the conversation state for one topic at a time. It is not safe
// for concurrent use; callers own exactly one session per interactive run.
type Session struct {
	topicID    string
	phase      Phase
	history    []Entry
	historyCap int
	// now is swappable in tests.
	now func() time.Time
}

// New returns an empty session in the NO_TOPIC phase. A non-positive
// historyCap falls back to DefaultHistoryCap.
func New(historyCap int) *Session {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Session{historyCap: historyCap, now: time.Now}
}

// Phase returns the session's current phase.
func (s *Session) Phase() Phase { return s.phase }

// TopicID returns the active topic id, or "" in the NO_TOPIC phase.
func (s *Session) TopicID() string { return s.topicID }

// History returns a copy of the current history, oldest first.
func (s *Session) History() []Entry {
	out := make([]Entry, len(s.history))
	copy(out, s.history)
	return out
}

// SetTopic activates a topic and clears the history. Callers must confirm the
// topic's collection exists before transitioning; the session itself does no
// I/O.
func (s *Session) SetTopic(topicID string) {
	s.topicID = topicID
	s.phase = PhaseTopicSet
	s.history = s.history[:0]
}

// RequireTopic returns the active topic id, or ErrNoTopic when none is set.
func (s *Session) RequireTopic() (string, error) {
	if s.phase != PhaseTopicSet {
		return "", ErrNoTopic
	}
	return s.topicID, nil
}

// RecordExchange appends the question and answer to the history and trims it
// to the cap, dropping the oldest entries first.
func (s *Session) RecordExchange(question, answer string) {
	now := s.now()
	s.history = append(s.history,
		Entry{Role: RoleUser, Content: question, CreatedAt: now},
		Entry{Role: RoleAssistant, Content: answer, CreatedAt: now},
	)
	if over := len(s.history) - s.historyCap; over > 0 {
		s.history = s.history[over:]
	}
}

// ClearHistory empties the history without touching the active topic.
func (s *Session) ClearHistory() {
	s.history = s.history[:0]
}

// SeedHistory replaces the history with entries restored from an archive,
// trimmed to the cap oldest-first. The phase and topic are untouched.
func (s *Session) SeedHistory(entries []Entry) {
	s.history = append(s.history[:0], entries...)
	if over := len(s.history) - s.historyCap; over > 0 {
		s.history = s.history[over:]
	}
}

// Cap returns the resolved history cap.
func (s *Session) Cap() int { return s.historyCap }

// Reset returns the session to the NO_TOPIC phase and empties the history.
func (s *Session) Reset() {
	s.topicID = ""
	s.phase = PhaseNoTopic
	s.history = s.history[:0]
}

// RecentEntries returns a copy of the last two exchanges, oldest first.
// Formatting for the prompt's recent-conversation block is the answer
// package's concern.
func (s *Session) RecentEntries() []Entry {
	start := len(s.history) - recentEntries
	if start < 0 {
		start = 0
	}
	out := make([]Entry, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}
