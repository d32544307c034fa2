package services

import (
	"sync"
	"time"
)

// ConversationKind tags what a user's next private message means.
type ConversationKind int

const (
	ConversationNone ConversationKind = iota
	// ConversationAwaitingVideo routes the next video to the workspace.
	ConversationAwaitingVideo
	// ConversationAwaitingScreenshotTimes expects comma separated timestamps.
	ConversationAwaitingScreenshotTimes
	// ConversationAwaitingClipDetails expects "HH:MM:SS <seconds>".
	ConversationAwaitingClipDetails
	// ConversationAwaitingRequestReply relays the next text to a requester.
	ConversationAwaitingRequestReply
)

// ConversationState is one pending step of a multi message flow. Only
// the fields the kind needs are set.
type ConversationState struct {
	Kind ConversationKind

	// Request reply relay.
	RequesterID int64
	CardChatID  int64
	CardMsgID   int
	CardText    string
}

type conversationEntry struct {
	state   ConversationState
	expires time.Time
}

// ConversationService remembers pending steps keyed by user. Entries
// written with a deadline vanish once it passes.
type ConversationService struct {
	mu      sync.Mutex
	entries map[int64]conversationEntry
	now     func() time.Time
}

func NewConversationService() *ConversationService {
	return &ConversationService{
		entries: make(map[int64]conversationEntry),
		now:     time.Now,
	}
}

// Expect remembers what the user's next message means. ttl <= 0 keeps
// the entry until it is consumed or replaced.
func (s *ConversationService) Expect(userID int64, state ConversationState, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := conversationEntry{state: state}
	if ttl > 0 {
		entry.expires = s.now().Add(ttl)
	}
	s.entries[userID] = entry
}

// Peek returns the pending state without consuming it.
func (s *ConversationService) Peek(userID int64) (ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookupLocked(userID)
}

// Consume returns the pending state and clears it.
func (s *ConversationService) Consume(userID int64) (ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.lookupLocked(userID)
	if ok {
		delete(s.entries, userID)
	}
	return state, ok
}

func (s *ConversationService) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
}

func (s *ConversationService) lookupLocked(userID int64) (ConversationState, bool) {
	entry, ok := s.entries[userID]
	if !ok {
		return ConversationState{}, false
	}
	if !entry.expires.IsZero() && s.now().After(entry.expires) {
		delete(s.entries, userID)
		return ConversationState{}, false
	}
	return entry.state, true
}
