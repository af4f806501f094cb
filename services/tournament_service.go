package services

import (
	"log"
	"sync"
	"time"
)

type queueEntry struct {
	userID   string
	username string
}

// TournamentService owns every bracket plus one join queue per supported
// size. Queue membership is exclusive: joining one size removes the user from
// any other. A full queue immediately forms and starts a bracket.
type TournamentService struct {
	mu       sync.Mutex
	brackets map[string]*Bracket
	queues   map[int][]queueEntry

	rooms    *RoomService
	recorder ResultRecorder

	// listenerFor wires a new bracket's events; set once before traffic.
	listenerFor func(b *Bracket) BracketListener

	// cleanupGrace is how long a finished bracket lingers before deletion.
	cleanupGrace time.Duration
}

var supportedSizes = []int{4, 8}

func supportedSize(size int) bool {
	for _, s := range supportedSizes {
		if s == size {
			return true
		}
	}
	return false
}

func NewTournamentService(rooms *RoomService, recorder ResultRecorder) *TournamentService {
	s := &TournamentService{
		brackets:     make(map[string]*Bracket),
		queues:       make(map[int][]queueEntry),
		rooms:        rooms,
		recorder:     recorder,
		cleanupGrace: 5 * time.Second,
	}
	for _, size := range supportedSizes {
		s.queues[size] = nil
	}
	return s
}

// OnBracketCreated registers the factory for each new bracket's listener.
func (s *TournamentService) OnBracketCreated(fn func(b *Bracket) BracketListener) {
	s.listenerFor = fn
}

// JoinQueue enqueues a user for a bracket of the given size, displacing any
// membership in another size's queue. Filling the queue forms the bracket.
func (s *TournamentService) JoinQueue(userID, username string, size int) (*Bracket, error) {
	// Size validation must not probe s.queues: the map is owned by s.mu.
	if !supportedSize(size) {
		return nil, ErrInvalidSize
	}

	s.mu.Lock()
	for sz, q := range s.queues {
		s.queues[sz] = removeEntry(q, userID)
	}
	s.queues[size] = append(s.queues[size], queueEntry{userID: userID, username: username})
	queued := len(s.queues[size])

	var formed []queueEntry
	if queued == size {
		formed = s.queues[size]
		s.queues[size] = nil
	}
	s.mu.Unlock()

	if formed == nil {
		log.Printf("[Tournament] ⏳ %s queued for size-%d bracket (%d/%d)", username, size, queued, size)
		return nil, nil
	}

	bracket, err := NewBracket(size, s.rooms, s.recorder)
	if err != nil {
		return nil, err
	}
	if s.listenerFor != nil {
		bracket.Subscribe(s.listenerFor(bracket))
	}

	s.mu.Lock()
	s.brackets[bracket.ID] = bracket
	s.mu.Unlock()

	log.Printf("[Tournament] 🆕 size-%d queue full, forming bracket %s", size, bracket.ID)
	for _, e := range formed {
		if err := bracket.AddPlayer(e.userID, e.username); err != nil {
			log.Printf("[Tournament] ⚠️ could not seat %s in bracket %s: %v", e.userID, bracket.ID, err)
		}
	}
	return bracket, nil
}

// LeaveQueue drops the user from the given size's queue.
func (s *TournamentService) LeaveQueue(userID string, size int) error {
	if !supportedSize(size) {
		return ErrInvalidSize
	}
	s.mu.Lock()
	s.queues[size] = removeEntry(s.queues[size], userID)
	s.mu.Unlock()
	log.Printf("[Tournament] 🚪 %s left the size-%d queue", userID, size)
	return nil
}

// LeaveAllQueues drops the user from every size's queue.
func (s *TournamentService) LeaveAllQueues(userID string) {
	s.mu.Lock()
	for sz, q := range s.queues {
		s.queues[sz] = removeEntry(q, userID)
	}
	s.mu.Unlock()
}

// InQueue reports whether the user waits in any size's queue.
func (s *TournamentService) InQueue(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.queues {
		for _, e := range q {
			if e.userID == userID {
				return true
			}
		}
	}
	return false
}

// Bracket looks a bracket up by id.
func (s *TournamentService) Bracket(bracketID string) (*Bracket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.brackets[bracketID]
	return b, ok
}

// BracketForUser finds the live bracket a user is seated in, if any.
func (s *TournamentService) BracketForUser(userID string) (*Bracket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.brackets {
		if b.Status() != BracketFinished && b.HasPlayer(userID) {
			return b, true
		}
	}
	return nil, false
}

// RemovePlayer forwards a departure to the user's bracket, if they are in one.
func (s *TournamentService) RemovePlayer(userID string, explicit bool) {
	bracket, ok := s.BracketForUser(userID)
	if !ok {
		return
	}
	bracket.RemovePlayer(userID, explicit)
}

// ScheduleCleanup deletes a finished bracket after the grace delay, unless an
// explicit delete already removed it.
func (s *TournamentService) ScheduleCleanup(bracketID string) {
	time.AfterFunc(s.cleanupGrace, func() {
		s.mu.Lock()
		_, present := s.brackets[bracketID]
		delete(s.brackets, bracketID)
		s.mu.Unlock()
		if present {
			log.Printf("[Tournament] 🗑️ bracket %s cleaned up", bracketID)
		}
	})
}

// DeleteBracket removes a bracket immediately.
func (s *TournamentService) DeleteBracket(bracketID string) {
	s.mu.Lock()
	delete(s.brackets, bracketID)
	s.mu.Unlock()
}

// BracketIDs snapshots the ids of all live brackets.
func (s *TournamentService) BracketIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.brackets))
	for id := range s.brackets {
		ids = append(ids, id)
	}
	return ids
}

func removeEntry(q []queueEntry, userID string) []queueEntry {
	for i, e := range q {
		if e.userID == userID {
			return append(q[:i], q[i+1:]...)
		}
	}
	return q
}
