package services

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotAParticipant = errors.New("user is not a participant of this room")
	ErrAlreadyInQueue  = errors.New("user already in matchmaking queue")
)

// RoomService creates and destroys game sessions and owns the matchmaking
// queue. Pairing is strict FIFO: the two longest-waiting distinct users are
// matched first.
type RoomService struct {
	mu       sync.Mutex
	rooms    map[string]*Session
	queue    []string
	queued   map[string]struct{}
	recorder ResultRecorder

	// onMatchFound fires outside the lock whenever the queue pairs two users.
	// Set once at wiring time, before any traffic.
	onMatchFound func(MatchFound)
}

func NewRoomService(recorder ResultRecorder) *RoomService {
	return &RoomService{
		rooms:    make(map[string]*Session),
		queued:   make(map[string]struct{}),
		recorder: recorder,
	}
}

// OnMatchFound registers the single match-found subscriber.
func (s *RoomService) OnMatchFound(fn func(MatchFound)) {
	s.onMatchFound = fn
}

// CreateLocalGame builds a session driven entirely by one client; the input
// messages carry which side they steer.
func (s *RoomService) CreateLocalGame(ownerID string, config GameConfig) *Session {
	session := NewSession(uuid.New().String(), ModeLocal, ownerID, ownerID, config)

	s.mu.Lock()
	s.rooms[session.ID] = session
	s.mu.Unlock()

	log.Printf("[Rooms] 🎮 local room %s created for %s", session.ID, ownerID)
	return session
}

// CreateOnlineGame builds a two-player session. Sides are deterministic:
// player1 takes LEFT, player2 takes RIGHT.
func (s *RoomService) CreateOnlineGame(player1ID, player2ID string, config GameConfig) *Session {
	session := NewSession(uuid.New().String(), ModeMatchmaking, player1ID, player2ID, config)

	s.mu.Lock()
	s.rooms[session.ID] = session
	s.mu.Unlock()

	log.Printf("[Rooms] 🎮 online room %s created (%s vs %s)", session.ID, player1ID, player2ID)
	return session
}

// CreateTournamentGame is CreateOnlineGame tagged with its bracket and round.
func (s *RoomService) CreateTournamentGame(player1ID, player2ID, bracketID string, round int, config GameConfig) *Session {
	session := NewSession(uuid.New().String(), ModeTournament, player1ID, player2ID, config)
	session.BracketID = bracketID
	session.Round = round

	s.mu.Lock()
	s.rooms[session.ID] = session
	s.mu.Unlock()

	log.Printf("[Rooms] 🏆 tournament room %s created (bracket=%s round=%d, %s vs %s)",
		session.ID, bracketID, round, player1ID, player2ID)
	return session
}

// AddToMatchmakingQueue enqueues a user; once two distinct users wait, the two
// at the head are paired into an online session.
func (s *RoomService) AddToMatchmakingQueue(userID string) error {
	s.mu.Lock()
	if _, ok := s.queued[userID]; ok {
		s.mu.Unlock()
		return ErrAlreadyInQueue
	}
	s.queued[userID] = struct{}{}
	s.queue = append(s.queue, userID)

	var p1, p2 string
	if len(s.queue) >= 2 {
		p1, p2 = s.queue[0], s.queue[1]
		s.queue = s.queue[2:]
		delete(s.queued, p1)
		delete(s.queued, p2)
	}
	s.mu.Unlock()

	if p1 == "" {
		log.Printf("[Matchmaking] ⏳ %s queued, waiting for an opponent", userID)
		return nil
	}

	session := s.CreateOnlineGame(p1, p2, DefaultGameConfig())
	log.Printf("[Matchmaking] ✅ paired %s vs %s into room %s", p1, p2, session.ID)
	if s.onMatchFound != nil {
		s.onMatchFound(MatchFound{RoomID: session.ID, Player1: p1, Player2: p2})
	}
	return nil
}

// RemoveFromMatchmakingQueue is a no-op for users not in the queue.
func (s *RoomService) RemoveFromMatchmakingQueue(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.queued[userID]; !ok {
		return
	}
	delete(s.queued, userID)
	for i, id := range s.queue {
		if id == userID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			break
		}
	}
	log.Printf("[Matchmaking] 🚪 %s left the queue", userID)
}

// InMatchmakingQueue reports queue membership.
func (s *RoomService) InMatchmakingQueue(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.queued[userID]
	return ok
}

// Room looks a session up by id.
func (s *RoomService) Room(sessionID string) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.rooms[sessionID]
	return session, ok
}

// UserPosition resolves which side a user occupies for input routing.
func (s *RoomService) UserPosition(sessionID, userID string) (PlayerPosition, error) {
	session, ok := s.Room(sessionID)
	if !ok {
		return "", ErrRoomNotFound
	}
	position, ok := session.PlayerPosition(userID)
	if !ok {
		return "", ErrNotAParticipant
	}
	return position, nil
}

// DeleteRoom tears the session down and forgets it.
func (s *RoomService) DeleteRoom(sessionID string) {
	s.mu.Lock()
	session, ok := s.rooms[sessionID]
	delete(s.rooms, sessionID)
	s.mu.Unlock()

	if !ok {
		return
	}
	session.Cleanup()
	log.Printf("[Rooms] 🗑️ room %s deleted", sessionID)
}

// RoomIDs snapshots the ids of all live sessions.
func (s *RoomService) RoomIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.rooms))
	for id := range s.rooms {
		ids = append(ids, id)
	}
	return ids
}

// RecordMatchResult persists a finished matchmaking game. Failures are logged
// and swallowed: persistence never blocks gameplay.
func (s *RoomService) RecordMatchResult(result GameOver) {
	if s.recorder == nil {
		return
	}
	go func() {
		if err := s.recorder.RecordMatch(result); err != nil {
			log.Printf("[Rooms] ⚠️ failed to record match result for room %s: %v", result.RoomID, err)
		}
	}()
}
