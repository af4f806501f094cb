package services

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// GameMode says how a session came to exist and who may drive it.
type GameMode string

const (
	ModeLocal       GameMode = "local"
	ModeMatchmaking GameMode = "matchmaking"
	ModeTournament  GameMode = "tournament"
)

type sessionCommandKind int

const (
	cmdInput sessionCommandKind = iota
	cmdDisconnect
	cmdStop
)

type sessionCommand struct {
	kind     sessionCommandKind
	position PlayerPosition
	action   PaddleAction
	userID   string
}

// Session owns one Engine and drives its tick loop. All engine access happens
// on the session goroutine; inputs and disconnects arrive through the inbox.
// A session is terminal: once stopped it is never restarted or reused.
type Session struct {
	ID        string
	Mode      GameMode
	BracketID string
	Round     int

	engine  *Engine
	players map[PlayerPosition]string // side -> user id; local mode leaves both on the owner

	inbox   chan sessionCommand
	stopped chan struct{}

	mu        sync.Mutex
	running   bool
	done      bool
	listeners []SessionListener
}

// NewSession builds a session for the given sides. Local games pass the same
// owner id for both sides.
func NewSession(id string, mode GameMode, leftID, rightID string, config GameConfig) *Session {
	return &Session{
		ID:     id,
		Mode:   mode,
		engine: NewEngine(config, rand.New(rand.NewSource(time.Now().UnixNano()))),
		players: map[PlayerPosition]string{
			PositionLeft:  leftID,
			PositionRight: rightID,
		},
		inbox:   make(chan sessionCommand, 64),
		stopped: make(chan struct{}),
	}
}

// Subscribe registers a listener for this session's lifecycle events.
func (s *Session) Subscribe(l SessionListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

func (s *Session) snapshotListeners() []SessionListener {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SessionListener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

// PlayerPosition reports which side a user occupies, if any.
func (s *Session) PlayerPosition(userID string) (PlayerPosition, bool) {
	for pos, id := range s.players {
		if id == userID {
			return pos, true
		}
	}
	return "", false
}

func (s *Session) PlayerID(position PlayerPosition) string {
	return s.players[position]
}

// Start begins play and the tick loop. Calling it twice is a no-op.
func (s *Session) Start() {
	s.mu.Lock()
	if s.running || s.done {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.engine.Start()
	state := s.engine.State()
	for _, l := range s.snapshotListeners() {
		if l.OnStarted != nil {
			l.OnStarted(s.ID, state)
		}
	}

	go s.run()
	log.Printf("[Session] ▶️ room %s started (mode=%s)", s.ID, s.Mode)
}

func (s *Session) run() {
	interval := time.Second / time.Duration(s.engine.config.FPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	delta := interval.Seconds()

	for {
		select {
		case <-ticker.C:
			if s.tick(delta) {
				return
			}
		case cmd := <-s.inbox:
			switch cmd.kind {
			case cmdInput:
				s.engine.HandleInput(cmd.position, cmd.action)
			case cmdDisconnect:
				s.forfeit(cmd.userID)
				return
			case cmdStop:
				s.markStopped()
				return
			}
		case <-s.stopped:
			return
		}
	}
}

// tick advances the engine once and fans out the compact state. Reports true
// when the match just finished.
func (s *Session) tick(delta float64) bool {
	s.engine.Update(delta)

	state := s.engine.State()
	update := StateUpdate{
		RoomID:       s.ID,
		ScoreLeft:    state.ScoreLeft,
		ScoreRight:   state.ScoreRight,
		LeftPaddleY:  state.LeftPaddle.Y,
		RightPaddleY: state.RightPaddle.Y,
		BallX:        state.Ball.X,
		BallY:        state.Ball.Y,
		Timestamp:    nowMillis(),
	}
	for _, l := range s.snapshotListeners() {
		if l.OnStateUpdate != nil {
			l.OnStateUpdate(update)
		}
	}

	if state.Status != StatusFinished {
		return false
	}

	winner, _ := s.engine.Winner()
	s.markStopped()
	s.emitGameOver(winner, false)
	return true
}

// forfeit ends the match immediately with the other side as winner. This is
// the only forfeit path; callers decide per mode whether a disconnect forfeits.
func (s *Session) forfeit(userID string) {
	position, ok := s.PlayerPosition(userID)
	if !ok {
		return
	}

	s.markStopped()

	for _, l := range s.snapshotListeners() {
		if l.OnPlayerDisconnected != nil {
			l.OnPlayerDisconnected(s.ID, userID)
		}
	}

	winner := PositionLeft
	if position == PositionLeft {
		winner = PositionRight
	}
	log.Printf("[Session] 🚪 room %s: %s disconnected, %s wins by forfeit", s.ID, userID, winner)
	s.emitGameOver(winner, true)
}

func (s *Session) emitGameOver(winner PlayerPosition, forfeit bool) {
	loser := PositionRight
	if winner == PositionRight {
		loser = PositionLeft
	}
	state := s.engine.State()
	result := GameOver{
		RoomID:         s.ID,
		WinnerPosition: winner,
		WinnerID:       s.players[winner],
		LoserID:        s.players[loser],
		ScoreLeft:      state.ScoreLeft,
		ScoreRight:     state.ScoreRight,
		Forfeit:        forfeit,
	}
	for _, l := range s.snapshotListeners() {
		if l.OnGameOver != nil {
			l.OnGameOver(result)
		}
	}
}

func (s *Session) markStopped() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return
	}
	s.done = true
	s.running = false
	close(s.stopped)
}

// HandleInput routes a paddle action into the session's inbox. A full inbox
// drops the input rather than blocking the socket reader.
func (s *Session) HandleInput(position PlayerPosition, action PaddleAction) {
	select {
	case s.inbox <- sessionCommand{kind: cmdInput, position: position, action: action}:
	case <-s.stopped:
	default:
	}
}

// HandlePlayerDisconnect forfeits the match if the user is a participant.
func (s *Session) HandlePlayerDisconnect(userID string) {
	if _, ok := s.PlayerPosition(userID); !ok {
		return
	}
	select {
	case s.inbox <- sessionCommand{kind: cmdDisconnect, userID: userID}:
	case <-s.stopped:
		// Already over; forfeit outcome was decided by whoever got there first.
	}
}

// Stop cancels the tick loop. Safe to call repeatedly.
func (s *Session) Stop() {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if !running {
		s.markStopped()
		return
	}
	select {
	case s.inbox <- sessionCommand{kind: cmdStop}:
	case <-s.stopped:
	}
}

// Cleanup stops the session and drops all listeners. Terminal.
func (s *Session) Cleanup() {
	s.Stop()
	s.mu.Lock()
	s.listeners = nil
	s.mu.Unlock()
}

// Finished reports whether the session has reached its terminal state.
func (s *Session) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}
