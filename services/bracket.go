package services

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTournamentFull    = errors.New("tournament is full")
	ErrTournamentStarted = errors.New("tournament has already started")
	ErrInvalidSize       = errors.New("unsupported tournament size")
)

type BracketStatus string

const (
	BracketWaiting    BracketStatus = "waiting"
	BracketInProgress BracketStatus = "in_progress"
	BracketFinished   BracketStatus = "finished"
)

type MatchStatus string

const (
	MatchPending    MatchStatus = "pending"
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchFinished   MatchStatus = "finished"
)

// BracketPlayer is one roster entry. The roster is frozen once the bracket
// leaves waiting; departures after that only flip the flags.
type BracketPlayer struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
	Exited    bool   `json:"exited"`
}

// BracketMatch is one node of the bracket tree. NextMatchID links forward to
// the match one round ahead; the final has none.
type BracketMatch struct {
	ID          string      `json:"id"`
	Round       int         `json:"round"`
	Player1ID   string      `json:"player1_id,omitempty"`
	Player2ID   string      `json:"player2_id,omitempty"`
	WinnerID    string      `json:"winner_id,omitempty"`
	NextMatchID string      `json:"next_match_id,omitempty"`
	Status      MatchStatus `json:"status"`
	SessionID   string      `json:"session_id,omitempty"`
}

// BracketRound groups the matches of one depth of the tree.
type BracketRound struct {
	Index   int             `json:"index"`
	Matches []*BracketMatch `json:"matches"`
}

// BracketState is the serializable snapshot broadcast as tournament state.
type BracketState struct {
	ID           string          `json:"id"`
	Size         int             `json:"size"`
	Status       BracketStatus   `json:"status"`
	Players      []BracketPlayer `json:"players"`
	Rounds       []BracketRound  `json:"rounds"`
	CurrentRound int             `json:"current_round"`
	WinnerID     string          `json:"winner_id,omitempty"`
}

// BracketListener receives a bracket's lifecycle events. Emitted outside the
// bracket lock; nil fields are skipped.
type BracketListener struct {
	OnPlayerJoined  func(bracketID, userID string)
	OnStateChanged  func(state BracketState)
	OnMatchStarting func(bracketID string, match BracketMatch, session *Session)
	OnFinished      func(bracketID, winnerID string)
}

// Bracket is a single tournament: roster, rounds and their matches.
// Status only moves forward: waiting → in_progress → finished.
type Bracket struct {
	ID   string
	Size int

	mu           sync.Mutex
	status       BracketStatus
	players      []*BracketPlayer
	rounds       []*BracketRound
	currentRound int
	winnerID     string

	rooms    *RoomService
	recorder ResultRecorder
	events   BracketListener
	rng      *rand.Rand

	// matchGrace is how long a fully-seeded next-round match waits before it
	// starts. The timer callback re-checks state instead of being cancelled.
	matchGrace time.Duration
}

func NewBracket(size int, rooms *RoomService, recorder ResultRecorder) (*Bracket, error) {
	if size != 4 && size != 8 {
		return nil, ErrInvalidSize
	}
	return &Bracket{
		ID:         uuid.New().String(),
		Size:       size,
		status:     BracketWaiting,
		rooms:      rooms,
		recorder:   recorder,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		matchGrace: 10 * time.Second,
	}, nil
}

// Subscribe sets the bracket's single listener. Call before AddPlayer traffic.
func (b *Bracket) Subscribe(l BracketListener) {
	b.mu.Lock()
	b.events = l
	b.mu.Unlock()
}

func (b *Bracket) Status() BracketStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.status
}

// HasPlayer reports roster membership, exited or not.
func (b *Bracket) HasPlayer(userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.findPlayer(userID) != nil
}

func (b *Bracket) findPlayer(userID string) *BracketPlayer {
	for _, p := range b.players {
		if p.ID == userID {
			return p
		}
	}
	return nil
}

// AddPlayer joins a user to the roster. Idempotent for users already joined;
// rejected once the bracket is full or no longer waiting. Filling the last
// slot starts the tournament.
func (b *Bracket) AddPlayer(userID, username string) error {
	b.mu.Lock()
	if b.status != BracketWaiting {
		b.mu.Unlock()
		return ErrTournamentStarted
	}
	if existing := b.findPlayer(userID); existing != nil {
		existing.Connected = true
		b.mu.Unlock()
		return nil
	}
	if len(b.players) >= b.Size {
		b.mu.Unlock()
		return ErrTournamentFull
	}
	b.players = append(b.players, &BracketPlayer{ID: userID, Username: username, Connected: true})
	count := len(b.players)
	full := count == b.Size
	events := b.events
	b.mu.Unlock()

	log.Printf("[Tournament] 👤 %s joined bracket %s (%d/%d)", username, b.ID, count, b.Size)
	if events.OnPlayerJoined != nil {
		events.OnPlayerJoined(b.ID, userID)
	}
	b.emitStateChanged()
	if full {
		b.StartTournament()
	}
	return nil
}

// MarkConnected flips a roster entry's connected flag, used when a user's
// socket drops or re-attaches while the tournament is alive.
func (b *Bracket) MarkConnected(userID string, connected bool) {
	b.mu.Lock()
	if p := b.findPlayer(userID); p != nil {
		p.Connected = connected
	}
	b.mu.Unlock()
}

// StartTournament freezes the roster, seeds round 0 from a uniform shuffle,
// builds the later rounds empty with forward links, and kicks off every
// eligible round-0 match.
func (b *Bracket) StartTournament() {
	b.mu.Lock()
	if b.status != BracketWaiting {
		b.mu.Unlock()
		return
	}
	b.status = BracketInProgress

	seeds := make([]string, len(b.players))
	for i, p := range b.players {
		seeds[i] = p.ID
	}
	b.rng.Shuffle(len(seeds), func(i, j int) {
		seeds[i], seeds[j] = seeds[j], seeds[i]
	})

	roundCount := 0
	for n := b.Size; n > 1; n /= 2 {
		roundCount++
	}
	b.rounds = make([]*BracketRound, roundCount)
	for r := 0; r < roundCount; r++ {
		matchCount := b.Size >> (r + 1)
		round := &BracketRound{Index: r, Matches: make([]*BracketMatch, matchCount)}
		for m := 0; m < matchCount; m++ {
			round.Matches[m] = &BracketMatch{
				ID:     uuid.New().String(),
				Round:  r,
				Status: MatchPending,
			}
		}
		b.rounds[r] = round
	}
	for r := 0; r < roundCount-1; r++ {
		for m, match := range b.rounds[r].Matches {
			match.NextMatchID = b.rounds[r+1].Matches[m/2].ID
		}
	}
	for m, match := range b.rounds[0].Matches {
		match.Player1ID = seeds[2*m]
		match.Player2ID = seeds[2*m+1]
		match.Status = MatchScheduled
	}
	opening := append([]*BracketMatch(nil), b.rounds[0].Matches...)
	b.mu.Unlock()

	log.Printf("[Tournament] 🏁 bracket %s started with %d players, %d rounds", b.ID, b.Size, roundCount)
	b.emitStateChanged()
	for _, match := range opening {
		b.startMatch(match)
	}
}

// startMatch spins up the session for a fully-seeded match. A match with one
// disconnected player is a walkover: the present side advances without a
// session. With both players gone the player1 slot advances, which mirrors
// how absent finalists have historically been resolved here.
func (b *Bracket) startMatch(match *BracketMatch) {
	b.mu.Lock()
	if b.status != BracketInProgress || match.Status == MatchFinished || match.Status == MatchInProgress {
		b.mu.Unlock()
		return
	}
	if match.Player1ID == "" || match.Player2ID == "" {
		b.mu.Unlock()
		return
	}

	p1 := b.findPlayer(match.Player1ID)
	p2 := b.findPlayer(match.Player2ID)
	p1Present := p1 != nil && p1.Connected && !p1.Exited
	p2Present := p2 != nil && p2.Connected && !p2.Exited

	if !p1Present || !p2Present {
		winnerID := match.Player1ID
		if !p1Present && p2Present {
			winnerID = match.Player2ID
		}
		b.mu.Unlock()
		log.Printf("[Tournament] 🚶 walkover in bracket %s: %s advances", b.ID, winnerID)
		b.HandleMatchResult(match.ID, winnerID)
		return
	}

	match.Status = MatchInProgress
	b.mu.Unlock()

	session := b.rooms.CreateTournamentGame(match.Player1ID, match.Player2ID, b.ID, match.Round, DefaultGameConfig())

	b.mu.Lock()
	match.SessionID = session.ID
	events := b.events
	snapshot := *match
	b.mu.Unlock()

	matchID := match.ID
	session.Subscribe(SessionListener{
		OnGameOver: func(result GameOver) {
			b.HandleMatchResult(matchID, result.WinnerID)
		},
	})
	if events.OnMatchStarting != nil {
		events.OnMatchStarting(b.ID, snapshot, session)
	}
	b.emitStateChanged()
	session.Start()
}

// HandleMatchResult records a winner and advances the bracket: the winner
// fills the first empty slot of the linked next match, a fully-seeded next
// match starts after the grace delay, and a final with no forward link ends
// the tournament.
func (b *Bracket) HandleMatchResult(matchID, winnerID string) {
	b.mu.Lock()
	match := b.findMatch(matchID)
	if match == nil || match.Status == MatchFinished {
		b.mu.Unlock()
		return
	}
	match.Status = MatchFinished
	match.WinnerID = winnerID
	if match.SessionID != "" {
		sessionID := match.SessionID
		defer b.rooms.DeleteRoom(sessionID)
	}

	if match.NextMatchID == "" {
		b.status = BracketFinished
		b.winnerID = winnerID
		events := b.events
		b.mu.Unlock()

		log.Printf("[Tournament] 🏆 bracket %s finished, winner %s", b.ID, winnerID)
		b.recordResult(winnerID)
		b.emitStateChanged()
		if events.OnFinished != nil {
			events.OnFinished(b.ID, winnerID)
		}
		return
	}

	next := b.findMatch(match.NextMatchID)
	if next.Player1ID == "" {
		next.Player1ID = winnerID
	} else if next.Player2ID == "" {
		next.Player2ID = winnerID
	}

	if match.Round+1 > b.currentRound && b.roundComplete(match.Round) {
		b.currentRound = match.Round + 1
	}

	var scheduled *BracketMatch
	if next.Player1ID != "" && next.Player2ID != "" && next.Status == MatchPending {
		next.Status = MatchScheduled
		scheduled = next
	}
	grace := b.matchGrace
	b.mu.Unlock()

	log.Printf("[Tournament] ✅ match %s won by %s in bracket %s", matchID, winnerID, b.ID)
	b.emitStateChanged()

	if scheduled == nil {
		return
	}
	// The timer is never cancelled; firing re-validates that the bracket and
	// the match are still in the state that scheduled them.
	nextID := scheduled.ID
	time.AfterFunc(grace, func() {
		b.mu.Lock()
		m := b.findMatch(nextID)
		stale := b.status != BracketInProgress || m == nil || m.Status != MatchScheduled ||
			m.Player1ID == "" || m.Player2ID == ""
		b.mu.Unlock()
		if stale {
			return
		}
		b.startMatch(m)
	})
}

func (b *Bracket) roundComplete(round int) bool {
	if round < 0 || round >= len(b.rounds) {
		return false
	}
	for _, m := range b.rounds[round].Matches {
		if m.Status != MatchFinished {
			return false
		}
	}
	return true
}

// RemovePlayer takes a user out of the tournament. Before the start it is a
// plain roster removal; afterwards the player is flagged gone and any live
// match of theirs is forfeited through its session, or resolved directly when
// no session exists yet.
func (b *Bracket) RemovePlayer(userID string, explicit bool) {
	b.mu.Lock()
	player := b.findPlayer(userID)
	if player == nil {
		b.mu.Unlock()
		return
	}

	if b.status == BracketWaiting {
		for i, p := range b.players {
			if p.ID == userID {
				b.players = append(b.players[:i], b.players[i+1:]...)
				break
			}
		}
		b.mu.Unlock()
		log.Printf("[Tournament] 🚪 %s left bracket %s before start", userID, b.ID)
		b.emitStateChanged()
		return
	}

	player.Connected = false
	player.Exited = true

	var activeSessionID string
	var pendingForfeit *BracketMatch
	for _, round := range b.rounds {
		for _, m := range round.Matches {
			if m.Status == MatchFinished || (m.Player1ID != userID && m.Player2ID != userID) {
				continue
			}
			if m.Status == MatchInProgress && m.SessionID != "" {
				activeSessionID = m.SessionID
			} else if m.Status == MatchScheduled && m.Player1ID != "" && m.Player2ID != "" {
				pendingForfeit = m
			}
		}
	}
	b.mu.Unlock()

	log.Printf("[Tournament] 🚪 %s left bracket %s (explicit=%t)", userID, b.ID, explicit)

	if activeSessionID != "" {
		if session, ok := b.rooms.Room(activeSessionID); ok {
			session.HandlePlayerDisconnect(userID)
		}
	} else if pendingForfeit != nil {
		opponent := pendingForfeit.Player1ID
		if opponent == userID {
			opponent = pendingForfeit.Player2ID
		}
		b.HandleMatchResult(pendingForfeit.ID, opponent)
	}
	b.emitStateChanged()
}

func (b *Bracket) findMatch(matchID string) *BracketMatch {
	for _, round := range b.rounds {
		for _, m := range round.Matches {
			if m.ID == matchID {
				return m
			}
		}
	}
	return nil
}

// State snapshots the bracket for broadcast.
func (b *Bracket) State() BracketState {
	b.mu.Lock()
	defer b.mu.Unlock()

	state := BracketState{
		ID:           b.ID,
		Size:         b.Size,
		Status:       b.status,
		CurrentRound: b.currentRound,
		WinnerID:     b.winnerID,
		Players:      make([]BracketPlayer, len(b.players)),
		Rounds:       make([]BracketRound, len(b.rounds)),
	}
	for i, p := range b.players {
		state.Players[i] = *p
	}
	for i, round := range b.rounds {
		matches := make([]*BracketMatch, len(round.Matches))
		for j, m := range round.Matches {
			dup := *m
			matches[j] = &dup
		}
		state.Rounds[i] = BracketRound{Index: round.Index, Matches: matches}
	}
	return state
}

func (b *Bracket) emitStateChanged() {
	b.mu.Lock()
	events := b.events
	b.mu.Unlock()
	if events.OnStateChanged != nil {
		events.OnStateChanged(b.State())
	}
}

func (b *Bracket) recordResult(winnerID string) {
	if b.recorder == nil {
		return
	}
	state := b.State()
	go func() {
		if err := b.recorder.RecordTournament(state); err != nil {
			log.Printf("[Tournament] ⚠️ failed to record result for bracket %s: %v", b.ID, err)
		}
	}()
}
