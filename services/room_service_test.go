package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRecorder captures persistence calls for assertions.
type stubRecorder struct {
	mu          sync.Mutex
	matches     []GameOver
	tournaments []BracketState
	err         error
}

func (r *stubRecorder) RecordMatch(result GameOver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = append(r.matches, result)
	return r.err
}

func (r *stubRecorder) RecordTournament(state BracketState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tournaments = append(r.tournaments, state)
	return r.err
}

func (r *stubRecorder) matchCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.matches)
}

func (r *stubRecorder) tournamentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tournaments)
}

func newTestRooms(t *testing.T) (*RoomService, *stubRecorder) {
	t.Helper()
	rec := &stubRecorder{}
	rooms := NewRoomService(rec)
	t.Cleanup(func() {
		for _, id := range rooms.RoomIDs() {
			rooms.DeleteRoom(id)
		}
	})
	return rooms, rec
}

func TestCreateLocalGame(t *testing.T) {
	rooms, _ := newTestRooms(t)

	session := rooms.CreateLocalGame("owner", DefaultGameConfig())

	assert.Equal(t, ModeLocal, session.Mode)
	assert.Equal(t, "owner", session.PlayerID(PositionLeft))
	assert.Equal(t, "owner", session.PlayerID(PositionRight))

	got, ok := rooms.Room(session.ID)
	require.True(t, ok)
	assert.Same(t, session, got)
}

func TestCreateTournamentGameCarriesBracketTag(t *testing.T) {
	rooms, _ := newTestRooms(t)

	session := rooms.CreateTournamentGame("p1", "p2", "bracket-1", 2, DefaultGameConfig())

	assert.Equal(t, ModeTournament, session.Mode)
	assert.Equal(t, "bracket-1", session.BracketID)
	assert.Equal(t, 2, session.Round)
}

func TestMatchmakingPairsInOrder(t *testing.T) {
	rooms, _ := newTestRooms(t)

	var mu sync.Mutex
	var found []MatchFound
	rooms.OnMatchFound(func(mf MatchFound) {
		mu.Lock()
		found = append(found, mf)
		mu.Unlock()
	})

	require.NoError(t, rooms.AddToMatchmakingQueue("alice"))
	assert.True(t, rooms.InMatchmakingQueue("alice"))
	assert.Empty(t, found)

	require.NoError(t, rooms.AddToMatchmakingQueue("bob"))

	mu.Lock()
	require.Len(t, found, 1)
	mf := found[0]
	mu.Unlock()

	assert.Equal(t, "alice", mf.Player1, "longest-waiting user takes LEFT")
	assert.Equal(t, "bob", mf.Player2)
	assert.False(t, rooms.InMatchmakingQueue("alice"))
	assert.False(t, rooms.InMatchmakingQueue("bob"))

	session, ok := rooms.Room(mf.RoomID)
	require.True(t, ok)
	assert.Equal(t, ModeMatchmaking, session.Mode)
	assert.Equal(t, "alice", session.PlayerID(PositionLeft))
	assert.Equal(t, "bob", session.PlayerID(PositionRight))

	// The third and fourth users pair with each other, not with earlier rooms.
	require.NoError(t, rooms.AddToMatchmakingQueue("carol"))
	require.NoError(t, rooms.AddToMatchmakingQueue("dave"))
	mu.Lock()
	require.Len(t, found, 2)
	assert.Equal(t, "carol", found[1].Player1)
	assert.Equal(t, "dave", found[1].Player2)
	mu.Unlock()
}

func TestMatchmakingRejectsDoubleJoin(t *testing.T) {
	rooms, _ := newTestRooms(t)

	require.NoError(t, rooms.AddToMatchmakingQueue("alice"))
	assert.ErrorIs(t, rooms.AddToMatchmakingQueue("alice"), ErrAlreadyInQueue)
}

func TestMatchmakingLeaveQueue(t *testing.T) {
	rooms, _ := newTestRooms(t)

	matched := false
	rooms.OnMatchFound(func(MatchFound) { matched = true })

	require.NoError(t, rooms.AddToMatchmakingQueue("alice"))
	rooms.RemoveFromMatchmakingQueue("alice")
	assert.False(t, rooms.InMatchmakingQueue("alice"))

	require.NoError(t, rooms.AddToMatchmakingQueue("bob"))
	assert.False(t, matched, "a user who left must not be paired")

	// Leaving twice is harmless.
	rooms.RemoveFromMatchmakingQueue("alice")
}

func TestUserPosition(t *testing.T) {
	rooms, _ := newTestRooms(t)
	session := rooms.CreateOnlineGame("p1", "p2", DefaultGameConfig())

	pos, err := rooms.UserPosition(session.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, PositionRight, pos)

	_, err = rooms.UserPosition(session.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotAParticipant)

	_, err = rooms.UserPosition("no-such-room", "p1")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestDeleteRoomStopsSession(t *testing.T) {
	rooms, _ := newTestRooms(t)
	session := rooms.CreateOnlineGame("p1", "p2", DefaultGameConfig())
	session.Start()

	rooms.DeleteRoom(session.ID)

	_, ok := rooms.Room(session.ID)
	assert.False(t, ok)
	require.Eventually(t, session.Finished, time.Second, 10*time.Millisecond)

	// Deleting an unknown room is a no-op.
	rooms.DeleteRoom("no-such-room")
}

func TestRecordMatchResult(t *testing.T) {
	rooms, rec := newTestRooms(t)

	rooms.RecordMatchResult(GameOver{RoomID: "room-1", WinnerID: "p1", LoserID: "p2"})

	require.Eventually(t, func() bool { return rec.matchCount() == 1 }, time.Second, 10*time.Millisecond)
	rec.mu.Lock()
	assert.Equal(t, "room-1", rec.matches[0].RoomID)
	rec.mu.Unlock()
}
