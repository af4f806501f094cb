package services

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTournaments(t *testing.T) (*TournamentService, *RoomService, *stubRecorder) {
	t.Helper()
	rooms, rec := newTestRooms(t)
	s := NewTournamentService(rooms, rec)
	s.cleanupGrace = 20 * time.Millisecond
	t.Cleanup(func() {
		for _, id := range s.BracketIDs() {
			s.DeleteBracket(id)
		}
	})
	return s, rooms, rec
}

func TestJoinQueueRejectsUnsupportedSize(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	for _, size := range []int{0, 2, 3, 16} {
		_, err := s.JoinQueue("u1", "u1", size)
		assert.ErrorIs(t, err, ErrInvalidSize, "size %d", size)
	}
	assert.ErrorIs(t, s.LeaveQueue("u1", 5), ErrInvalidSize)
}

// Queue operations arrive from many socket read-loops at once; every touch of
// the queues map, including size validation, has to stay race-free.
func TestQueueOpsConcurrentSockets(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", n)
			for j := 0; j < 100; j++ {
				_, err := s.JoinQueue(id, id, 8)
				assert.NoError(t, err)
				assert.NoError(t, s.LeaveQueue(id, 4))
				_, err = s.JoinQueue(id, id, 5)
				assert.ErrorIs(t, err, ErrInvalidSize)
				s.LeaveAllQueues(id)
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		assert.False(t, s.InQueue(fmt.Sprintf("user-%d", i)))
	}
	assert.Empty(t, s.BracketIDs())
}

func TestJoinQueueWaitsBelowCapacity(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("u%d", i)
		bracket, err := s.JoinQueue(id, id, 4)
		require.NoError(t, err)
		assert.Nil(t, bracket)
		assert.True(t, s.InQueue(id))
	}
	assert.Empty(t, s.BracketIDs())
}

func TestFullQueueFormsAndStartsBracket(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	var bracket *Bracket
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		var err error
		bracket, err = s.JoinQueue(id, id, 4)
		require.NoError(t, err)
	}

	require.NotNil(t, bracket, "fourth join forms the bracket")
	assert.Equal(t, BracketInProgress, bracket.Status(), "a full roster starts immediately")
	assert.Len(t, bracket.State().Players, 4)

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		assert.False(t, s.InQueue(id), "seated players leave the queue")
		found, ok := s.BracketForUser(id)
		require.True(t, ok)
		assert.Same(t, bracket, found)
	}

	got, ok := s.Bracket(bracket.ID)
	require.True(t, ok)
	assert.Same(t, bracket, got)
}

func TestQueueMembershipIsExclusive(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	_, err := s.JoinQueue("alice", "alice", 4)
	require.NoError(t, err)
	_, err = s.JoinQueue("alice", "alice", 8)
	require.NoError(t, err)

	// alice was displaced from the size-4 queue, so three more users leave it
	// one short of forming.
	for _, id := range []string{"b", "c", "d"} {
		bracket, err := s.JoinQueue(id, id, 4)
		require.NoError(t, err)
		assert.Nil(t, bracket)
	}
	assert.Empty(t, s.BracketIDs())
	assert.True(t, s.InQueue("alice"))
}

func TestLeaveQueue(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	_, err := s.JoinQueue("alice", "alice", 4)
	require.NoError(t, err)
	require.NoError(t, s.LeaveQueue("alice", 4))
	assert.False(t, s.InQueue("alice"))

	// Leaving a queue the user is not in is harmless.
	require.NoError(t, s.LeaveQueue("alice", 8))
}

func TestLeaveAllQueues(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	_, err := s.JoinQueue("alice", "alice", 8)
	require.NoError(t, err)
	s.LeaveAllQueues("alice")
	assert.False(t, s.InQueue("alice"))
}

func TestListenerFactoryWiredOnFormation(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	joined := make(chan string, 8)
	s.OnBracketCreated(func(b *Bracket) BracketListener {
		return BracketListener{
			OnPlayerJoined: func(_, userID string) { joined <- userID },
		}
	})

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		_, err := s.JoinQueue(id, id, 4)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool { return len(joined) == 4 }, time.Second, 10*time.Millisecond)
}

func TestRemovePlayerForwardsToBracket(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	var bracket *Bracket
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		bracket, _ = s.JoinQueue(id, id, 4)
	}
	require.NotNil(t, bracket)

	s.RemovePlayer("u0", true)

	for _, p := range bracket.State().Players {
		if p.ID == "u0" {
			assert.True(t, p.Exited)
		}
	}

	// Users outside any bracket are ignored.
	s.RemovePlayer("stranger", true)
}

func TestBracketForUserSkipsFinished(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	var bracket *Bracket
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		bracket, _ = s.JoinQueue(id, id, 4)
	}
	require.NotNil(t, bracket)

	bracket.mu.Lock()
	bracket.status = BracketFinished
	bracket.mu.Unlock()

	_, ok := s.BracketForUser("u0")
	assert.False(t, ok)
}

func TestScheduleCleanupDeletesAfterGrace(t *testing.T) {
	s, _, _ := newTestTournaments(t)

	var bracket *Bracket
	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("u%d", i)
		bracket, _ = s.JoinQueue(id, id, 4)
	}
	require.NotNil(t, bracket)

	s.ScheduleCleanup(bracket.ID)

	_, ok := s.Bracket(bracket.ID)
	assert.True(t, ok, "bracket lingers through the grace window")
	require.Eventually(t, func() bool {
		_, ok := s.Bracket(bracket.ID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
