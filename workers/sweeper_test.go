package workers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pong-session-service/services"
)

func TestSweepCollectsFinishedRooms(t *testing.T) {
	rooms := services.NewRoomService(nil)
	tournaments := services.NewTournamentService(rooms, nil)
	w := NewStaleSweeper(rooms, tournaments, time.Hour)

	finished := rooms.CreateLocalGame("u1", services.DefaultGameConfig())
	finished.Stop()
	require.Eventually(t, finished.Finished, time.Second, 10*time.Millisecond)

	live := rooms.CreateLocalGame("u2", services.DefaultGameConfig())
	defer rooms.DeleteRoom(live.ID)

	w.Sweep()

	_, ok := rooms.Room(finished.ID)
	assert.False(t, ok, "finished rooms are collected")
	_, ok = rooms.Room(live.ID)
	assert.True(t, ok, "live rooms are untouched")
}

func TestSweepLeavesRunningBrackets(t *testing.T) {
	rooms := services.NewRoomService(nil)
	tournaments := services.NewTournamentService(rooms, nil)
	w := NewStaleSweeper(rooms, tournaments, time.Hour)

	var bracket *services.Bracket
	for _, id := range []string{"a", "b", "c", "d"} {
		var err error
		bracket, err = tournaments.JoinQueue(id, id, 4)
		require.NoError(t, err)
	}
	require.NotNil(t, bracket)
	defer func() {
		tournaments.DeleteBracket(bracket.ID)
		for _, id := range rooms.RoomIDs() {
			rooms.DeleteRoom(id)
		}
	}()

	w.Sweep()

	_, ok := tournaments.Bracket(bracket.ID)
	assert.True(t, ok, "an in-progress bracket survives the sweep")
}

func TestSweeperStartStop(t *testing.T) {
	rooms := services.NewRoomService(nil)
	tournaments := services.NewTournamentService(rooms, nil)
	w := NewStaleSweeper(rooms, tournaments, 10*time.Millisecond)

	stale := rooms.CreateLocalGame("u1", services.DefaultGameConfig())
	stale.Stop()

	require.NoError(t, w.Start())
	defer w.Stop()

	require.Eventually(t, func() bool {
		_, ok := rooms.Room(stale.ID)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
