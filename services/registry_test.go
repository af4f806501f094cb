package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddAndLookup(t *testing.T) {
	r := NewConnectionRegistry()

	r.Add("sock-1", "u1", "alice")

	conn, ok := r.Connection("sock-1")
	require.True(t, ok)
	assert.Equal(t, "u1", conn.UserID)
	assert.Equal(t, "alice", conn.Username)
	assert.False(t, conn.CreatedAt.IsZero())

	socketID, ok := r.SocketForUser("u1")
	require.True(t, ok)
	assert.Equal(t, "sock-1", socketID)

	_, ok = r.Connection("no-such-socket")
	assert.False(t, ok)
	_, ok = r.SocketForUser("no-such-user")
	assert.False(t, ok)
}

func TestRegistryNewSocketDisplacesOld(t *testing.T) {
	r := NewConnectionRegistry()

	r.Add("sock-1", "u1", "alice")
	r.Add("sock-2", "u1", "alice")

	socketID, ok := r.SocketForUser("u1")
	require.True(t, ok)
	assert.Equal(t, "sock-2", socketID)
}

func TestRegistrySessionMembership(t *testing.T) {
	r := NewConnectionRegistry()
	r.Add("sock-1", "u1", "alice")
	r.Add("sock-2", "u2", "bob")

	r.JoinSession("sock-1", "room-1")
	r.JoinSession("sock-2", "room-1")

	assert.ElementsMatch(t, []string{"sock-1", "sock-2"}, r.SocketsInSession("room-1"))
	conn, _ := r.Connection("sock-1")
	assert.Equal(t, "room-1", conn.SessionID)

	// Joining another room replaces the membership.
	r.JoinSession("sock-1", "room-2")
	assert.ElementsMatch(t, []string{"sock-2"}, r.SocketsInSession("room-1"))
	assert.ElementsMatch(t, []string{"sock-1"}, r.SocketsInSession("room-2"))

	r.LeaveSession("sock-1")
	assert.Empty(t, r.SocketsInSession("room-2"))
	conn, _ = r.Connection("sock-1")
	assert.Empty(t, conn.SessionID)
}

func TestRegistryBracketMembership(t *testing.T) {
	r := NewConnectionRegistry()
	r.Add("sock-1", "u1", "alice")

	r.JoinBracket("sock-1", "bracket-1")
	assert.ElementsMatch(t, []string{"sock-1"}, r.SocketsInBracket("bracket-1"))

	r.LeaveBracket("sock-1")
	assert.Empty(t, r.SocketsInBracket("bracket-1"))
}

func TestRegistryRemoveTearsDownAllIndexes(t *testing.T) {
	r := NewConnectionRegistry()
	r.Add("sock-1", "u1", "alice")
	r.JoinSession("sock-1", "room-1")
	r.JoinBracket("sock-1", "bracket-1")

	r.Remove("sock-1")

	_, ok := r.Connection("sock-1")
	assert.False(t, ok)
	_, ok = r.SocketForUser("u1")
	assert.False(t, ok)
	assert.Empty(t, r.SocketsInSession("room-1"))
	assert.Empty(t, r.SocketsInBracket("bracket-1"))

	// Removing again is a no-op.
	r.Remove("sock-1")
}

func TestRegistryMembershipOpsOnUnknownSocket(t *testing.T) {
	r := NewConnectionRegistry()

	r.JoinSession("ghost", "room-1")
	r.JoinBracket("ghost", "bracket-1")
	r.LeaveSession("ghost")
	r.LeaveBracket("ghost")

	assert.Empty(t, r.SocketsInSession("room-1"))
	assert.Empty(t, r.SocketsInBracket("bracket-1"))
}
