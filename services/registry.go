package services

import (
	"log"
	"sync"
	"time"
)

// Connection is one live socket's registry entry.
type Connection struct {
	SocketID  string
	UserID    string
	Username  string
	CreatedAt time.Time
	SessionID string
	BracketID string
}

// ConnectionRegistry is the single source of truth for socket↔user↔session↔
// bracket associations. No other component keeps socket references.
// A user has at most one live socket: registering a second connection for the
// same user id overwrites the mapping, and evicting the stale socket is the
// caller's job, done before the new registration.
type ConnectionRegistry struct {
	mu        sync.Mutex
	conns     map[string]*Connection
	byUser    map[string]string
	bySession map[string]map[string]struct{}
	byBracket map[string]map[string]struct{}
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns:     make(map[string]*Connection),
		byUser:    make(map[string]string),
		bySession: make(map[string]map[string]struct{}),
		byBracket: make(map[string]map[string]struct{}),
	}
}

// Add registers a socket for a user, overwriting the user's previous mapping.
func (r *ConnectionRegistry) Add(socketID, userID, username string) *Connection {
	conn := &Connection{
		SocketID:  socketID,
		UserID:    userID,
		Username:  username,
		CreatedAt: time.Now(),
	}
	r.mu.Lock()
	r.conns[socketID] = conn
	if userID != "" {
		r.byUser[userID] = socketID
	}
	r.mu.Unlock()
	log.Printf("[Registry] 🔌 socket %s registered for %s", socketID, username)
	return conn
}

// Remove tears down every index for a socket and prunes empty membership sets.
func (r *ConnectionRegistry) Remove(socketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, ok := r.conns[socketID]
	if !ok {
		return
	}
	delete(r.conns, socketID)
	if conn.UserID != "" && r.byUser[conn.UserID] == socketID {
		delete(r.byUser, conn.UserID)
	}
	r.dropMembership(r.bySession, conn.SessionID, socketID)
	r.dropMembership(r.byBracket, conn.BracketID, socketID)
}

func (r *ConnectionRegistry) dropMembership(index map[string]map[string]struct{}, key, socketID string) {
	if key == "" {
		return
	}
	if set, ok := index[key]; ok {
		delete(set, socketID)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

// Connection returns a copy of the socket's entry.
func (r *ConnectionRegistry) Connection(socketID string) (Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[socketID]
	if !ok {
		return Connection{}, false
	}
	return *conn, true
}

// SocketForUser resolves the user's single live socket.
func (r *ConnectionRegistry) SocketForUser(userID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	socketID, ok := r.byUser[userID]
	return socketID, ok
}

// JoinSession binds the socket to a session room, replacing any previous one.
func (r *ConnectionRegistry) JoinSession(socketID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[socketID]
	if !ok {
		return
	}
	r.dropMembership(r.bySession, conn.SessionID, socketID)
	conn.SessionID = sessionID
	if sessionID == "" {
		return
	}
	if r.bySession[sessionID] == nil {
		r.bySession[sessionID] = make(map[string]struct{})
	}
	r.bySession[sessionID][socketID] = struct{}{}
}

// JoinBracket binds the socket to a bracket, replacing any previous one.
func (r *ConnectionRegistry) JoinBracket(socketID, bracketID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[socketID]
	if !ok {
		return
	}
	r.dropMembership(r.byBracket, conn.BracketID, socketID)
	conn.BracketID = bracketID
	if bracketID == "" {
		return
	}
	if r.byBracket[bracketID] == nil {
		r.byBracket[bracketID] = make(map[string]struct{})
	}
	r.byBracket[bracketID][socketID] = struct{}{}
}

// LeaveSession detaches the socket from its session, if any.
func (r *ConnectionRegistry) LeaveSession(socketID string) {
	r.JoinSession(socketID, "")
}

// LeaveBracket detaches the socket from its bracket, if any.
func (r *ConnectionRegistry) LeaveBracket(socketID string) {
	r.JoinBracket(socketID, "")
}

// SocketsInSession snapshots the session's member sockets.
func (r *ConnectionRegistry) SocketsInSession(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return keys(r.bySession[sessionID])
}

// SocketsInBracket snapshots the bracket's member sockets.
func (r *ConnectionRegistry) SocketsInBracket(bracketID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return keys(r.byBracket[bracketID])
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
