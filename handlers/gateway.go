package handlers

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"

	"pong-session-service/services"
)

// GatewayController is the protocol dispatcher: it parses inbound envelopes,
// calls into the room/tournament services, and translates their lifecycle
// events back into targeted socket messages resolved through the registry.
// It subscribes to service events once, at construction.
type GatewayController struct {
	registry    *services.ConnectionRegistry
	rooms       *services.RoomService
	tournaments *services.TournamentService

	mu    sync.Mutex
	conns map[string]*ClientConn
}

func NewGatewayController(registry *services.ConnectionRegistry, rooms *services.RoomService, tournaments *services.TournamentService) *GatewayController {
	g := &GatewayController{
		registry:    registry,
		rooms:       rooms,
		tournaments: tournaments,
		conns:       make(map[string]*ClientConn),
	}

	rooms.OnMatchFound(g.handleMatchFound)
	tournaments.OnBracketCreated(func(b *services.Bracket) services.BracketListener {
		return services.BracketListener{
			OnPlayerJoined: func(bracketID, userID string) {
				if socketID, ok := registry.SocketForUser(userID); ok {
					registry.JoinBracket(socketID, bracketID)
				}
			},
			OnStateChanged: func(state services.BracketState) {
				g.broadcastToBracket(state.ID, MsgTournamentState, state)
			},
			OnMatchStarting: g.handleBracketMatchStarting,
			OnFinished: func(bracketID, winnerID string) {
				tournaments.ScheduleCleanup(bracketID)
			},
		}
	})

	return g
}

// HandleConnection runs the lifetime of one websocket: registration, the read
// loop, and the single cleanup path. Blocks until the socket dies.
func (g *GatewayController) HandleConnection(sock wireSocket, userID, username string) {
	if username == "" {
		// The upstream gateway must have injected a trusted identity; a bare
		// socket is the one connect-time fatal condition.
		c := NewClientConn("", sock)
		c.CloseWithReason(websocket.ClosePolicyViolation, "missing user identity")
		return
	}

	socketID := uuid.New().String()
	conn := NewClientConn(socketID, sock)

	// One live socket per user: the previous one is told it was replaced and
	// torn out of every index before the new registration.
	prior, replaced := g.evictPriorSocket(userID)

	g.mu.Lock()
	g.conns[socketID] = conn
	g.mu.Unlock()
	g.registry.Add(socketID, userID, username)

	// A reconnect inherits the evicted socket's live room, if it survives.
	if replaced && prior.SessionID != "" {
		if session, ok := g.rooms.Room(prior.SessionID); ok && !session.Finished() {
			g.registry.JoinSession(socketID, prior.SessionID)
		}
	}

	// Re-attach a returning player to their still-alive tournament.
	if bracket, ok := g.tournaments.BracketForUser(userID); ok {
		g.registry.JoinBracket(socketID, bracket.ID)
		bracket.MarkConnected(userID, true)
		_ = conn.Send(MsgTournamentState, bracket.State())
	}

	_ = conn.Send(MsgConnected, fiberMap{
		"socket_id": socketID,
		"user_id":   userID,
		"username":  username,
	})

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			break
		}
		g.handleMessage(conn, socketID, userID, data)
	}

	g.cleanupSocket(socketID)
}

// handleMessage dispatches one inbound envelope. Protocol errors answer with
// ERROR on the same socket; the connection always stays open.
func (g *GatewayController) handleMessage(conn *ClientConn, socketID, userID string, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		_ = conn.Send(MsgError, fiberMap{"error": "malformed message"})
		return
	}

	switch env.Type {
	case MsgCreateLocalGame:
		g.handleCreateLocalGame(conn, socketID, userID)
	case MsgJoinMatchmaking:
		g.handleJoinMatchmaking(conn, userID)
	case MsgLeaveMatchmaking:
		g.rooms.RemoveFromMatchmakingQueue(userID)
	case MsgJoinTournamentQueue:
		g.handleJoinTournamentQueue(conn, userID, env.Payload)
	case MsgLeaveTournamentQueue:
		g.handleLeaveTournamentQueue(conn, userID, env.Payload)
	case MsgLeaveTournament:
		g.handleLeaveTournament(conn, socketID, userID)
	case MsgPlayerInput:
		g.handlePlayerInput(conn, socketID, userID, env.Payload)
	case MsgLeaveRoom:
		g.handleLeaveRoom(conn, socketID, userID)
	case MsgPing:
		_ = conn.Send(MsgPong, fiberMap{"timestamp": time.Now().UnixMilli()})
	default:
		_ = conn.Send(MsgError, fiberMap{"error": "unknown message type", "type": env.Type})
	}
}

func (g *GatewayController) handleCreateLocalGame(conn *ClientConn, socketID, userID string) {
	session := g.rooms.CreateLocalGame(userID, services.DefaultGameConfig())
	g.registry.JoinSession(socketID, session.ID)
	g.attachSessionFanout(session)

	_ = conn.Send(MsgRoomCreated, fiberMap{"room_id": session.ID, "mode": session.Mode})
	session.Start()
}

func (g *GatewayController) handleJoinMatchmaking(conn *ClientConn, userID string) {
	if err := g.rooms.AddToMatchmakingQueue(userID); err != nil {
		_ = conn.Send(MsgError, fiberMap{"error": err.Error()})
		return
	}
	_ = conn.Send(MsgMatchmakingSearching, nil)
}

// handleMatchFound attaches both players' sockets to the new room, tells each
// their side, and starts the session.
func (g *GatewayController) handleMatchFound(mf services.MatchFound) {
	session, ok := g.rooms.Room(mf.RoomID)
	if !ok {
		return
	}
	g.attachSessionFanout(session)

	for _, playerID := range []string{mf.Player1, mf.Player2} {
		socketID, ok := g.registry.SocketForUser(playerID)
		if !ok {
			continue
		}
		g.registry.JoinSession(socketID, mf.RoomID)
		conn := g.conn(socketID)
		if conn == nil {
			continue
		}
		position, _ := session.PlayerPosition(playerID)
		opponent := mf.Player1
		if playerID == mf.Player1 {
			opponent = mf.Player2
		}
		_ = conn.Send(MsgMatchFound, fiberMap{
			"room_id":     mf.RoomID,
			"position":    position,
			"opponent_id": opponent,
		})
		_ = conn.Send(MsgPlayerAssigned, fiberMap{"room_id": mf.RoomID, "position": position})
	}

	session.Start()
}

func (g *GatewayController) handleJoinTournamentQueue(conn *ClientConn, userID string, payload json.RawMessage) {
	var req tournamentQueuePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Size == 0 {
		_ = conn.Send(MsgError, fiberMap{"error": "size is required"})
		return
	}

	connInfo, _ := g.registry.Connection(g.socketIDFor(userID))
	bracket, err := g.tournaments.JoinQueue(userID, connInfo.Username, req.Size)
	if err != nil {
		_ = conn.Send(MsgError, fiberMap{"error": err.Error()})
		return
	}
	_ = conn.Send(MsgTournamentQueueJoined, fiberMap{"size": req.Size})

	if bracket != nil {
		state := bracket.State()
		g.broadcastToBracket(bracket.ID, MsgTournamentCreated, state)
	}
}

func (g *GatewayController) handleLeaveTournamentQueue(conn *ClientConn, userID string, payload json.RawMessage) {
	var req tournamentQueuePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Size == 0 {
		_ = conn.Send(MsgError, fiberMap{"error": "size is required"})
		return
	}
	if err := g.tournaments.LeaveQueue(userID, req.Size); err != nil {
		_ = conn.Send(MsgError, fiberMap{"error": err.Error()})
		return
	}
	_ = conn.Send(MsgTournamentQueueLeft, fiberMap{"size": req.Size})
}

func (g *GatewayController) handleLeaveTournament(conn *ClientConn, socketID, userID string) {
	g.tournaments.RemovePlayer(userID, true)
	g.registry.LeaveBracket(socketID)
	_ = conn.Send(MsgLeaveTournament, nil)
}

func (g *GatewayController) handlePlayerInput(conn *ClientConn, socketID, userID string, payload json.RawMessage) {
	var req playerInputPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.Action == "" {
		_ = conn.Send(MsgError, fiberMap{"error": "action is required"})
		return
	}

	connInfo, ok := g.registry.Connection(socketID)
	if !ok || connInfo.SessionID == "" {
		_ = conn.Send(MsgError, fiberMap{"error": "not in a room"})
		return
	}
	session, ok := g.rooms.Room(connInfo.SessionID)
	if !ok {
		_ = conn.Send(MsgError, fiberMap{"error": "room no longer exists"})
		return
	}

	var position services.PlayerPosition
	if session.Mode == services.ModeLocal {
		// A local game is driven end to end by one client, which must say
		// which side each input steers.
		switch req.PlayerPosition {
		case string(services.PositionLeft):
			position = services.PositionLeft
		case string(services.PositionRight):
			position = services.PositionRight
		default:
			_ = conn.Send(MsgError, fiberMap{"error": "playerPosition is required for local games"})
			return
		}
	} else {
		p, err := g.rooms.UserPosition(connInfo.SessionID, userID)
		if err != nil {
			_ = conn.Send(MsgError, fiberMap{"error": err.Error()})
			return
		}
		position = p
	}

	switch services.PaddleAction(req.Action) {
	case services.ActionUp, services.ActionDown, services.ActionStop:
		session.HandleInput(position, services.PaddleAction(req.Action))
	default:
		_ = conn.Send(MsgError, fiberMap{"error": "unknown action", "action": req.Action})
	}
}

func (g *GatewayController) handleLeaveRoom(conn *ClientConn, socketID, userID string) {
	connInfo, ok := g.registry.Connection(socketID)
	if !ok || connInfo.SessionID == "" {
		_ = conn.Send(MsgError, fiberMap{"error": "not in a room"})
		return
	}
	roomID := connInfo.SessionID
	g.forfeitSession(roomID, userID)
	g.registry.LeaveSession(socketID)
	_ = conn.Send(MsgRoomLeft, fiberMap{"room_id": roomID})
}

// forfeitSession ends a user's participation in a room the way its mode
// demands: local rooms are simply torn down, competitive rooms go through the
// disconnect-forfeit path so the opponent wins.
func (g *GatewayController) forfeitSession(roomID, userID string) {
	session, ok := g.rooms.Room(roomID)
	if !ok {
		return
	}
	if session.Mode == services.ModeLocal {
		g.rooms.DeleteRoom(roomID)
		return
	}
	session.HandlePlayerDisconnect(userID)
}

// handleBracketMatchStarting runs just before a tournament session starts:
// fan-out is attached and both players are pointed at their new room.
func (g *GatewayController) handleBracketMatchStarting(bracketID string, match services.BracketMatch, session *services.Session) {
	g.attachSessionFanout(session)

	for _, playerID := range []string{match.Player1ID, match.Player2ID} {
		socketID, ok := g.registry.SocketForUser(playerID)
		if !ok {
			continue
		}
		g.registry.JoinSession(socketID, session.ID)
		conn := g.conn(socketID)
		if conn == nil {
			continue
		}
		position, _ := session.PlayerPosition(playerID)
		_ = conn.Send(MsgMatchFound, fiberMap{
			"room_id":    session.ID,
			"position":   position,
			"bracket_id": bracketID,
			"round":      match.Round,
		})
	}
}

// attachSessionFanout subscribes the broadcast listener that mirrors a
// session's events to every socket in the room.
func (g *GatewayController) attachSessionFanout(session *services.Session) {
	roomID := session.ID
	session.Subscribe(services.SessionListener{
		OnStarted: func(_ string, state services.GameState) {
			g.broadcastToSession(roomID, MsgGameState, fiberMap{"room_id": roomID, "state": state})
		},
		OnStateUpdate: func(update services.StateUpdate) {
			g.broadcastToSession(roomID, MsgStateUpdate, update)
		},
		OnPlayerDisconnected: func(_ string, disconnectedID string) {
			g.broadcastToSession(roomID, MsgPlayerDisconnected, fiberMap{"room_id": roomID, "user_id": disconnectedID})
		},
		OnGameOver: func(result services.GameOver) {
			g.broadcastToSession(roomID, MsgGameOver, result)
			g.finishSession(session, result)
		},
	})
}

// finishSession is the after-game bookkeeping: matchmaking results get
// persisted, non-tournament rooms are deleted, and every socket is detached.
// Tournament rooms are deleted by their bracket when it consumes the result.
func (g *GatewayController) finishSession(session *services.Session, result services.GameOver) {
	if session.Mode == services.ModeMatchmaking {
		g.rooms.RecordMatchResult(result)
	}
	for _, socketID := range g.registry.SocketsInSession(session.ID) {
		g.registry.LeaveSession(socketID)
	}
	if session.Mode != services.ModeTournament {
		g.rooms.DeleteRoom(session.ID)
	}
}

// evictPriorSocket replaces-and-closes the user's previous socket without
// touching their game state: queue spots, live sessions and bracket seats all
// survive a reconnect. Returns the evicted registry entry.
func (g *GatewayController) evictPriorSocket(userID string) (services.Connection, bool) {
	oldID, ok := g.registry.SocketForUser(userID)
	if !ok {
		return services.Connection{}, false
	}
	connInfo, ok := g.registry.Connection(oldID)
	if !ok {
		return services.Connection{}, false
	}

	g.mu.Lock()
	conn := g.conns[oldID]
	delete(g.conns, oldID)
	g.mu.Unlock()

	if conn != nil {
		_ = conn.Send(MsgError, fiberMap{"error": "connection replaced by a newer session"})
		conn.Close()
	}
	g.registry.Remove(oldID)
	log.Printf("[Gateway] ♻️ evicted stale socket %s for user %s", oldID, userID)
	return connInfo, true
}

// cleanupSocket is the one teardown routine for close and error. Claiming the
// conn entry makes it safe against concurrent calls and against a socket that
// was already evicted by a reconnect.
func (g *GatewayController) cleanupSocket(socketID string) {
	g.mu.Lock()
	conn, claimed := g.conns[socketID]
	delete(g.conns, socketID)
	g.mu.Unlock()
	if !claimed {
		return
	}

	connInfo, ok := g.registry.Connection(socketID)
	if !ok {
		conn.Close()
		return
	}

	userID := connInfo.UserID
	log.Printf("[Gateway] 🧹 cleaning up socket %s (user=%s)", socketID, userID)

	if connInfo.SessionID != "" {
		g.forfeitSession(connInfo.SessionID, userID)
	}
	g.rooms.RemoveFromMatchmakingQueue(userID)
	g.tournaments.LeaveAllQueues(userID)
	g.tournaments.RemovePlayer(userID, false)
	g.registry.Remove(socketID)
	conn.Close()
}

func (g *GatewayController) conn(socketID string) *ClientConn {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.conns[socketID]
}

func (g *GatewayController) socketIDFor(userID string) string {
	socketID, _ := g.registry.SocketForUser(userID)
	return socketID
}

func (g *GatewayController) broadcastToSession(sessionID, msgType string, payload interface{}) {
	g.broadcast(g.registry.SocketsInSession(sessionID), msgType, payload)
}

func (g *GatewayController) broadcastToBracket(bracketID, msgType string, payload interface{}) {
	g.broadcast(g.registry.SocketsInBracket(bracketID), msgType, payload)
}

// broadcast sends to each socket; a dead socket is evicted in the background
// and never fails the send loop.
func (g *GatewayController) broadcast(socketIDs []string, msgType string, payload interface{}) {
	for _, socketID := range socketIDs {
		conn := g.conn(socketID)
		if conn == nil {
			continue
		}
		if err := conn.Send(msgType, payload); err != nil {
			log.Printf("[Gateway] ⚠️ send failed on socket %s, evicting: %v", socketID, err)
			go g.cleanupSocket(socketID)
		}
	}
}

// fiberMap mirrors fiber.Map for websocket payloads.
type fiberMap map[string]interface{}
