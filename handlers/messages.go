package handlers

import "encoding/json"

// Client→server message types.
const (
	MsgCreateLocalGame      = "CREATE_LOCAL_GAME"
	MsgJoinMatchmaking      = "JOIN_MATCHMAKING"
	MsgLeaveMatchmaking     = "LEAVE_MATCHMAKING"
	MsgJoinTournamentQueue  = "JOIN_TOURNAMENT_QUEUE"
	MsgLeaveTournamentQueue = "LEAVE_TOURNAMENT_QUEUE"
	MsgLeaveTournament      = "LEAVE_TOURNAMENT"
	MsgPlayerInput          = "PLAYER_INPUT"
	MsgLeaveRoom            = "LEAVE_ROOM"
	MsgPing                 = "PING"
)

// Server→client message types.
const (
	MsgConnected             = "CONNECTED"
	MsgError                 = "ERROR"
	MsgPong                  = "PONG"
	MsgRoomCreated           = "ROOM_CREATED"
	MsgRoomLeft              = "ROOM_LEFT"
	MsgPlayerAssigned        = "PLAYER_ASSIGNED"
	MsgPlayerDisconnected    = "PLAYER_DISCONNECTED"
	MsgMatchmakingSearching  = "MATCHMAKING_SEARCHING"
	MsgMatchFound            = "MATCH_FOUND"
	MsgGameState             = "GAME_STATE"
	MsgStateUpdate           = "STATE_UPDATE"
	MsgGameOver              = "GAME_OVER"
	MsgTournamentCreated     = "TOURNAMENT_CREATED"
	MsgTournamentState       = "TOURNAMENT_STATE"
	MsgTournamentQueueJoined = "TOURNAMENT_QUEUE_JOINED"
	MsgTournamentQueueLeft   = "TOURNAMENT_QUEUE_LEFT"
)

// Envelope is the wire frame: a type tag plus an optional payload object.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type playerInputPayload struct {
	Action         string `json:"action"`
	PlayerPosition string `json:"playerPosition,omitempty"`
}

type tournamentQueuePayload struct {
	Size int `json:"size"`
}
