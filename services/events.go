package services

import "time"

// StateUpdate is the compact per-tick snapshot broadcast to a room.
type StateUpdate struct {
	RoomID       string  `json:"room_id"`
	ScoreLeft    int     `json:"score_left"`
	ScoreRight   int     `json:"score_right"`
	LeftPaddleY  float64 `json:"left_paddle_y"`
	RightPaddleY float64 `json:"right_paddle_y"`
	BallX        float64 `json:"ball_x"`
	BallY        float64 `json:"ball_y"`
	Timestamp    int64   `json:"timestamp"`
}

// GameOver describes how a match ended, by play or by forfeit.
type GameOver struct {
	RoomID         string         `json:"room_id"`
	WinnerPosition PlayerPosition `json:"winner_position"`
	WinnerID       string         `json:"winner_id"`
	LoserID        string         `json:"loser_id"`
	ScoreLeft      int            `json:"score_left"`
	ScoreRight     int            `json:"score_right"`
	Forfeit        bool           `json:"forfeit"`
}

// SessionListener receives a session's lifecycle events. Callbacks run on the
// session's own goroutine and must not block; nil fields are skipped.
type SessionListener struct {
	OnStarted            func(roomID string, state GameState)
	OnStateUpdate        func(update StateUpdate)
	OnGameOver           func(result GameOver)
	OnPlayerDisconnected func(roomID, userID string)
}

// MatchFound notifies two queued players they have been paired.
type MatchFound struct {
	RoomID  string `json:"room_id"`
	Player1 string `json:"player1_id"`
	Player2 string `json:"player2_id"`
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}
