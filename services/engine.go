package services

import (
	"math"
	"math/rand"
)

// PlayerPosition is a match side.
type PlayerPosition string

const (
	PositionLeft  PlayerPosition = "LEFT"
	PositionRight PlayerPosition = "RIGHT"
)

// PaddleAction is a discrete input: paddles move at full speed or not at all.
type PaddleAction string

const (
	ActionUp   PaddleAction = "up"
	ActionDown PaddleAction = "down"
	ActionStop PaddleAction = "stop"
)

type GameStatus string

const (
	StatusWaiting  GameStatus = "waiting"
	StatusPlaying  GameStatus = "playing"
	StatusFinished GameStatus = "finished"
)

// GameConfig holds the canvas geometry and pacing for one match.
type GameConfig struct {
	CanvasWidth  float64 `json:"canvas_width"`
	CanvasHeight float64 `json:"canvas_height"`
	PaddleWidth  float64 `json:"paddle_width"`
	PaddleHeight float64 `json:"paddle_height"`
	PaddleSpeed  float64 `json:"paddle_speed"`
	BallRadius   float64 `json:"ball_radius"`
	BallSpeed    float64 `json:"ball_speed"`
	MaxScore     int     `json:"max_score"`
	FPS          int     `json:"fps"`
}

func DefaultGameConfig() GameConfig {
	return GameConfig{
		CanvasWidth:  800,
		CanvasHeight: 600,
		PaddleWidth:  10,
		PaddleHeight: 100,
		PaddleSpeed:  5,
		BallRadius:   10,
		BallSpeed:    5,
		MaxScore:     5,
		FPS:          60,
	}
}

type Paddle struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Velocity float64 `json:"velocity"` // -1, 0 or 1
	Speed    float64 `json:"speed"`
}

type Ball struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VelocityX float64 `json:"velocity_x"`
	VelocityY float64 `json:"velocity_y"`
	Radius    float64 `json:"radius"`
	Speed     float64 `json:"speed"`
}

// GameState is the full engine state, sent once when a match starts.
type GameState struct {
	Status      GameStatus `json:"status"`
	LeftPaddle  Paddle     `json:"left_paddle"`
	RightPaddle Paddle     `json:"right_paddle"`
	Ball        Ball       `json:"ball"`
	ScoreLeft   int        `json:"score_left"`
	ScoreRight  int        `json:"score_right"`
	Config      GameConfig `json:"config"`
}

// Engine runs the authoritative pong simulation for a single match.
// It carries no locks: a Session goroutine is its only caller.
//
// Movement is integrated per tick, not per elapsed time: paddle and ball
// velocities are applied raw each update, so the simulation is only correct
// at the configured fixed tick rate.
type Engine struct {
	config     GameConfig
	status     GameStatus
	left       Paddle
	right      Paddle
	ball       Ball
	scoreLeft  int
	scoreRight int
	rng        *rand.Rand
}

func NewEngine(config GameConfig, rng *rand.Rand) *Engine {
	e := &Engine{
		config: config,
		status: StatusWaiting,
		rng:    rng,
	}
	e.left = Paddle{
		X:      0,
		Y:      (config.CanvasHeight - config.PaddleHeight) / 2,
		Width:  config.PaddleWidth,
		Height: config.PaddleHeight,
		Speed:  config.PaddleSpeed,
	}
	e.right = Paddle{
		X:      config.CanvasWidth - config.PaddleWidth,
		Y:      (config.CanvasHeight - config.PaddleHeight) / 2,
		Width:  config.PaddleWidth,
		Height: config.PaddleHeight,
		Speed:  config.PaddleSpeed,
	}
	e.ball = Ball{
		X:      config.CanvasWidth / 2,
		Y:      config.CanvasHeight / 2,
		Radius: config.BallRadius,
		Speed:  config.BallSpeed,
	}
	return e
}

func (e *Engine) Status() GameStatus { return e.status }

func (e *Engine) Score(position PlayerPosition) int {
	if position == PositionLeft {
		return e.scoreLeft
	}
	return e.scoreRight
}

// Start puts the engine in play and serves the ball from the center.
func (e *Engine) Start() {
	e.status = StatusPlaying
	e.resetBall()
}

// resetBall recenters the ball and serves it at full base speed, at a random
// angle within ±60° of horizontal, toward a random side.
func (e *Engine) resetBall() {
	cfg := e.config
	e.ball.X = cfg.CanvasWidth / 2
	e.ball.Y = cfg.CanvasHeight / 2
	e.ball.Speed = cfg.BallSpeed

	angle := (e.rng.Float64()*2 - 1) * math.Pi / 3
	direction := 1.0
	if e.rng.Intn(2) == 0 {
		direction = -1.0
	}
	e.ball.VelocityX = direction * cfg.BallSpeed * math.Cos(angle)
	e.ball.VelocityY = cfg.BallSpeed * math.Sin(angle)
}

// HandleInput sets a paddle's velocity from a discrete action.
func (e *Engine) HandleInput(position PlayerPosition, action PaddleAction) {
	paddle := &e.left
	if position == PositionRight {
		paddle = &e.right
	}
	switch action {
	case ActionUp:
		paddle.Velocity = -1
	case ActionDown:
		paddle.Velocity = 1
	case ActionStop:
		paddle.Velocity = 0
	}
}

// Update advances the simulation by one tick. No-op unless playing.
func (e *Engine) Update(delta float64) {
	if e.status != StatusPlaying {
		return
	}

	e.movePaddle(&e.left)
	e.movePaddle(&e.right)
	e.moveBall()
	e.checkPaddleCollision(&e.left)
	e.checkPaddleCollision(&e.right)
	e.checkScore()
}

func (e *Engine) movePaddle(paddle *Paddle) {
	paddle.Y += paddle.Velocity * paddle.Speed
	if paddle.Y < 0 {
		paddle.Y = 0
	}
	if max := e.config.CanvasHeight - paddle.Height; paddle.Y > max {
		paddle.Y = max
	}
}

func (e *Engine) moveBall() {
	ball := &e.ball
	ball.X += ball.VelocityX
	ball.Y += ball.VelocityY

	if ball.Y-ball.Radius <= 0 {
		ball.Y = ball.Radius
		ball.VelocityY = -ball.VelocityY
	} else if ball.Y+ball.Radius >= e.config.CanvasHeight {
		ball.Y = e.config.CanvasHeight - ball.Radius
		ball.VelocityY = -ball.VelocityY
	}
}

// checkPaddleCollision resolves a circle-vs-box overlap against one paddle.
// On contact the horizontal velocity reflects, the vertical velocity is
// recomputed from where the ball struck the paddle, and both components gain
// 5%. The rally acceleration compounds on every hit.
func (e *Engine) checkPaddleCollision(paddle *Paddle) {
	ball := &e.ball

	closestX := clamp(ball.X, paddle.X, paddle.X+paddle.Width)
	closestY := clamp(ball.Y, paddle.Y, paddle.Y+paddle.Height)
	dx := ball.X - closestX
	dy := ball.Y - closestY
	if dx*dx+dy*dy > ball.Radius*ball.Radius {
		return
	}

	// Only bounce a ball travelling into the paddle, so one overlap does not
	// reflect twice across consecutive ticks.
	if paddle.X == 0 && ball.VelocityX > 0 {
		return
	}
	if paddle.X > 0 && ball.VelocityX < 0 {
		return
	}

	hitOffset := clamp((ball.Y-paddle.Y)/paddle.Height, 0, 1)
	ball.VelocityX = -ball.VelocityX
	ball.VelocityY = (hitOffset - 0.5) * e.config.BallSpeed
	ball.VelocityX *= 1.05
	ball.VelocityY *= 1.05
	ball.Speed = math.Hypot(ball.VelocityX, ball.VelocityY)

	// Push the ball flush with the paddle face.
	if paddle.X == 0 {
		ball.X = paddle.X + paddle.Width + ball.Radius
	} else {
		ball.X = paddle.X - ball.Radius
	}
}

// checkScore awards the point when the ball leaves the canvas, resets the
// serve and finishes the match once a side reaches the configured max score.
func (e *Engine) checkScore() {
	ball := &e.ball

	if ball.X-ball.Radius <= 0 {
		e.scoreRight++
	} else if ball.X+ball.Radius >= e.config.CanvasWidth {
		e.scoreLeft++
	} else {
		return
	}

	if e.scoreLeft >= e.config.MaxScore || e.scoreRight >= e.config.MaxScore {
		e.status = StatusFinished
		return
	}
	e.resetBall()
}

// Winner reports the higher-scoring side. Only meaningful once finished.
func (e *Engine) Winner() (PlayerPosition, bool) {
	if e.status != StatusFinished {
		return "", false
	}
	if e.scoreLeft > e.scoreRight {
		return PositionLeft, true
	}
	return PositionRight, true
}

// State returns a copy of the full engine state.
func (e *Engine) State() GameState {
	return GameState{
		Status:      e.status,
		LeftPaddle:  e.left,
		RightPaddle: e.right,
		Ball:        e.ball,
		ScoreLeft:   e.scoreLeft,
		ScoreRight:  e.scoreRight,
		Config:      e.config,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
