package services

import (
	"fmt"

	"gorm.io/gorm"

	"pong-session-service/models"
)

// ResultRecorder persists finished match and tournament summaries. Recording
// is fire-and-forget: callers log failures and keep going, so implementations
// must never be load-bearing for gameplay.
type ResultRecorder interface {
	RecordMatch(result GameOver) error
	RecordTournament(state BracketState) error
}

// GormResultRecorder writes summaries to postgres.
type GormResultRecorder struct {
	DB *gorm.DB
}

func NewGormResultRecorder(db *gorm.DB) *GormResultRecorder {
	return &GormResultRecorder{DB: db}
}

func (r *GormResultRecorder) RecordMatch(result GameOver) error {
	row := models.MatchResult{
		RoomID:     result.RoomID,
		WinnerID:   result.WinnerID,
		LoserID:    result.LoserID,
		ScoreLeft:  result.ScoreLeft,
		ScoreRight: result.ScoreRight,
		Forfeit:    result.Forfeit,
	}
	if err := r.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save match result: %w", err)
	}
	return nil
}

func (r *GormResultRecorder) RecordTournament(state BracketState) error {
	row := models.TournamentResult{
		BracketID: state.ID,
		Size:      state.Size,
		WinnerID:  state.WinnerID,
	}
	for _, round := range state.Rounds {
		for _, m := range round.Matches {
			row.Matches = append(row.Matches, models.TournamentMatchResult{
				MatchID:   m.ID,
				Round:     m.Round,
				Player1ID: m.Player1ID,
				Player2ID: m.Player2ID,
				WinnerID:  m.WinnerID,
			})
		}
	}
	if err := r.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to save tournament result: %w", err)
	}
	return nil
}
