package models

import (
	"time"

	"gorm.io/gorm"
)

// MatchResult records one finished matchmaking game.
type MatchResult struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	RoomID     string `gorm:"index;not null" json:"room_id"`
	WinnerID   string `gorm:"index;not null" json:"winner_id"`
	LoserID    string `gorm:"index;not null" json:"loser_id"`
	ScoreLeft  int    `json:"score_left"`
	ScoreRight int    `json:"score_right"`
	Forfeit    bool   `gorm:"default:false" json:"forfeit"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
