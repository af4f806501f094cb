package models

// TournamentResult summarizes one finished bracket.
type TournamentResult struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	BracketID string `gorm:"index;not null" json:"bracket_id"`
	Size      int    `gorm:"not null" json:"size"`
	WinnerID  string `gorm:"index;not null" json:"winner_id"`

	// Relationship: one result has many match rows
	Matches []TournamentMatchResult `json:"matches,omitempty" gorm:"foreignKey:ResultID"`

	Timestamps
}

// TournamentMatchResult is one bracket node's outcome.
type TournamentMatchResult struct {
	ID        string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ResultID  string `gorm:"index;not null" json:"result_id"`
	MatchID   string `gorm:"index;not null" json:"match_id"`
	Round     int    `json:"round"`
	Player1ID string `json:"player1_id,omitempty"`
	Player2ID string `json:"player2_id,omitempty"`
	WinnerID  string `json:"winner_id,omitempty"`

	Timestamps
}
