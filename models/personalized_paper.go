package models

import "time"

// PersonalizedPaper ist eine persistierte Wochen-Empfehlung für einen Studenten.
// Die Paper-Felder sind ein denormalisierter Snapshot zum Auswahlzeitpunkt, keine
// Live-Referenz auf die papers-Tabelle. Pro (user_id, week_number) existieren
// entweder 0 oder bis zu 3 Zeilen mit eindeutigem relevance_ranking.
type PersonalizedPaper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID     string `json:"user_id" gorm:"index:idx_personalized_user_week;not null"`
	WeekNumber string `json:"week_number" gorm:"index:idx_personalized_user_week;not null"`
	WeekTopic  string `json:"week_topic,omitempty"`

	// Snapshot des ausgewählten Papers
	PaperExternalID string `json:"paper_external_id" gorm:"not null"`
	Title           string `json:"title"`
	Authors         string `json:"authors,omitempty"`
	Abstract        string `json:"abstract,omitempty" gorm:"type:text"`
	TLDR            string `json:"tldr,omitempty" gorm:"type:text"`
	Category        string `json:"category,omitempty"`
	DOI             string `json:"doi,omitempty"`
	OpenAccessURL   string `json:"open_access_url,omitempty"`

	// 1 = relevantestes Paper
	RelevanceRanking int    `json:"relevance_ranking" gorm:"not null"`
	MatchingReason   string `json:"matching_reason" gorm:"type:text"`
}

// TableName gibt explizit den Tabellennamen an.
func (PersonalizedPaper) TableName() string {
	return "personalized_papers"
}
