package models

import "time"

// SurveyResponse speichert den Onboarding-Fragebogen eines Studenten.
type SurveyResponse struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID   string `json:"user_id" gorm:"uniqueIndex;not null"`
	Nickname string `json:"nickname,omitempty"`

	AcademicBackground string `json:"academic_background,omitempty" gorm:"type:text"`
	ResearchInterests  string `json:"research_interests,omitempty" gorm:"type:text"`
	RecentReadings     string `json:"recent_readings,omitempty" gorm:"type:text"`
	ClassGoals         string `json:"class_goals,omitempty" gorm:"type:text"`
	DiscussionStyle    string `json:"discussion_style,omitempty"`

	// Gewählte Avatar-Farbe aus der festen Palette
	AvatarColor string `json:"avatar_color,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (SurveyResponse) TableName() string {
	return "survey_responses"
}
