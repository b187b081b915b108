package models

import (
	"time"

	"gorm.io/datatypes"
)

// PersonaCard ist die KI-generierte, danach editierbare Persona eines Studenten.
// Sie wird aus der SurveyResponse erzeugt und im "Square" öffentlich angezeigt.
type PersonaCard struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID      string `json:"user_id" gorm:"uniqueIndex;not null"`
	DisplayName string `json:"display_name"`

	AcademicBackground string `json:"academic_background,omitempty" gorm:"type:text"`
	ResearchInterest   string `json:"research_interest,omitempty" gorm:"type:text"`
	RecentReading      string `json:"recent_reading,omitempty" gorm:"type:text"`
	LearningGoal       string `json:"learning_goal,omitempty" gorm:"type:text"`
	DiscussionStyle    string `json:"discussion_style,omitempty"`

	Bio  string         `json:"bio,omitempty" gorm:"type:text"`
	Tags datatypes.JSON `json:"tags,omitempty" gorm:"type:jsonb"`

	AvatarColor string `json:"avatar_color,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (PersonaCard) TableName() string {
	return "persona_cards"
}
