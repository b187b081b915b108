package models

import "time"

// InterviewSession ist eine Unterhaltung zwischen Student und Interview-Bot.
type InterviewSession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SessionID string `json:"session_id" gorm:"uniqueIndex;not null"`
	UserID    string `json:"user_id" gorm:"index;not null"`
	Topic     string `json:"topic,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (InterviewSession) TableName() string {
	return "interview_sessions"
}

// InterviewMessage ist ein einzelner Turn innerhalb einer Session.
type InterviewMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SessionID string `json:"session_id" gorm:"index;not null"`
	Role      string `json:"role" gorm:"not null"` // "user" oder "assistant"
	Content   string `json:"content" gorm:"type:text;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (InterviewMessage) TableName() string {
	return "interview_messages"
}
