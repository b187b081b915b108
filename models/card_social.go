package models

import "time"

// CardComment ist ein Kommentar unter einer Persona-Karte im Square.
type CardComment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	CardUserID   string `json:"card_user_id" gorm:"index;not null"`
	AuthorUserID string `json:"author_user_id" gorm:"not null"`
	AuthorName   string `json:"author_name,omitempty"`
	Content      string `json:"content" gorm:"type:text;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (CardComment) TableName() string {
	return "card_comments"
}

// CardReaction ist eine Emoji-Reaktion auf eine Persona-Karte. Ein erneutes
// Posten derselben Reaktion entfernt sie wieder (Toggle).
type CardReaction struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	CardUserID   string `json:"card_user_id" gorm:"index:idx_card_reactions_unique,unique;not null"`
	AuthorUserID string `json:"author_user_id" gorm:"index:idx_card_reactions_unique,unique;not null"`
	Emoji        string `json:"emoji" gorm:"index:idx_card_reactions_unique,unique;size:16;not null"`
}

// TableName gibt explizit den Tabellennamen an.
func (CardReaction) TableName() string {
	return "card_reactions"
}
