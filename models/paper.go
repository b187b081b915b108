package models

import (
	"time"

	"gorm.io/datatypes"
)

// Paper repräsentiert ein Paper aus dem Kurs-Pool inklusive Metadaten.
// Die Zeilen werden von einem separaten Ingest-Prozess (cmd/ingest) angelegt
// und vom Service nur gelesen.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Externe, stabile Kennung (z.B. "P17"), Schlüssel für die Reconciliation
	ExternalID string `json:"external_id" gorm:"uniqueIndex;not null"`

	Title    string `json:"title" gorm:"not null"`
	Authors  string `json:"authors,omitempty"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	TLDR     string `json:"tldr,omitempty" gorm:"type:text"`

	Topics   datatypes.JSON `json:"topics,omitempty" gorm:"type:jsonb"`
	Category string         `json:"category,omitempty" gorm:"index"`

	DOI           string `json:"doi,omitempty"`
	OpenAccessURL string `json:"open_access_url,omitempty"`
}

// TableName gibt explizit den Tabellennamen an.
func (Paper) TableName() string {
	return "papers"
}
