package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursemate/config"
	"coursemate/models"
	"coursemate/providers"
)

// AvatarPalette sind die wählbaren Avatar-Farben des Frontends.
var AvatarPalette = []string{"coral", "amber", "mint", "sky", "lavender", "rose", "slate", "sand"}

// IsAllowedAvatarColor prüft, ob eine Farbe in der Palette liegt.
func IsAllowedAvatarColor(color string) bool {
	for _, c := range AvatarPalette {
		if c == color {
			return true
		}
	}
	return false
}

// PersonaService erzeugt und pflegt Persona-Karten aus den Survey-Antworten.
type PersonaService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Provider providers.CompletionProvider
}

// NewPersonaService erstellt eine neue Instanz des PersonaService.
func NewPersonaService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, provider providers.CompletionProvider) *PersonaService {
	return &PersonaService{Config: cfg, DB: db, Logger: logger, Provider: provider}
}

// personaPayload ist die erwartete Form der Modell-Antwort.
type personaPayload struct {
	DisplayName      string   `json:"displayName"`
	Bio              string   `json:"bio"`
	ResearchInterest string   `json:"researchInterest"`
	LearningGoal     string   `json:"learningGoal"`
	Tags             []string `json:"tags"`
}

// GeneratePersona erzeugt die Persona-Karte eines Studenten aus seiner Survey
// und upsertet sie. Eine erneute Generierung überschreibt die KI-Felder,
// behält aber Avatar-Farbe und -Bild.
func (s *PersonaService) GeneratePersona(ctx context.Context, userID string) (*models.PersonaCard, error) {
	var survey models.SurveyResponse
	if err := s.DB.Where("user_id = ?", userID).First(&survey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoProfileData
		}
		return nil, err
	}

	completionCallsTotal.Inc()
	raw, err := s.Provider.Complete(ctx, personaSystemPrompt, buildPersonaPrompt(&survey))
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	payload, err := parsePersona(raw)
	if err != nil {
		s.Logger.Error("Persona completion rejected", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	tags, err := json.Marshal(payload.Tags)
	if err != nil {
		return nil, err
	}

	card := models.PersonaCard{
		UserID:             userID,
		DisplayName:        payload.DisplayName,
		AcademicBackground: survey.AcademicBackground,
		ResearchInterest:   payload.ResearchInterest,
		RecentReading:      survey.RecentReadings,
		LearningGoal:       payload.LearningGoal,
		DiscussionStyle:    survey.DiscussionStyle,
		Bio:                payload.Bio,
		Tags:               tags,
		AvatarColor:        survey.AvatarColor,
	}

	updateColumns := []string{
		"display_name", "academic_background", "research_interest",
		"recent_reading", "learning_goal", "discussion_style", "bio", "tags",
	}
	err = s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
	}).Create(&card).Error
	if err != nil {
		return nil, err
	}

	s.Logger.Info("Persona card generated", zap.String("user_id", userID), zap.String("display_name", card.DisplayName))
	return &card, nil
}

// parsePersona extrahiert das JSON-Objekt aus der Modell-Antwort.
func parsePersona(raw string) (*personaPayload, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in completion text", ErrMalformedCompletion)
	}

	var payload personaPayload
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	if strings.TrimSpace(payload.DisplayName) == "" {
		return nil, fmt.Errorf("%w: displayName missing", ErrMalformedCompletion)
	}
	return &payload, nil
}
