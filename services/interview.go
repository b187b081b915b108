package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"coursemate/models"
	"coursemate/providers"
)

// InterviewService führt die Bot-Interviews: Sessions anlegen, Turns
// persistieren und den Gesprächsverlauf ans Modell durchreichen.
type InterviewService struct {
	DB       *gorm.DB
	Logger   *zap.Logger
	Provider providers.CompletionProvider
}

// NewInterviewService erstellt eine neue Instanz des InterviewService.
func NewInterviewService(db *gorm.DB, logger *zap.Logger, provider providers.CompletionProvider) *InterviewService {
	return &InterviewService{DB: db, Logger: logger, Provider: provider}
}

// StartSession legt eine neue Interview-Session für einen Studenten an.
func (s *InterviewService) StartSession(userID, topic string) (*models.InterviewSession, error) {
	session := models.InterviewSession{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Topic:     topic,
	}
	if err := s.DB.Create(&session).Error; err != nil {
		return nil, err
	}
	s.Logger.Info("Interview session started",
		zap.String("session_id", session.SessionID),
		zap.String("user_id", userID))
	return &session, nil
}

// Transcript gibt alle Nachrichten einer Session in Reihenfolge zurück.
func (s *InterviewService) Transcript(sessionID string) ([]models.InterviewMessage, error) {
	if _, err := s.session(sessionID); err != nil {
		return nil, err
	}
	var messages []models.InterviewMessage
	err := s.DB.Where("session_id = ?", sessionID).Order("id asc").Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage persistiert den Studenten-Turn, befragt das Modell mit dem
// vollständigen Verlauf und persistiert die Antwort.
func (s *InterviewService) SendMessage(ctx context.Context, sessionID, content string) (*models.InterviewMessage, error) {
	session, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}

	userMsg := models.InterviewMessage{SessionID: sessionID, Role: "user", Content: content}
	if err := s.DB.Create(&userMsg).Error; err != nil {
		return nil, err
	}

	var history []models.InterviewMessage
	if err := s.DB.Where("session_id = ?", sessionID).Order("id asc").Find(&history).Error; err != nil {
		return nil, err
	}

	// Profilkontext ist optional; ohne Karte/Survey interviewt der Bot blind.
	interests := ""
	var card models.PersonaCard
	cardErr := s.DB.Where("user_id = ?", session.UserID).First(&card).Error
	var survey models.SurveyResponse
	surveyErr := s.DB.Where("user_id = ?", session.UserID).First(&survey).Error
	if cardErr == nil || surveyErr == nil {
		var cardPtr *models.PersonaCard
		var surveyPtr *models.SurveyResponse
		if cardErr == nil {
			cardPtr = &card
		}
		if surveyErr == nil {
			surveyPtr = &survey
		}
		interests = ExtractInterests(cardPtr, surveyPtr)
	}

	completionCallsTotal.Inc()
	reply, err := s.Provider.Complete(ctx, interviewSystemPrompt, buildInterviewPrompt(session.Topic, interests, history))
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	assistantMsg := models.InterviewMessage{SessionID: sessionID, Role: "assistant", Content: reply}
	if err := s.DB.Create(&assistantMsg).Error; err != nil {
		return nil, err
	}
	return &assistantMsg, nil
}

func (s *InterviewService) session(sessionID string) (*models.InterviewSession, error) {
	var session models.InterviewSession
	if err := s.DB.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}
