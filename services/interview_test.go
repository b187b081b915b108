package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coursemate/models"
)

func TestInterviewTurnPersistsBothMessages(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Create(&models.SurveyResponse{
		UserID:            "u1",
		ResearchInterests: "privacy",
	}).Error)

	provider := &fakeProvider{responses: []string{"Why does privacy interest you?"}}
	svc := NewInterviewService(db, zap.NewNop(), provider)

	session, err := svc.StartSession("u1", "research interests")
	require.NoError(t, err)
	require.NotEmpty(t, session.SessionID)

	reply, err := svc.SendMessage(context.Background(), session.SessionID, "Hi, I study privacy.")
	require.NoError(t, err)
	assert.Equal(t, "assistant", reply.Role)
	assert.Equal(t, "Why does privacy interest you?", reply.Content)

	messages, err := svc.Transcript(session.SessionID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)

	// Profilkontext und Verlauf landen im Prompt
	assert.Contains(t, provider.lastUserPrompt, "privacy")
	assert.Contains(t, provider.lastUserPrompt, "Student: Hi, I study privacy.")
	assert.Contains(t, provider.lastUserPrompt, "Interview topic: research interests")
}

func TestInterviewUnknownSession(t *testing.T) {
	db := newTestDB(t)
	provider := &fakeProvider{responses: []string{"unused"}}
	svc := NewInterviewService(db, zap.NewNop(), provider)

	_, err := svc.SendMessage(context.Background(), "nope", "hello")
	require.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Transcript("nope")
	require.ErrorIs(t, err, ErrSessionNotFound)
}
