package services

import (
	"fmt"
	"strings"

	"coursemate/models"
)

// Floskeln, die aus den Freitextfeldern entfernt werden, bevor sie in den
// Prompt wandern. Reine Ich-Formulierungen tragen keine Information.
var preferencePhrases = []string{
	"i like ",
	"i enjoy ",
	"i love ",
	"i am interested in ",
	"i'm interested in ",
}

func cleanInterestText(s string) string {
	s = strings.TrimSpace(s)
	for _, phrase := range preferencePhrases {
		for {
			idx := strings.Index(strings.ToLower(s), phrase)
			if idx < 0 {
				break
			}
			s = s[:idx] + s[idx+len(phrase):]
		}
	}
	return strings.TrimSpace(s)
}

// pick bevorzugt den Karten-Wert, fällt auf den Survey-Wert zurück.
func pick(cardValue, surveyValue string) string {
	if strings.TrimSpace(cardValue) != "" {
		return cardValue
	}
	return surveyValue
}

// ExtractInterests fasst Persona-Karte und Survey zu einem normalisierten
// Interessen-Block für den Prompt zusammen. Beide Eingaben dürfen nil sein;
// fehlende Felder bleiben leer. Deterministisch, keine Seiteneffekte.
func ExtractInterests(card *models.PersonaCard, survey *models.SurveyResponse) string {
	var background, interest, reading, goal string

	if card != nil {
		background = card.AcademicBackground
		interest = card.ResearchInterest
		reading = card.RecentReading
		goal = card.LearningGoal
	}
	if survey != nil {
		background = pick(background, survey.AcademicBackground)
		interest = pick(interest, survey.ResearchInterests)
		reading = pick(reading, survey.RecentReadings)
		goal = pick(goal, survey.ClassGoals)
	}

	return fmt.Sprintf(
		"Academic background: %s\nResearch interests: %s\nRecent readings: %s\nLearning goals: %s",
		cleanInterestText(background),
		cleanInterestText(interest),
		cleanInterestText(reading),
		cleanInterestText(goal),
	)
}
