package services

import (
	"fmt"
	"strings"

	"coursemate/models"
)

const recommendSystemPrompt = "You are a reading advisor for a university seminar. " +
	"You match students to papers from a fixed candidate pool based on their profile and the week's topic. " +
	"You must select papers only from the provided candidate list, using their exact IDs. " +
	"Respond strictly with a JSON array and nothing else: " +
	`[{"paperID": "...", "relevanceRanking": 1, "matchingReason": "..."}, ...]. ` +
	"Select exactly 3 papers. relevanceRanking 1 is the most relevant, 3 the least. " +
	"Each matchingReason must explain in one or two sentences why this paper fits this student this week."

const personaSystemPrompt = "You are helping a course instructor turn a student's onboarding survey into a short persona card. " +
	"Respond strictly with a single JSON object and nothing else: " +
	`{"displayName": "...", "bio": "...", "researchInterest": "...", "learningGoal": "...", "tags": ["...", "..."]}. ` +
	"The bio is 2-3 friendly sentences in third person. Tags are 3-5 short lowercase keywords. " +
	"Stay faithful to the survey; do not invent credentials."

const interviewSystemPrompt = "You are an interview bot for a university seminar on AI and society. " +
	"You interview one student at a time to help them reflect on their interests and goals. " +
	"Ask one thoughtful follow-up question per turn, grounded in what the student has said so far. " +
	"Keep your replies short and conversational."

// truncate kürzt Abstracts, damit der Prompt nicht explodiert.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// buildRecommendationPrompt baut den User-Prompt aus Wochenkontext, Interessen
// und dem nummerierten Kandidaten-Pool.
func buildRecommendationPrompt(weekContext, interests string, pool []models.Paper, abstractLimit int) string {
	var b strings.Builder

	b.WriteString("## Course context for this week\n")
	b.WriteString(weekContext)
	b.WriteString("\n\n## Student profile\n")
	b.WriteString(interests)
	b.WriteString("\n\n## Candidate papers\n")

	for i, p := range pool {
		fmt.Fprintf(&b, "%d. [%s] %s", i+1, p.ExternalID, p.Title)
		if p.Authors != "" {
			fmt.Fprintf(&b, " (%s)", p.Authors)
		}
		b.WriteString("\n")
		if p.TLDR != "" {
			fmt.Fprintf(&b, "   TLDR: %s\n", truncate(p.TLDR, abstractLimit))
		} else if p.Abstract != "" {
			fmt.Fprintf(&b, "   Abstract: %s\n", truncate(p.Abstract, abstractLimit))
		}
	}

	b.WriteString("\nSelect exactly 3 papers for this student and this week.")
	return b.String()
}

// buildPersonaPrompt serialisiert die Survey-Antworten für die Persona-Generierung.
func buildPersonaPrompt(survey *models.SurveyResponse) string {
	return fmt.Sprintf(
		"Survey answers:\nNickname: %s\nAcademic background: %s\nResearch interests: %s\nRecent readings: %s\nClass goals: %s\nDiscussion style: %s\n\nGenerate the persona card JSON.",
		survey.Nickname,
		survey.AcademicBackground,
		survey.ResearchInterests,
		survey.RecentReadings,
		survey.ClassGoals,
		survey.DiscussionStyle,
	)
}

// buildInterviewPrompt baut den Gesprächsverlauf als Transkript für den Provider.
func buildInterviewPrompt(topic, interests string, history []models.InterviewMessage) string {
	var b strings.Builder

	if topic != "" {
		fmt.Fprintf(&b, "Interview topic: %s\n\n", topic)
	}
	if interests != "" {
		b.WriteString("What we know about the student:\n")
		b.WriteString(interests)
		b.WriteString("\n\n")
	}
	b.WriteString("Transcript so far:\n")
	for _, m := range history {
		role := "Student"
		if m.Role == "assistant" {
			role = "Interviewer"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	b.WriteString("\nReply as the interviewer.")
	return b.String()
}
