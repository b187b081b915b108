package services

import "fmt"

// CourseWeek beschreibt eine Kurswoche für Syllabus und Prompt-Grounding.
// Die Tabelle ist redaktionell gepflegt und bewusst im Code statt in der DB.
type CourseWeek struct {
	WeekNumber  string `json:"week_number"`
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Goals       string `json:"goals"`
}

var courseWeeks = []CourseWeek{
	{
		WeekNumber:  "1",
		Topic:       "Foundations of Machine Learning",
		Description: "What machine learning systems are, how they are trained, and where their behavior comes from.",
		Goals:       "Build a shared technical vocabulary; understand training data, objectives, and generalization.",
	},
	{
		WeekNumber:  "2",
		Topic:       "Datasets and Representation",
		Description: "How datasets are collected and curated, and how representation gaps shape model behavior.",
		Goals:       "Critically assess dataset provenance; connect sampling decisions to downstream harms.",
	},
	{
		WeekNumber:  "3",
		Topic:       "Algorithmic Bias and Fairness",
		Description: "Formal fairness definitions, their incompatibilities, and bias in deployed decision systems.",
		Goals:       "Compare fairness metrics; analyze a real-world case of a biased decision system.",
	},
	{
		WeekNumber:  "4",
		Topic:       "Explainability and Transparency",
		Description: "Interpretability methods, their limits, and the role of explanation in accountability.",
		Goals:       "Distinguish intrinsic and post-hoc explanations; evaluate when an explanation is good enough.",
	},
	{
		WeekNumber:  "5",
		Topic:       "Privacy and Surveillance",
		Description: "Data collection at scale, inference attacks, and the surveillance economics behind modern ML.",
		Goals:       "Reason about privacy threat models; discuss technical and regulatory mitigations.",
	},
	{
		WeekNumber:  "6",
		Topic:       "AI and the Future of Work",
		Description: "Automation, augmentation, and how algorithmic management changes labor.",
		Goals:       "Weigh displacement against augmentation evidence; examine algorithmic hiring and gig platforms.",
	},
	{
		WeekNumber:  "7",
		Topic:       "Governance and Regulation",
		Description: "Emerging AI regulation, standards, and institutional oversight mechanisms.",
		Goals:       "Map the regulatory landscape; argue for or against specific governance proposals.",
	},
	{
		WeekNumber:  "8",
		Topic:       "Human-AI Collaboration",
		Description: "Interaction design for AI systems, appropriate reliance, and collaborative workflows.",
		Goals:       "Analyze trust calibration; design a human-in-the-loop workflow for a concrete task.",
	},
}

// SyllabusWeeks gibt alle Kurswochen in Reihenfolge zurück.
func SyllabusWeeks() []CourseWeek {
	out := make([]CourseWeek, len(courseWeeks))
	copy(out, courseWeeks)
	return out
}

// WeekTopic gibt das Thema einer Woche zurück, "Unknown" wenn die Woche nicht existiert.
func WeekTopic(weekNumber string) string {
	for _, w := range courseWeeks {
		if w.WeekNumber == weekNumber {
			return w.Topic
		}
	}
	return "Unknown"
}

// ContextForWeek baut den Kontextblock für den Prompt. Unbekannte Wochen
// liefern bewusst einen Platzhalter statt eines Fehlers, damit die Generierung
// auch bei veralteten Wochen-Keys weiterläuft.
func ContextForWeek(weekNumber string) string {
	for _, w := range courseWeeks {
		if w.WeekNumber == weekNumber {
			return fmt.Sprintf("Week %s: %s\n%s\nLearning goals: %s",
				w.WeekNumber, w.Topic, w.Description, w.Goals)
		}
	}
	return fmt.Sprintf("Week %s: Unknown\nDescription: Unknown\nLearning goals: Unknown", weekNumber)
}
