package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"coursemate/config"
	"coursemate/models"
	"coursemate/providers"
)

// RecommendService orchestriert die personalisierte Paper-Auswahl pro
// (Student, Woche): Kontext sammeln, Modell befragen, Antwort validieren,
// gegen den Pool abgleichen und die alte Auswahl transaktional ersetzen.
type RecommendService struct {
	Config   *config.Config
	DB       *gorm.DB
	Logger   *zap.Logger
	Provider providers.CompletionProvider

	locks *keyedLocks
}

// NewRecommendService erstellt eine neue Instanz des RecommendService.
func NewRecommendService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, provider providers.CompletionProvider) *RecommendService {
	return &RecommendService{
		Config:   cfg,
		DB:       db,
		Logger:   logger,
		Provider: provider,
		locks:    newKeyedLocks(),
	}
}

// recommendationItem ist die erwartete Form eines Eintrags in der Modell-Antwort.
type recommendationItem struct {
	PaperID          string `json:"paperID"`
	RelevanceRanking int    `json:"relevanceRanking"`
	MatchingReason   string `json:"matchingReason"`
}

// Selections gibt die persistierte Auswahl für (userId, week) zurück,
// aufsteigend nach Ranking sortiert.
func (s *RecommendService) Selections(userID, weekNumber string) ([]models.PersonalizedPaper, error) {
	var rows []models.PersonalizedPaper
	err := s.DB.
		Where("user_id = ? AND week_number = ?", userID, weekNumber).
		Order("relevance_ranking asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Generate führt eine komplette Orchestrierung für (userId, week) aus.
// Ohne force wird eine vorhandene Auswahl direkt zurückgegeben, ohne das
// Modell erneut zu befragen. Pro Schlüssel läuft höchstens eine Generierung
// gleichzeitig.
func (s *RecommendService) Generate(ctx context.Context, userID, weekNumber string, force bool) ([]models.PersonalizedPaper, error) {
	lock := s.locks.get(userID + "|" + weekNumber)
	lock.Lock()
	defer lock.Unlock()

	log := s.Logger.With(zap.String("user_id", userID), zap.String("week", weekNumber))

	if !force {
		existing, err := s.Selections(userID, weekNumber)
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			log.Info("Existing selection found, skipping completion call", zap.Int("count", len(existing)))
			return existing, nil
		}
	}

	card, survey, err := s.loadProfile(userID)
	if err != nil {
		return nil, err
	}
	if card == nil && survey == nil {
		return nil, ErrNoProfileData
	}

	var pool []models.Paper
	if err := s.DB.Find(&pool).Error; err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrEmptyPaperPool
	}

	weekContext := ContextForWeek(weekNumber)
	interests := ExtractInterests(card, survey)
	userPrompt := buildRecommendationPrompt(weekContext, interests, pool, s.Config.AbstractCharLimit)

	completionCallsTotal.Inc()
	raw, err := s.Provider.Complete(ctx, recommendSystemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("completion request failed: %w", err)
	}

	items, err := parseRecommendations(raw)
	if err != nil {
		log.Error("Completion response rejected", zap.Error(err))
		return nil, err
	}

	entries, err := s.reconcile(log, items, pool, userID, weekNumber)
	if err != nil {
		return nil, err
	}

	persisted, err := s.replaceSelections(userID, weekNumber, entries)
	if err != nil {
		log.Error("Failed to persist selection", zap.Error(err))
		return nil, err
	}
	recommendationsStoredTotal.Add(float64(len(persisted)))

	sort.Slice(persisted, func(i, j int) bool {
		return persisted[i].RelevanceRanking < persisted[j].RelevanceRanking
	})
	log.Info("Selection regenerated", zap.Int("papers", len(persisted)))
	return persisted, nil
}

// loadProfile lädt Persona-Karte und Survey; beide dürfen fehlen.
func (s *RecommendService) loadProfile(userID string) (*models.PersonaCard, *models.SurveyResponse, error) {
	var card *models.PersonaCard
	var cardRow models.PersonaCard
	err := s.DB.Where("user_id = ?", userID).First(&cardRow).Error
	switch {
	case err == nil:
		card = &cardRow
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, nil, err
	}

	var survey *models.SurveyResponse
	var surveyRow models.SurveyResponse
	err = s.DB.Where("user_id = ?", userID).First(&surveyRow).Error
	switch {
	case err == nil:
		survey = &surveyRow
	case errors.Is(err, gorm.ErrRecordNotFound):
	default:
		return nil, nil, err
	}

	return card, survey, nil
}

// parseRecommendations extrahiert und validiert das JSON-Array der Antwort:
// genau 3 Einträge, Rankings als Permutation von {1,2,3}, distinkte Paper-IDs.
func parseRecommendations(raw string) ([]recommendationItem, error) {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON array in completion text", ErrMalformedCompletion)
	}

	var items []recommendationItem
	if err := json.Unmarshal([]byte(raw[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCompletion, err)
	}
	if len(items) != 3 {
		return nil, fmt.Errorf("%w: expected 3 recommendations, got %d", ErrMalformedCompletion, len(items))
	}

	seenRanks := make(map[int]bool, 3)
	seenIDs := make(map[string]bool, 3)
	for _, it := range items {
		if it.RelevanceRanking < 1 || it.RelevanceRanking > 3 || seenRanks[it.RelevanceRanking] {
			return nil, fmt.Errorf("%w: rankings must be a permutation of 1..3", ErrMalformedCompletion)
		}
		seenRanks[it.RelevanceRanking] = true
		if it.PaperID == "" || seenIDs[it.PaperID] {
			return nil, fmt.Errorf("%w: paper IDs must be non-empty and distinct", ErrMalformedCompletion)
		}
		seenIDs[it.PaperID] = true
	}
	return items, nil
}

// reconcile gleicht die Modell-Auswahl gegen den Pool-Snapshot ab. Unbekannte
// IDs führen im Strict-Modus zum Abbruch, sonst wird der Eintrag mit Warnung
// verworfen und die Auswahl schrumpft unter 3.
func (s *RecommendService) reconcile(log *zap.Logger, items []recommendationItem, pool []models.Paper, userID, weekNumber string) ([]models.PersonalizedPaper, error) {
	byID := make(map[string]models.Paper, len(pool))
	for _, p := range pool {
		byID[p.ExternalID] = p
	}

	weekTopic := WeekTopic(weekNumber)
	entries := make([]models.PersonalizedPaper, 0, len(items))
	for _, it := range items {
		paper, ok := byID[it.PaperID]
		if !ok {
			if s.Config.RecommendStrict {
				return nil, fmt.Errorf("%w: %s", ErrUnknownPaper, it.PaperID)
			}
			droppedSelectionsTotal.Inc()
			log.Warn("Dropping recommendation with unknown paper ID", zap.String("paper_id", it.PaperID))
			continue
		}
		entries = append(entries, models.PersonalizedPaper{
			UserID:           userID,
			WeekNumber:       weekNumber,
			WeekTopic:        weekTopic,
			PaperExternalID:  paper.ExternalID,
			Title:            paper.Title,
			Authors:          paper.Authors,
			Abstract:         paper.Abstract,
			TLDR:             paper.TLDR,
			Category:         paper.Category,
			DOI:              paper.DOI,
			OpenAccessURL:    paper.OpenAccessURL,
			RelevanceRanking: it.RelevanceRanking,
			MatchingReason:   it.MatchingReason,
		})
	}
	return entries, nil
}

// replaceSelections ersetzt die Auswahl für (userId, week) in einer Transaktion:
// Delete und Insert committen gemeinsam, ein fehlgeschlagener Insert rollt den
// Delete zurück.
func (s *RecommendService) replaceSelections(userID, weekNumber string, entries []models.PersonalizedPaper) ([]models.PersonalizedPaper, error) {
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND week_number = ?", userID, weekNumber).
			Delete(&models.PersonalizedPaper{}).Error; err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return tx.Create(&entries).Error
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// WeekGeneration ist das Ergebnis einer Woche im "alle Wochen"-Durchlauf.
type WeekGeneration struct {
	WeekNumber string                     `json:"week_number"`
	WeekTopic  string                     `json:"week_topic"`
	Papers     []models.PersonalizedPaper `json:"papers"`
	Error      string                     `json:"error,omitempty"`
}

// GenerateAllWeeks orchestriert alle Kurswochen nacheinander für einen
// Studenten, jeweils ohne force. Fehler einzelner Wochen brechen den
// Durchlauf nicht ab, sondern landen im Ergebnis.
func (s *RecommendService) GenerateAllWeeks(ctx context.Context, userID string) []WeekGeneration {
	weeks := SyllabusWeeks()
	results := make([]WeekGeneration, 0, len(weeks))
	for _, w := range weeks {
		res := WeekGeneration{WeekNumber: w.WeekNumber, WeekTopic: w.Topic}
		papers, err := s.Generate(ctx, userID, w.WeekNumber, false)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.Papers = papers
		}
		results = append(results, res)
	}
	return results
}

// PregenerateWeek generiert die Auswahl der gegebenen Woche für alle Studenten
// mit Survey, jeweils ohne force (vorhandene Auswahlen bleiben unberührt).
// Wird vom Cron-Sweep aufgerufen; gibt die Zahl erfolgreicher Generierungen zurück.
func (s *RecommendService) PregenerateWeek(ctx context.Context, weekNumber string) (int, error) {
	var surveys []models.SurveyResponse
	if err := s.DB.Find(&surveys).Error; err != nil {
		return 0, err
	}

	generated := 0
	for _, sv := range surveys {
		if _, err := s.Generate(ctx, sv.UserID, weekNumber, false); err != nil {
			s.Logger.Error("Pregeneration failed for user",
				zap.String("user_id", sv.UserID),
				zap.String("week", weekNumber),
				zap.Error(err))
			continue
		}
		generated++
	}
	return generated, nil
}
