package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"coursemate/config"
	"coursemate/models"
)

// fakeProvider zählt Aufrufe und liefert vorgegebene Antworten.
type fakeProvider struct {
	calls          int
	responses      []string
	err            error
	lastUserPrompt string
}

func (f *fakeProvider) Complete(_ context.Context, _ string, userPrompt string) (string, error) {
	f.calls++
	f.lastUserPrompt = userPrompt
	if f.err != nil {
		return "", f.err
	}
	idx := f.calls - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx], nil
}

func (f *fakeProvider) Name() string { return "fake" }

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Paper{},
		&models.PersonalizedPaper{},
		&models.SurveyResponse{},
		&models.PersonaCard{},
		&models.InterviewSession{},
		&models.InterviewMessage{},
	))
	return db
}

func testConfig() *config.Config {
	return &config.Config{
		AbstractCharLimit: 500,
		RecommendStrict:   false,
	}
}

func seedPool(t *testing.T, db *gorm.DB, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		paper := models.Paper{
			ExternalID: fmt.Sprintf("P%d", i),
			Title:      fmt.Sprintf("Paper %d", i),
			Authors:    "Doe, J.",
			Abstract:   fmt.Sprintf("Abstract of paper %d.", i),
			Category:   "fairness",
		}
		require.NoError(t, db.Create(&paper).Error)
	}
}

func seedSurvey(t *testing.T, db *gorm.DB, userID string) {
	t.Helper()
	survey := models.SurveyResponse{
		UserID:            userID,
		ResearchInterests: "bias in hiring algorithms",
		ClassGoals:        "understand fairness metrics",
	}
	require.NoError(t, db.Create(&survey).Error)
}

func recJSON(entries ...[2]interface{}) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, fmt.Sprintf(
			`{"paperID":%q,"relevanceRanking":%d,"matchingReason":"fits the student"}`,
			e[0], e[1]))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func newService(db *gorm.DB, cfg *config.Config, provider *fakeProvider) *RecommendService {
	return NewRecommendService(cfg, db, zap.NewNop(), provider)
}

func TestGenerateIdempotentWithoutForce(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	first, err := svc.Generate(context.Background(), "u1", "3", false)
	require.NoError(t, err)
	require.Len(t, first, 3)

	second, err := svc.Generate(context.Background(), "u1", "3", false)
	require.NoError(t, err)
	require.Len(t, second, 3)

	assert.Equal(t, 1, provider.calls, "second non-forced call must not hit the provider")
	for i := range first {
		assert.Equal(t, first[i].PaperExternalID, second[i].PaperExternalID)
		assert.Equal(t, first[i].RelevanceRanking, second[i].RelevanceRanking)
	}
}

func TestGeneratePersistsExactlyThreeWithRankSet(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P4", 2}, [2]interface{}{"P1", 1}, [2]interface{}{"P5", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "u1", "2", false)
	require.NoError(t, err)

	rows, err := svc.Selections("u1", "2")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	ranks := map[int]bool{}
	for _, r := range rows {
		ranks[r.RelevanceRanking] = true
	}
	assert.Equal(t, map[int]bool{1: true, 2: true, 3: true}, ranks)
}

func TestGenerateOutputSortedByRank(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	// Modell liefert absichtlich unsortiert
	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P3", 3}, [2]interface{}{"P2", 1}, [2]interface{}{"P1", 2}),
	}}
	svc := newService(db, testConfig(), provider)

	papers, err := svc.Generate(context.Background(), "u1", "1", false)
	require.NoError(t, err)
	require.Len(t, papers, 3)
	assert.Equal(t, []string{"P2", "P1", "P3"}, []string{
		papers[0].PaperExternalID, papers[1].PaperExternalID, papers[2].PaperExternalID,
	})
	for i := 1; i < len(papers); i++ {
		assert.LessOrEqual(t, papers[i-1].RelevanceRanking, papers[i].RelevanceRanking)
	}
}

func TestForceRegenerateReplacesPriorSelection(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
		recJSON([2]interface{}{"P3", 1}, [2]interface{}{"P4", 2}, [2]interface{}{"P5", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "u1", "4", true)
	require.NoError(t, err)
	_, err = svc.Generate(context.Background(), "u1", "4", true)
	require.NoError(t, err)

	rows, err := svc.Selections("u1", "4")
	require.NoError(t, err)
	require.Len(t, rows, 3, "first selection must be fully superseded, not merged")
	assert.Equal(t, "P3", rows[0].PaperExternalID)
	assert.Equal(t, "P4", rows[1].PaperExternalID)
	assert.Equal(t, "P5", rows[2].PaperExternalID)
	assert.Equal(t, 2, provider.calls)
}

func TestUnknownPaperDroppedInBestEffortMode(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	// P9 existiert nicht im Pool und muss still verworfen werden
	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P3", 2}, [2]interface{}{"P1", 1}, [2]interface{}{"P9", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	papers, err := svc.Generate(context.Background(), "u1", "3", false)
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, "P1", papers[0].PaperExternalID)
	assert.Equal(t, 1, papers[0].RelevanceRanking)
	assert.Equal(t, "P3", papers[1].PaperExternalID)
	assert.Equal(t, 2, papers[1].RelevanceRanking)

	rows, err := svc.Selections("u1", "3")
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestUnknownPaperRejectedInStrictMode(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P9", 3}),
	}}
	cfg := testConfig()
	cfg.RecommendStrict = true
	svc := newService(db, cfg, provider)

	_, err := svc.Generate(context.Background(), "u1", "3", false)
	require.ErrorIs(t, err, ErrUnknownPaper)

	rows, err := svc.Selections("u1", "3")
	require.NoError(t, err)
	assert.Empty(t, rows, "strict rejection must not write any rows")
}

func TestMalformedCompletionLeavesExistingSelectionIntact(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
		"not json",
	}}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "u1", "5", false)
	require.NoError(t, err)

	// Erzwinge Regenerierung mit kaputter Antwort: der Fehler darf die alte
	// Auswahl nicht löschen, da der Delete erst nach der Validierung läuft.
	_, err = svc.Generate(context.Background(), "u1", "5", true)
	require.ErrorIs(t, err, ErrMalformedCompletion)

	rows, err := svc.Selections("u1", "5")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "P1", rows[0].PaperExternalID)
}

func TestParseRejectsWrongShape(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "definitely not json"},
		{"empty array", "[]"},
		{"two entries", recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2})},
		{"four entries", recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}, [2]interface{}{"P4", 3})},
		{"duplicate ranks", recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 1}, [2]interface{}{"P3", 3})},
		{"rank out of range", recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 4})},
		{"duplicate paper ids", recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P1", 2}, [2]interface{}{"P3", 3})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseRecommendations(tc.raw)
			assert.ErrorIs(t, err, ErrMalformedCompletion)
		})
	}
}

func TestParseAcceptsFencedJSON(t *testing.T) {
	raw := "```json\n" + recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}) + "\n```"
	items, err := parseRecommendations(raw)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "P1", items[0].PaperID)
}

func TestGenerateRequiresProfileData(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)

	provider := &fakeProvider{responses: []string{"unused"}}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "ghost", "1", false)
	require.ErrorIs(t, err, ErrNoProfileData)
	assert.Zero(t, provider.calls, "no completion call without profile data")
}

func TestGenerateRequiresNonEmptyPool(t *testing.T) {
	db := newTestDB(t)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{"unused"}}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "u1", "1", false)
	require.ErrorIs(t, err, ErrEmptyPaperPool)
	assert.Zero(t, provider.calls)
}

func TestGenerateCompletionErrorPassedThrough(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 3)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{err: errors.New("upstream down")}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "u1", "1", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "completion request failed")
}

func TestPromptTruncatesLongAbstracts(t *testing.T) {
	db := newTestDB(t)
	seedSurvey(t, db, "u1")

	longAbstract := strings.Repeat("x", 2000)
	require.NoError(t, db.Create(&models.Paper{
		ExternalID: "P1",
		Title:      "Long one",
		Abstract:   longAbstract,
	}).Error)
	require.NoError(t, db.Create(&models.Paper{ExternalID: "P2", Title: "Short"}).Error)
	require.NoError(t, db.Create(&models.Paper{ExternalID: "P3", Title: "Short too"}).Error)

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	_, err := svc.Generate(context.Background(), "u1", "1", false)
	require.NoError(t, err)

	assert.NotContains(t, provider.lastUserPrompt, longAbstract)
	assert.Contains(t, provider.lastUserPrompt, strings.Repeat("x", 500)+"...")
	assert.Contains(t, provider.lastUserPrompt, "[P2]")
}

func TestGenerateSnapshotsPaperFields(t *testing.T) {
	db := newTestDB(t)
	seedSurvey(t, db, "u1")
	require.NoError(t, db.Create(&models.Paper{
		ExternalID:    "P1",
		Title:         "Fairness in Hiring",
		Authors:       "Raghavan et al.",
		Abstract:      "Study of hiring pipelines.",
		TLDR:          "Hiring models inherit bias.",
		Category:      "fairness",
		DOI:           "10.1000/xyz",
		OpenAccessURL: "https://example.org/p1",
	}).Error)
	require.NoError(t, db.Create(&models.Paper{ExternalID: "P2", Title: "B"}).Error)
	require.NoError(t, db.Create(&models.Paper{ExternalID: "P3", Title: "C"}).Error)

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	papers, err := svc.Generate(context.Background(), "u1", "3", false)
	require.NoError(t, err)

	p1 := papers[0]
	assert.Equal(t, "Fairness in Hiring", p1.Title)
	assert.Equal(t, "Raghavan et al.", p1.Authors)
	assert.Equal(t, "Hiring models inherit bias.", p1.TLDR)
	assert.Equal(t, "10.1000/xyz", p1.DOI)
	assert.Equal(t, "fits the student", p1.MatchingReason)
	assert.Equal(t, WeekTopic("3"), p1.WeekTopic)
	assert.Equal(t, "3", p1.WeekNumber)
	assert.Equal(t, "u1", p1.UserID)
}

func TestGenerateAllWeeksCollectsPerWeekErrors(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")

	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
	}}
	svc := newService(db, testConfig(), provider)

	results := svc.GenerateAllWeeks(context.Background(), "u1")
	require.Len(t, results, len(SyllabusWeeks()))
	for _, res := range results {
		assert.Empty(t, res.Error)
		assert.Len(t, res.Papers, 3)
	}
	assert.Equal(t, len(SyllabusWeeks()), provider.calls)

	// Zweiter Durchlauf: alles bereits vorhanden, kein weiterer Provider-Aufruf
	results = svc.GenerateAllWeeks(context.Background(), "u1")
	for _, res := range results {
		assert.Empty(t, res.Error)
	}
	assert.Equal(t, len(SyllabusWeeks()), provider.calls)
}

func TestPregenerateWeekSkipsFailingUsers(t *testing.T) {
	db := newTestDB(t)
	seedPool(t, db, 5)
	seedSurvey(t, db, "u1")
	seedSurvey(t, db, "u2")

	// Erste Antwort gültig, zweite kaputt: genau ein Student bekommt Paper
	provider := &fakeProvider{responses: []string{
		recJSON([2]interface{}{"P1", 1}, [2]interface{}{"P2", 2}, [2]interface{}{"P3", 3}),
		"not json",
	}}
	svc := newService(db, testConfig(), provider)

	count, err := svc.PregenerateWeek(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
