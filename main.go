package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"coursemate/config"
	"coursemate/models"
	"coursemate/providers"
	"coursemate/providers/openai"
	"coursemate/services"
	"coursemate/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to course database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Paper{},
		&models.PersonalizedPaper{},
		&models.SurveyResponse{},
		&models.PersonaCard{},
		&models.InterviewSession{},
		&models.InterviewMessage{},
		&models.CardComment{},
		&models.CardReaction{},
	)

	// Setup LLM Provider
	var completionProvider providers.CompletionProvider
	switch cfg.LLMProvider {
	case "openai":
		completionProvider = openai.NewClient(cfg, logging)
	default:
		logging.Fatal("Unknown LLM provider in config", zap.String("provider_name", cfg.LLMProvider))
	}
	logging.Info("Active completion provider loaded", zap.String("provider", completionProvider.Name()))

	// Setup Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	recommendService := services.NewRecommendService(cfg, db, logging, completionProvider)
	personaService := services.NewPersonaService(cfg, db, logging, completionProvider)
	interviewService := services.NewInterviewService(db, logging, completionProvider)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	// Setup Routes
	setupSurveyRoutes(router, db, logging)
	setupPersonaRoutes(router, db, personaService, s3Client, cfg, logging)
	setupRecommendationRoutes(router, recommendService, logging)
	setupInterviewRoutes(router, interviewService, logging)
	setupSquareRoutes(router, db, logging)
	setupSyllabusRoutes(router)

	// Setup Cron: Wochenempfehlungen nachts vorgenerieren
	if cfg.PregenEnabled {
		cronScheduler := cron.New()
		cronScheduler.AddFunc(cfg.CronSchedule, func() {
			logging.Info("Running scheduled pregeneration sweep...", zap.String("week", cfg.CurrentWeek))
			count, err := recommendService.PregenerateWeek(context.Background(), cfg.CurrentWeek)
			if err != nil {
				logging.Error("Pregeneration sweep failed", zap.Error(err))
			} else {
				logging.Info("Pregeneration sweep completed", zap.Int("generated", count))
			}
		})
		cronScheduler.Start()
	}

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupSurveyRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/surveys")

	// POST - Upsert survey per userId
	rg.POST("/", func(c *gin.Context) {
		var survey models.SurveyResponse
		if err := c.ShouldBindJSON(&survey); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if survey.UserID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId is required"})
			return
		}
		if survey.AvatarColor != "" && !services.IsAllowedAvatarColor(survey.AvatarColor) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown avatar color"})
			return
		}

		updateColumns := []string{
			"nickname", "academic_background", "research_interests",
			"recent_readings", "class_goals", "discussion_style", "avatar_color",
		}
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(updateColumns),
		}).Create(&survey).Error
		if err != nil {
			log.Error("Failed to save survey response", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save survey response"})
			return
		}
		c.JSON(http.StatusOK, survey)
	})

	rg.GET("/:userId", func(c *gin.Context) {
		userID := c.Param("userId")
		var survey models.SurveyResponse
		if err := db.Where("user_id = ?", userID).First(&survey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Survey response not found"})
				return
			}
			log.Error("DB error fetching survey", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		c.JSON(http.StatusOK, survey)
	})
}

func setupPersonaRoutes(router *gin.Engine, db *gorm.DB, personaService *services.PersonaService, s3Client *awss3.Client, cfg *config.Config, log *zap.Logger) {
	rg := router.Group("/persona-cards")

	// POST - Persona-Karte per KI aus der Survey generieren
	rg.POST("/generate", func(c *gin.Context) {
		var req struct {
			UserID string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'userId' field is required."})
			return
		}

		card, err := personaService.GeneratePersona(c.Request.Context(), req.UserID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNoProfileData):
				c.JSON(http.StatusNotFound, gin.H{"error": "No survey response for this user"})
			case errors.Is(err, services.ErrMalformedCompletion):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "AI returned an invalid persona"})
			default:
				log.Error("Persona generation failed", zap.String("user_id", req.UserID), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate persona card"})
			}
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "card": card})
	})

	rg.GET("/:userId", func(c *gin.Context) {
		userID := c.Param("userId")
		var card models.PersonaCard
		if err := db.Where("user_id = ?", userID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Persona card not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		c.JSON(http.StatusOK, card)
	})

	// PUT - Teil-Update; nur gesendete Felder werden übernommen
	rg.PUT("/:userId", func(c *gin.Context) {
		userID := c.Param("userId")
		var payload struct {
			DisplayName      *string `json:"display_name"`
			Bio              *string `json:"bio"`
			ResearchInterest *string `json:"research_interest"`
			LearningGoal     *string `json:"learning_goal"`
			DiscussionStyle  *string `json:"discussion_style"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		updates := map[string]interface{}{}
		if payload.DisplayName != nil {
			updates["display_name"] = *payload.DisplayName
		}
		if payload.Bio != nil {
			updates["bio"] = *payload.Bio
		}
		if payload.ResearchInterest != nil {
			updates["research_interest"] = *payload.ResearchInterest
		}
		if payload.LearningGoal != nil {
			updates["learning_goal"] = *payload.LearningGoal
		}
		if payload.DiscussionStyle != nil {
			updates["discussion_style"] = *payload.DiscussionStyle
		}
		if len(updates) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No updatable fields provided"})
			return
		}

		res := db.Model(&models.PersonaCard{}).Where("user_id = ?", userID).Updates(updates)
		if res.Error != nil {
			log.Error("Failed to update persona card", zap.String("user_id", userID), zap.Error(res.Error))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Persona card not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "updated fields", "updates": updates})
	})

	// PUT - Avatar-Farbe aus der festen Palette wählen
	rg.PUT("/:userId/avatar-color", func(c *gin.Context) {
		userID := c.Param("userId")
		var req struct {
			Color string `json:"color" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'color' field is required."})
			return
		}
		if !services.IsAllowedAvatarColor(req.Color) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown avatar color", "palette": services.AvatarPalette})
			return
		}

		res := db.Model(&models.PersonaCard{}).Where("user_id = ?", userID).Update("avatar_color", req.Color)
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Persona card not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "avatar_color": req.Color})
	})

	// POST - Avatar-Bild hochladen (multipart), landet im S3-Asset-Bucket
	rg.POST("/:userId/avatar", func(c *gin.Context) {
		userID := c.Param("userId")

		var card models.PersonaCard
		if err := db.Where("user_id = ?", userID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Persona card not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}

		fileHeader, err := c.FormFile("avatar")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request. 'avatar' file field is required."})
			return
		}
		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read uploaded file"})
			return
		}

		contentType := fileHeader.Header.Get("Content-Type")
		link, err := storage.UploadAvatar(c.Request.Context(), s3Client, cfg, userID, data, contentType)
		if err != nil {
			log.Error("Avatar upload failed", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar"})
			return
		}

		if err := db.Model(&card).Update("avatar_url", link).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "avatar_url": link})
	})
}

func setupRecommendationRoutes(router *gin.Engine, svc *services.RecommendService, log *zap.Logger) {
	rg := router.Group("/personalized-papers")

	rg.GET("/", func(c *gin.Context) {
		userID := c.Query("userId")
		week := c.Query("week")
		if userID == "" || week == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and week are required"})
			return
		}

		papers, err := svc.Selections(userID, week)
		if err != nil {
			log.Error("Failed to load personalized papers", zap.String("user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "papers": papers, "count": len(papers)})
	})

	rg.POST("/", func(c *gin.Context) {
		var req struct {
			UserID          string `json:"userId"`
			WeekNumber      string `json:"weekNumber"`
			ForceRegenerate bool   `json:"forceRegenerate"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		if req.UserID == "" || req.WeekNumber == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId and weekNumber are required"})
			return
		}

		papers, err := svc.Generate(c.Request.Context(), req.UserID, req.WeekNumber, req.ForceRegenerate)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrNoProfileData):
				c.JSON(http.StatusNotFound, gin.H{"error": "No profile data for this user"})
			case errors.Is(err, services.ErrEmptyPaperPool):
				c.JSON(http.StatusNotFound, gin.H{"error": "No papers available"})
			case errors.Is(err, services.ErrMalformedCompletion), errors.Is(err, services.ErrUnknownPaper):
				c.JSON(http.StatusInternalServerError, gin.H{"error": "AI returned an invalid recommendation"})
			default:
				log.Error("Recommendation generation failed",
					zap.String("user_id", req.UserID),
					zap.String("week", req.WeekNumber),
					zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate personalized papers"})
			}
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "personalized papers ready",
			"papers":  papers,
		})
	})

	// POST - alle Kurswochen nacheinander generieren (Syllabus-Flow)
	rg.POST("/generate-all", func(c *gin.Context) {
		var req struct {
			UserID string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'userId' field is required."})
			return
		}

		results := svc.GenerateAllWeeks(c.Request.Context(), req.UserID)
		c.JSON(http.StatusOK, gin.H{"success": true, "weeks": results})
	})
}

func setupInterviewRoutes(router *gin.Engine, svc *services.InterviewService, log *zap.Logger) {
	rg := router.Group("/interview")

	rg.POST("/sessions", func(c *gin.Context) {
		var req struct {
			UserID string `json:"userId" binding:"required"`
			Topic  string `json:"topic"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'userId' field is required."})
			return
		}

		session, err := svc.StartSession(req.UserID, req.Topic)
		if err != nil {
			log.Error("Failed to start interview session", zap.String("user_id", req.UserID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start session"})
			return
		}
		c.JSON(http.StatusCreated, session)
	})

	rg.POST("/sessions/:sessionId/messages", func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		var req struct {
			Content string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'content' field is required."})
			return
		}

		reply, err := svc.SendMessage(c.Request.Context(), sessionID, req.Content)
		if err != nil {
			if errors.Is(err, services.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Interview session not found"})
				return
			}
			log.Error("Interview turn failed", zap.String("session_id", sessionID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate reply"})
			return
		}
		c.JSON(http.StatusOK, reply)
	})

	rg.GET("/sessions/:sessionId/messages", func(c *gin.Context) {
		sessionID := c.Param("sessionId")
		messages, err := svc.Transcript(sessionID)
		if err != nil {
			if errors.Is(err, services.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Interview session not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": messages, "count": len(messages)})
	})
}

func setupSquareRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/square")

	// GET - alle Karten mit Reaktions- und Kommentar-Zählern, neueste zuerst
	rg.GET("/", func(c *gin.Context) {
		var cards []models.PersonaCard
		if err := db.Order("created_at desc").Find(&cards).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		type CardWithCounts struct {
			models.PersonaCard
			ReactionCount int64 `json:"reaction_count"`
			CommentCount  int64 `json:"comment_count"`
		}

		enriched := make([]CardWithCounts, 0, len(cards))
		for _, card := range cards {
			item := CardWithCounts{PersonaCard: card}
			if err := db.Model(&models.CardReaction{}).Where("card_user_id = ?", card.UserID).Count(&item.ReactionCount).Error; err != nil {
				log.Warn("Failed to count reactions", zap.String("card_user_id", card.UserID), zap.Error(err))
			}
			if err := db.Model(&models.CardComment{}).Where("card_user_id = ?", card.UserID).Count(&item.CommentCount).Error; err != nil {
				log.Warn("Failed to count comments", zap.String("card_user_id", card.UserID), zap.Error(err))
			}
			enriched = append(enriched, item)
		}
		c.JSON(http.StatusOK, gin.H{"cards": enriched, "count": len(enriched)})
	})

	// GET - eine Karte mit Kommentaren und Reaktionen
	rg.GET("/:userId", func(c *gin.Context) {
		userID := c.Param("userId")
		var card models.PersonaCard
		if err := db.Where("user_id = ?", userID).First(&card).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Persona card not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		var comments []models.CardComment
		db.Where("card_user_id = ?", userID).Order("created_at asc").Find(&comments)
		var reactions []models.CardReaction
		db.Where("card_user_id = ?", userID).Find(&reactions)

		c.JSON(http.StatusOK, gin.H{"card": card, "comments": comments, "reactions": reactions})
	})

	rg.POST("/:userId/comments", func(c *gin.Context) {
		userID := c.Param("userId")
		var req struct {
			AuthorUserID string `json:"authorUserId" binding:"required"`
			AuthorName   string `json:"authorName"`
			Content      string `json:"content" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'authorUserId' and 'content' are required."})
			return
		}

		comment := models.CardComment{
			CardUserID:   userID,
			AuthorUserID: req.AuthorUserID,
			AuthorName:   req.AuthorName,
			Content:      req.Content,
		}
		if err := db.Create(&comment).Error; err != nil {
			log.Error("Failed to create comment", zap.String("card_user_id", userID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save comment"})
			return
		}
		c.JSON(http.StatusCreated, comment)
	})

	// POST - Reaktion togglen: identische Reaktion wird wieder entfernt
	rg.POST("/:userId/reactions", func(c *gin.Context) {
		userID := c.Param("userId")
		var req struct {
			AuthorUserID string `json:"authorUserId" binding:"required"`
			Emoji        string `json:"emoji" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'authorUserId' and 'emoji' are required."})
			return
		}

		var existing models.CardReaction
		err := db.Where("card_user_id = ? AND author_user_id = ? AND emoji = ?", userID, req.AuthorUserID, req.Emoji).
			First(&existing).Error
		switch {
		case err == nil:
			if err := db.Delete(&existing).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove reaction"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"toggled": "removed"})
		case errors.Is(err, gorm.ErrRecordNotFound):
			reaction := models.CardReaction{CardUserID: userID, AuthorUserID: req.AuthorUserID, Emoji: req.Emoji}
			if err := db.Create(&reaction).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save reaction"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"toggled": "added", "reaction": reaction})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		}
	})
}

func setupSyllabusRoutes(router *gin.Engine) {
	router.GET("/syllabus", func(c *gin.Context) {
		weeks := services.SyllabusWeeks()
		c.JSON(http.StatusOK, gin.H{"weeks": weeks, "count": len(weeks)})
	})
}
