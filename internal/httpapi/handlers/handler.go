package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lectigo/lectigo/internal/ai"
	"github.com/lectigo/lectigo/internal/config"
	"github.com/lectigo/lectigo/internal/dialogue"
	"github.com/lectigo/lectigo/internal/store/redisstore"
)

type Handler struct {
	DB       *gorm.DB
	Cfg      config.Config
	Redis    *redisstore.Store
	Repo     *dialogue.Repo
	Dialogue *dialogue.Service
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, publisher dialogue.JobPublisher) *Handler {
	name := strings.ToLower(cfg.AIProvider)
	if name == "" {
		name = "gemini"
	}
	model := cfg.GeminiModel
	if name == "ollama" {
		model = cfg.OllamaModel
	}
	reg := ai.DefaultRegistry(cfg.GeminiBaseURL, cfg.GeminiAPIKey, cfg.OllamaBaseURL)
	provider, err := reg.Get(context.Background(), name, model)
	if err != nil {
		panic(fmt.Sprintf("unsupported AI_PROVIDER=%q", cfg.AIProvider))
	}

	repo := dialogue.NewRepo(db)
	svc := dialogue.NewService(repo, ai.NewSafe(provider), publisher, cfg.ContextWindowSize)

	return &Handler{
		DB:       db,
		Cfg:      cfg,
		Redis:    rds,
		Repo:     repo,
		Dialogue: svc,
	}
}

func (h *Handler) Ping(c *gin.Context) {
	c.JSON(200, gin.H{"message": "pong"})
}
