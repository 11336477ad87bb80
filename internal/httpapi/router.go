package httpapi

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lectigo/lectigo/internal/common"
	"github.com/lectigo/lectigo/internal/config"
	"github.com/lectigo/lectigo/internal/dialogue"
	"github.com/lectigo/lectigo/internal/httpapi/handlers"
	"github.com/lectigo/lectigo/internal/httpapi/middleware"
	"github.com/lectigo/lectigo/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, publisher dialogue.JobPublisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(cors.Default())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	h := handlers.NewHandler(db, cfg, rds, publisher)

	r.GET("/ping", h.Ping)

	r.POST("/api/users", h.CreateUser)
	r.POST("/api/login", h.Login)

	authGroup := r.Group("/api")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)
	authGroup.GET("/users/:id", h.GetUserByID)

	authGroup.POST("/sessions", h.CreateSession)
	authGroup.GET("/sessions", h.ListSessions)
	authGroup.GET("/sessions/:session_id", h.GetSession)
	authGroup.GET("/sessions/:session_id/messages", h.ListSessionMessages)
	authGroup.POST("/sessions/:session_id/messages", h.SendMessage)

	return r
}
