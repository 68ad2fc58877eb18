package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/niblr/concierge/internal/catalog"
	"github.com/niblr/concierge/internal/chat"
	"github.com/niblr/concierge/internal/common"
	"github.com/niblr/concierge/internal/config"
	"github.com/niblr/concierge/internal/httpapi/handlers"
	"github.com/niblr/concierge/internal/httpapi/middleware"
	"github.com/niblr/concierge/internal/store/rabbitmq"
)

func NewRouter(db *gorm.DB, cfg config.Config, chatSvc *chat.Service, catalogSvc *catalog.Service, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h := handlers.NewHandler(db, cfg, chatSvc, catalogSvc, rabbit)

	r.GET("/ping", h.Ping)
	r.GET("/health", h.Health)

	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)

	api := r.Group("/api")
	api.Use(middleware.AuthRequired(cfg.JWTSecret))

	api.GET("/auth/me", h.Me)

	// chat
	api.POST("/chat", h.Chat)
	api.POST("/chat/stream", h.ChatStream)
	api.POST("/chat/async", h.ChatAsync)
	api.GET("/chat/jobs/:job_id", h.GetChatJob)

	// sessions
	api.POST("/sessions", h.CreateSession)
	api.GET("/sessions", h.ListSessions)
	api.GET("/sessions/:session_id", h.GetSession)
	api.PUT("/sessions/:session_id", h.UpdateSession)
	api.POST("/sessions/:session_id/save", h.SaveSession)
	api.DELETE("/sessions/:session_id", h.DeleteSession)
	api.GET("/sessions/:session_id/history", h.SessionHistory)

	// catalog
	api.POST("/catalog", h.SaveCatalogItem)
	api.GET("/catalog", h.ListCatalogItems)
	api.DELETE("/catalog", h.DeleteCatalogItems)

	return r
}
