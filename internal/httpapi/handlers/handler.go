package handlers

import (
	"gorm.io/gorm"

	"github.com/niblr/concierge/internal/catalog"
	"github.com/niblr/concierge/internal/chat"
	"github.com/niblr/concierge/internal/config"
	"github.com/niblr/concierge/internal/httpapi/middleware"
	"github.com/niblr/concierge/internal/store/rabbitmq"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	DB         *gorm.DB
	Cfg        config.Config
	ChatSvc    *chat.Service
	CatalogSvc *catalog.Service
	Rabbit     *rabbitmq.Publisher
}

// NewHandler wires services built in cmd/server. Rabbit may be nil when the
// async path is disabled.
func NewHandler(db *gorm.DB, cfg config.Config, chatSvc *chat.Service, catalogSvc *catalog.Service, rabbit *rabbitmq.Publisher) *Handler {
	return &Handler{
		DB:         db,
		Cfg:        cfg,
		ChatSvc:    chatSvc,
		CatalogSvc: catalogSvc,
		Rabbit:     rabbit,
	}
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
