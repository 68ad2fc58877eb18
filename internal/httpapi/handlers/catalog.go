package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/niblr/concierge/internal/catalog"
	"github.com/niblr/concierge/internal/common"
)

type saveCatalogItemReq struct {
	CatalogItemID   string  `json:"catalog_item_id"`
	CatalogName     string  `json:"catalog_name"`
	AgentName       *string `json:"agent_name"`
	SourceMessageID *string `json:"source_message_id"`
	SessionID       *uint64 `json:"session_id"`
}

func (h *Handler) SaveCatalogItem(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req saveCatalogItemReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.CatalogItemID) == "" || strings.TrimSpace(req.CatalogName) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "catalog_item_id and catalog_name required")
		return
	}

	item := &catalog.Item{
		UserID:          uid,
		CatalogItemID:   req.CatalogItemID,
		CatalogName:     req.CatalogName,
		AgentName:       req.AgentName,
		SourceMessageID: req.SourceMessageID,
		SessionID:       req.SessionID,
	}
	if err := h.CatalogSvc.Save(c.Request.Context(), item); err != nil {
		if err == catalog.ErrAlreadySaved {
			common.Fail(c, http.StatusConflict, 40901, "item already saved")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to save item")
		return
	}

	common.OK(c, item)
}

func (h *Handler) ListCatalogItems(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	catalogName := c.Query("catalog_name")
	includeData := c.DefaultQuery("include_data", "false") == "true"

	items, err := h.CatalogSvc.List(c.Request.Context(), uid, catalogName, includeData)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to list items")
		return
	}

	common.OK(c, gin.H{
		"items": items,
		"count": len(items),
	})
}

type deleteCatalogItemsReq struct {
	ItemIDs []uint64 `json:"item_ids"`
}

func (h *Handler) DeleteCatalogItems(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req deleteCatalogItemsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if len(req.ItemIDs) == 0 {
		common.Fail(c, http.StatusBadRequest, 10002, "item_ids required")
		return
	}

	deleted, notFound, err := h.CatalogSvc.DeleteBulk(c.Request.Context(), uid, req.ItemIDs)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to delete items")
		return
	}

	common.OK(c, gin.H{
		"deleted_count": len(deleted),
		"deleted_ids":   deleted,
		"not_found_ids": notFound,
	})
}
