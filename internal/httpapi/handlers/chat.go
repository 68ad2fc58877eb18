package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/niblr/concierge/internal/chat"
	"github.com/niblr/concierge/internal/common"
)

type chatReq struct {
	Message string `json:"message"`
	// SessionID is optional. Empty or unknown ids fall through to a fresh
	// session; the response carries the id to resume with.
	SessionID string `json:"session_id"`
}

func (h *Handler) Chat(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message required")
		return
	}

	messages, sessionID, err := h.ChatSvc.Chat(c.Request.Context(), uid, req.SessionID, req.Message)
	if err != nil {
		log.Printf("[Chat] turn failed uid=%d session_id=%s err=%v", uid, req.SessionID, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "chat turn failed: "+err.Error())
		return
	}

	common.OK(c, gin.H{
		"messages":   messages,
		"session_id": sessionID,
	})
}

func (h *Handler) ChatStream(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message required")
		return
	}

	// SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // helpful if behind nginx

	c.Status(http.StatusOK)

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		fmt.Fprintf(c.Writer, "event: error\ndata: flusher not supported\n\n")
		return
	}

	writeFrame := func(event string, payload any) {
		b, err := json.Marshal(payload)
		if err != nil {
			fmt.Fprintf(c.Writer, "event: error\ndata: {\"message\":\"json marshal failed\"}\n\n")
			flusher.Flush()
			return
		}
		if event != "" {
			fmt.Fprintf(c.Writer, "event: %s\n", event)
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", string(b))
		flusher.Flush()
	}

	ctx := c.Request.Context()
	frames, errs := h.ChatSvc.ChatStream(ctx, uid, req.SessionID, req.Message)

	// heartbeat ticker (keeps connections alive)
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			writeFrame(frame.Type, frame)
			if frame.Type == "complete" {
				return
			}

		case <-ticker.C:
			writeFrame("ping", gin.H{
				"type": "ping",
				"ts":   time.Now().Unix(),
			})

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			writeFrame("error", chat.Frame{Type: "error", Content: err.Error()})
			return

		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) ChatAsync(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "message required")
		return
	}
	if h.Rabbit == nil {
		common.Fail(c, http.StatusServiceUnavailable, 50301, "async chat disabled")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	jobID, err := common.NewULID()
	if err != nil {
		log.Printf("[ChatAsync] NewULID failed uid=%d err=%v", uid, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	j := &chat.Job{
		ID:             jobID,
		UserID:         uid,
		AgentSessionID: req.SessionID,
		Prompt:         req.Message,
		IdempotencyKey: idempoKeyPtr,
		Status:         chat.JobQueued,
	}

	j, created, err := h.ChatSvc.CreateJobOrGetExisting(c.Request.Context(), j)
	if err != nil {
		log.Printf("[ChatAsync] CreateJobOrGetExisting failed uid=%d key=%s err=%v", uid, idempoKey, err)
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}

	// Enqueue only when a new job was created
	if created {
		if err := h.Rabbit.PublishJob(c.Request.Context(), j.ID); err != nil {
			log.Printf("[ChatAsync] PublishJob failed uid=%d job_id=%s err=%v", uid, j.ID, err)
			common.Fail(c, http.StatusInternalServerError, 50002, "enqueue failed")
			return
		}
	}

	common.OK(c, gin.H{"job_id": j.ID, "status": j.Status})
}

func (h *Handler) GetChatJob(c *gin.Context) {
	uid, okk := userIDFromContext(c)
	if !okk {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	jobID := c.Param("job_id")
	if jobID == "" {
		common.Fail(c, http.StatusBadRequest, 10002, "job_id required")
		return
	}

	j, err := h.ChatSvc.GetJob(c.Request.Context(), jobID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			common.Fail(c, http.StatusNotFound, 40402, "job not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
		return
	}
	if j.UserID != uid {
		// hide existence
		common.Fail(c, http.StatusNotFound, 40402, "job not found")
		return
	}

	resp := gin.H{
		"id":         j.ID,
		"status":     j.Status,
		"session_id": j.ResultSessionID,
		"error":      j.Error,
		"created_at": j.CreatedAt,
		"updated_at": j.UpdatedAt,
	}
	if j.ResultMessages != nil {
		var messages []json.RawMessage
		if err := json.Unmarshal([]byte(*j.ResultMessages), &messages); err == nil {
			resp["messages"] = messages
		}
	}
	common.OK(c, gin.H{"job": resp})
}
