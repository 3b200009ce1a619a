package handlers

import (
	"context"
	"net/http"
	"regexp"

	"ansr/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var testerUIDPattern = regexp.MustCompile(`^tester_\S+$`)

// TestingHandler injects messages into the conversation engine without going
// through the platform. Only mounted when the memory store driver is active,
// so it can never reach a production store.
type TestingHandler struct {
	conversations *services.ConversationService
	logger        *zap.Logger
}

func NewTestingHandler(conversations *services.ConversationService, logger *zap.Logger) *TestingHandler {
	return &TestingHandler{conversations: conversations, logger: logger}
}

func (h *TestingHandler) InjectMessage(c *gin.Context) {
	var req struct {
		UID     string `json:"uid" binding:"required"`
		Message string `json:"message" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !testerUIDPattern.MatchString(req.UID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "uid must start with tester_"})
		return
	}

	reply, err := h.conversations.Handle(c.Request.Context(), services.Message{
		UserID: req.UID,
		Text:   req.Message,
	}, services.ContextFuncs{
		ResolveDisplayNameFunc: func(ctx context.Context, userID string) (string, error) {
			return "Test user - " + userID, nil
		},
	})
	if err != nil {
		h.logger.Error("test message failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("test message handled",
		zap.String("uid", req.UID),
		zap.String("message", req.Message),
		zap.String("reply", reply))
	c.JSON(http.StatusOK, gin.H{"reply": reply})
}
