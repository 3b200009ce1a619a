package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"ansr/line"
	"ansr/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler is the messaging-platform boundary: it authenticates the
// webhook, translates events into the conversation engine's plain contract
// and sends the reply back. One failing event never stops the rest of the
// batch, and no reply goes out for an event that failed.
type WebhookHandler struct {
	conversations *services.ConversationService
	lineClient    *line.Client
	richMenus     *line.RichMenuCache
	channelSecret string
	logger        *zap.Logger
}

func NewWebhookHandler(
	conversations *services.ConversationService,
	lineClient *line.Client,
	richMenus *line.RichMenuCache,
	channelSecret string,
	logger *zap.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		conversations: conversations,
		lineClient:    lineClient,
		richMenus:     richMenus,
		channelSecret: channelSecret,
		logger:        logger,
	}
}

func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read body"})
		return
	}

	if !line.ValidateSignature(h.channelSecret, body, c.GetHeader("X-Line-Signature")) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
		return
	}

	var req line.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload"})
		return
	}

	for _, event := range req.Events {
		if err := h.handleEvent(c.Request.Context(), event); err != nil {
			h.logger.Error("webhook event failed",
				zap.String("userId", event.Source.UserID),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebhookHandler) handleEvent(ctx context.Context, event line.Event) error {
	if event.Type != "message" || event.Message.Type != "text" {
		return nil
	}
	userID := event.Source.UserID
	if userID == "" {
		return errors.New("missing userId")
	}

	convCtx := services.ContextFuncs{
		ResolveDisplayNameFunc: func(ctx context.Context, userID string) (string, error) {
			profile, err := h.lineClient.GetProfile(ctx, userID)
			if err != nil {
				return "", err
			}
			return profile.DisplayName, nil
		},
		OnJoinFunc: func(ctx context.Context) error {
			menuID, err := h.richMenus.InsideRichMenuID(ctx)
			if err != nil {
				return err
			}
			return h.lineClient.LinkRichMenu(ctx, userID, menuID)
		},
		OnLeaveFunc: func(ctx context.Context) error {
			return h.lineClient.UnlinkRichMenu(ctx, userID)
		},
	}

	reply, err := h.conversations.Handle(ctx, services.Message{
		UserID: userID,
		Text:   event.Message.Text,
		Time:   event.Timestamp,
	}, convCtx)
	if err != nil {
		return err
	}

	h.logger.Info("handled message",
		zap.String("userId", userID),
		zap.String("text", event.Message.Text),
		zap.String("reply", reply))

	return h.lineClient.ReplyMessage(ctx, event.ReplyToken, reply)
}
