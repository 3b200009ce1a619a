package handlers

import (
	"errors"
	"net/http"

	"ansr/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RoomHandler struct {
	roomService *services.RoomService
	pinService  *services.PinService
	logger      *zap.Logger
}

func NewRoomHandler(roomService *services.RoomService, pinService *services.PinService, logger *zap.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		pinService:  pinService,
		logger:      logger,
	}
}

func (h *RoomHandler) CreateRoom(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), userID.(string))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, room)
}

func (h *RoomHandler) ListRecentRooms(c *gin.Context) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	rooms, err := h.roomService.ListRecentRooms(c.Request.Context(), userID.(string))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, ok := h.ownedRoom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, room)
}

// GetRoomPin returns the room's PIN, allocating or refreshing the lease.
// This is the endpoint behind the PIN badge in the host UI.
func (h *RoomHandler) GetRoomPin(c *gin.Context) {
	info, err := h.pinService.GetOrAllocatePin(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

func (h *RoomHandler) CreateQuestion(c *gin.Context) {
	if _, ok := h.ownedRoom(c); !ok {
		return
	}

	questionID, err := h.roomService.CreateQuestion(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"questionId": questionID})
}

func (h *RoomHandler) UpdateQuestion(c *gin.Context) {
	if _, ok := h.ownedRoom(c); !ok {
		return
	}

	var req services.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	question, err := h.roomService.UpdateQuestion(c.Request.Context(), c.Param("id"), c.Param("qid"), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

func (h *RoomHandler) SetActiveQuestion(c *gin.Context) {
	if _, ok := h.ownedRoom(c); !ok {
		return
	}

	var req struct {
		QuestionID string `json:"questionId"` // empty clears the active question
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomService.SetActiveQuestion(c.Request.Context(), c.Param("id"), req.QuestionID); err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"questionId": req.QuestionID})
}

func (h *RoomHandler) GetQuestionResults(c *gin.Context) {
	if _, ok := h.ownedRoom(c); !ok {
		return
	}

	results, err := h.roomService.GetQuestionResults(c.Request.Context(), c.Param("id"), c.Param("qid"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, results)
}

func (h *RoomHandler) GetLeaderboard(c *gin.Context) {
	if _, ok := h.ownedRoom(c); !ok {
		return
	}

	leaderboard, err := h.roomService.GetLeaderboard(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, leaderboard)
}

// ownedRoom loads the room and rejects callers that are not its owner.
func (h *RoomHandler) ownedRoom(c *gin.Context) (room any, ok bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return nil, false
	}

	summary, err := h.roomService.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	if summary.OwnerID != userID.(string) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not the room owner"})
		return nil, false
	}
	return summary, true
}

func (h *RoomHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrRoomNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
	case errors.Is(err, services.ErrQuestionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
	case errors.Is(err, services.ErrQuestionActive):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error("room request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
