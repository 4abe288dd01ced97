package chat

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/liliang-cn/fixdoc/internal/api/middleware"
	"github.com/liliang-cn/fixdoc/internal/api/respond"
	"github.com/liliang-cn/fixdoc/internal/domain"
	"github.com/liliang-cn/fixdoc/internal/service"
)

// Handler handles chat, conversation and feedback requests
type Handler struct {
	chat     *service.ChatService
	feedback *service.FeedbackService
}

// NewHandler creates a new chat handler
func NewHandler(chat *service.ChatService, feedback *service.FeedbackService) *Handler {
	return &Handler{chat: chat, feedback: feedback}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", h.Chat)

	conversations := r.Group("/conversations")
	{
		conversations.GET("", h.ListConversations)
		conversations.GET("/:id", h.GetConversation)
		conversations.DELETE("/:id", h.DeleteConversation)
	}

	r.POST("/feedback", h.Feedback)
}

// Chat answers a troubleshooting question
func (h *Handler) Chat(c *gin.Context) {
	var req domain.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	resp, err := h.chat.Chat(c.Request.Context(), middleware.AccountID(c), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) ListConversations(c *gin.Context) {
	skip, err := queryInt(c, "skip")
	if err != nil {
		respond.Error(c, err)
		return
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		respond.Error(c, err)
		return
	}

	conversations, err := h.chat.ListConversations(c.Request.Context(), middleware.AccountID(c), skip, limit)
	if err != nil {
		respond.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations, "count": len(conversations)})
}

func (h *Handler) GetConversation(c *gin.Context) {
	history, err := h.chat.History(c.Request.Context(), middleware.AccountID(c), c.Param("id"))
	if err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	id := c.Param("id")
	if err := h.chat.DeleteConversation(c.Request.Context(), middleware.AccountID(c), id); err != nil {
		respond.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "conversation deleted", "conversation_id": id})
}

// Feedback rates an answer; rating an already rated message replaces the rating
func (h *Handler) Feedback(c *gin.Context) {
	var req domain.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BindError(c, err)
		return
	}

	resp, err := h.feedback.Submit(c.Request.Context(), middleware.AccountID(c), &req)
	if err != nil {
		respond.Error(c, err)
		return
	}

	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	c.JSON(status, resp)
}

func queryInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, domain.Errorf(domain.ErrValidation, "%s must be a non-negative integer", name)
	}
	return n, nil
}
