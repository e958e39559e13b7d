package handlers

import (
	"context"
	"net/http"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/llm"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (h *Handlers) handleChat(c *gin.Context) {
	var req struct {
		Messages []llm.Message `json:"messages"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Messages) == 0 {
		response.Fail(c, http.StatusBadRequest, "messages are required")
		return
	}
	h.reply(c, func(ctx context.Context, a llm.Assistant) (string, error) {
		return a.Chat(ctx, req.Messages)
	})
}

func (h *Handlers) handlePreparationTips(c *gin.Context) {
	h.reply(c, func(ctx context.Context, a llm.Assistant) (string, error) {
		return a.PreparationTips(ctx)
	})
}

func (h *Handlers) handlePostCare(c *gin.Context) {
	h.reply(c, func(ctx context.Context, a llm.Assistant) (string, error) {
		return a.PostCareTips(ctx)
	})
}

func (h *Handlers) reply(c *gin.Context, fn func(context.Context, llm.Assistant) (string, error)) {
	if h.assistant == nil {
		response.Error(c, errors.WithCode(errors.CodeUnavailable, "assistant is not configured"))
		return
	}
	text, err := fn(c.Request.Context(), h.assistant)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			response.Error(c, errors.WithCode(errors.CodeUnavailable, "assistant is not configured"))
			return
		}
		logger.Warn("assistant request failed", zap.Error(err))
		response.Fail(c, http.StatusBadGateway, "Something went wrong")
		return
	}
	response.Success(c, "", gin.H{"reply": text})
}
