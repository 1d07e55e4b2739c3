package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragbase/internal/app"
	"ragbase/internal/transport/http/response"
)

type QAHandler struct {
	qaService *app.QAService
}

type AskRequest struct {
	Question string            `json:"question" binding:"required"`
	History  []app.HistoryTurn `json:"history"`
}

type BatchAskRequest struct {
	Questions []string `json:"questions" binding:"required"`
}

func NewQAHandler(qaService *app.QAService) *QAHandler {
	return &QAHandler{qaService: qaService}
}

func (h *QAHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.qaService.Answer(c.Request.Context(), req.Question, req.History)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "answer failed")
		}
		return
	}
	response.OK(c, result)
}

func (h *QAHandler) BatchAsk(c *gin.Context) {
	var req BatchAskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	items, err := h.qaService.BatchAnswer(c.Request.Context(), req.Questions)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrBatchTooLarge):
			response.Error(c, http.StatusBadRequest, response.CodeBatchTooLarge, err.Error())
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "batch answer failed")
		}
		return
	}
	response.OK(c, gin.H{"results": items, "count": len(items)})
}

func (h *QAHandler) Search(c *gin.Context) {
	query := c.Query("q")
	limit := parseIntQuery(c, "limit", 0)

	hits, err := h.qaService.SearchContent(query, limit)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		} else {
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "search failed")
		}
		return
	}
	response.OK(c, gin.H{"results": hits, "count": len(hits)})
}
