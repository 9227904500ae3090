package server

import (
	"errors"
	"net/http"

	"github.com/Abraxas-365/coursekb/batch"
	"github.com/Abraxas-365/coursekb/chathistory"
	"github.com/Abraxas-365/coursekb/docmanager"
	"github.com/Abraxas-365/coursekb/embedding"
	"github.com/Abraxas-365/coursekb/kb"
	"github.com/Abraxas-365/coursekb/llm"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, kb.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, kb.ErrNoLLM):
		return http.StatusServiceUnavailable
	case errors.Is(err, batch.ErrNotFound),
		errors.Is(err, chathistory.ErrConversationNotFound),
		docmanager.IsCode(err, docmanager.ErrCodeNotFound):
		return http.StatusNotFound
	case errors.Is(err, chathistory.ErrConversationExists),
		docmanager.IsCode(err, docmanager.ErrCodeDuplicate):
		return http.StatusConflict
	case docmanager.IsCode(err, docmanager.ErrCodeInvalidFile):
		return http.StatusBadRequest
	case llm.CodeOf(err) == llm.ErrRateLimitExceeded,
		embedding.IsCode(err, embedding.ErrCodeRateLimitExceeded):
		return http.StatusTooManyRequests
	case llm.CodeOf(err) != "",
		embedding.IsCode(err, embedding.ErrCodeUnauthorized),
		embedding.IsCode(err, embedding.ErrCodeAPIError):
		// the model provider failed, not us
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusOf(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, errorResponse{Error: err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg})
}
