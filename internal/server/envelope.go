package server

import (
	"errors"
	"net/http"

	"github.com/MarcoPoloResearchLab/speakerbio/internal/biography"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const successMessage = "success"

type envelope struct {
	Data       any    `json:"data"`
	ErrorMsg   string `json:"error_msg"`
	SuccessMsg string `json:"success_msg"`
}

func respondSuccess(c *gin.Context, data any, message string) {
	if data == nil {
		data = gin.H{}
	}
	c.JSON(http.StatusOK, envelope{Data: data, SuccessMsg: message})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, envelope{Data: gin.H{}, ErrorMsg: message})
}

func (h *httpHandler) respondError(c *gin.Context, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	_ = c.Error(err)
	c.JSON(status, envelope{Data: gin.H{}, ErrorMsg: messageForError(err)})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, biography.ErrInvalidArgument), errors.Is(err, biography.ErrInvalidReference):
		return http.StatusBadRequest
	case errors.Is(err, biography.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, biography.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}

func messageForError(err error) string {
	var serviceErr *biography.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.Message()
	}
	return err.Error()
}
