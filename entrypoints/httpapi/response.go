package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"allocation/errors"
	"allocation/logging"
)

// ErrorPayload 统一错误响应体
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ErrorEnvelope 错误响应外层
type ErrorEnvelope struct {
	Error ErrorPayload `json:"error"`
}

// writeError 规范化错误后按错误码写出状态码与错误体
func writeError(c *gin.Context, logger logging.Logger, err error) {
	err = errors.Normalize(err)
	status := errors.HTTPStatus(err)

	payload := ErrorPayload{Code: string(errors.GetErrorCode(err))}
	if appErr, ok := err.(errors.IError); ok {
		payload.Message = appErr.Message()
		if cause := appErr.Cause(); cause != nil {
			payload.Details = cause.Error()
		}
	} else {
		payload.Message = err.Error()
	}

	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed",
			logging.String("path", c.FullPath()),
			logging.Error(err))
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: payload})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{Error: ErrorPayload{
		Code:    string(errors.ErrCodeInvalidInput),
		Message: "请求体格式错误",
		Details: err.Error(),
	}})
}
