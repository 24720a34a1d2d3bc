package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shortlink-analytics/internal/apperr"
)

// respondError 按错误类别返回状态码。未分类和暂时性错误不向客户端暴露细节。
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	message := "服务器内部错误"

	var appErr *apperr.Error
	switch {
	case status == http.StatusServiceUnavailable:
		message = "服务暂时不可用，请稍后重试"
	case status >= http.StatusInternalServerError:
	case errors.As(err, &appErr) && appErr.Message != "":
		message = appErr.Message
	default:
		message = http.StatusText(status)
	}

	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.Error("请求处理失败",
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
