package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"sms-support-server/internal/apperrors"
	"sms-support-server/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success":    true,
		"data":       data,
		"statusCode": status,
	})
}

func respondList(c *gin.Context, data interface{}, count int) {
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"data":       data,
		"count":      count,
		"statusCode": http.StatusOK,
	})
}

func respondMessage(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{
		"success":    false,
		"error":      msg,
		"statusCode": status,
	})
}

// respondError renders err with the status its kind maps to. Unclassified
// errors become a 500 whose details stay in the log.
func respondError(c *gin.Context, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	respondMessage(c, status, apperrors.PublicMessage(err))
}

// bindError describes a failed ShouldBindJSON
func bindError(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := lowerFirst(fe.Field())
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", field)
		case "email":
			return fmt.Sprintf("%s must be a valid email", field)
		case "max":
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		case "min":
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s is invalid", field)
	}
	return "Invalid request format"
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
