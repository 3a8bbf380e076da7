// Package response renders the standard API envelopes. Every payload
// carries a request id and an RFC3339 timestamp so log lines and client
// reports can be correlated.
package response

import (
	"errors"
	"net/http"
	"time"

	"payout-engine/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the success envelope.
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the error envelope.
type ErrorResponse struct {
	ErrorCode string `json:"error_code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response wrapping data.
func OK(c *gin.Context, data interface{}) {
	sendData(c, http.StatusOK, data)
}

// Created sends a 201 response wrapping data.
func Created(c *gin.Context, data interface{}) {
	sendData(c, http.StatusCreated, data)
}

// Error renders err as an error envelope. Coded *apperror.AppError
// values (wrapped or not) keep their code and HTTP status; anything
// else becomes an opaque 500 so internals never leak to clients.
func Error(c *gin.Context, err error) {
	code, message, status := "SYS_000", "Internal server error", http.StatusInternalServerError

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		code, message, status = appErr.Code, appErr.Message, appErr.HTTPStatus
	}

	c.JSON(status, ErrorResponse{
		ErrorCode: code,
		Message:   message,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func sendData(c *gin.Context, status int, data interface{}) {
	c.JSON(status, SuccessResponse{
		Data:      data,
		RequestID: requestID(c),
		Timestamp: now(),
	})
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// requestID reads the request id set by middleware, minting one when a
// response is rendered outside the middleware chain.
func requestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
