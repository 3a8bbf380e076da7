package handler

import (
	"payout-engine/internal/adapter/http/dto"
	"payout-engine/pkg/apperror"
	"payout-engine/pkg/response"

	"github.com/gin-gonic/gin"
)

// bindJSON decodes and sanitizes a JSON request body. On failure it
// writes the validation error and returns false, so handlers can bail
// with a bare return.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}
