package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// ParseLimit reads the "limit" query parameter. Missing or invalid values give defaultLimit and
// values above maxLimit are clamped.
func ParseLimit(c *gin.Context, defaultLimit, maxLimit int) int {
	limit, err := strconv.Atoi(strings.TrimSpace(c.Query("limit")))
	if err != nil || limit < 1 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit
}
