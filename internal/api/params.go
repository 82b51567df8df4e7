package api

import (
	"fmt"
	"strconv"

	"github.com/comment-moderation-api/internal/apperr"
	"github.com/gin-gonic/gin"
)

// queryInt reads an optional integer query parameter
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.InvalidInput(fmt.Sprintf("%s must be an integer", name))
	}
	return n, nil
}
