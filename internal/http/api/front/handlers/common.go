package handlers

import "github.com/gin-gonic/gin"

// getUserID extracts the authenticated user ID set by the auth middleware.
func getUserID(c *gin.Context) (uint64, bool) {
	v, ok := c.Get("userID")
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
