// Package response writes the plain JSON bodies the game UI expects. Error
// bodies are always {"error": "..."} so the frontend can show them verbatim.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Text is used by the payment endpoints, which historically reply with a bare
// "ok" string rather than JSON.
func Text(c *gin.Context, body string) {
	c.String(http.StatusOK, body)
}

func Error(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}
