package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kaspidesk/stocks_backend/models"
	"github.com/kaspidesk/stocks_backend/utils"
)

// SessionMiddleware resolves the "token" header into a merchant session.
// Requests without a token pass through; handlers that need a session
// reject them when the user id is absent from the context.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}

		userId, email, err := models.SessionFromToken(token)
		if err != nil || userId == 0 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUserIdInContext(ctx, userId)
		ctx = utils.SetUserEmailInContext(ctx, email)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
