package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"lawchat/internal/app"
	"lawchat/internal/transport/http/response"
)

const ContextWorkspaceKey = "workspace"

// ClientIdentity gives every browser a stable client id cookie and loads
// its workspace. Ids that are not UUIDs are replaced.
func ClientIdentity(registry *app.Registry, cookieName string, maxAgeDays int) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(cookieName)
		if err != nil || uuid.Validate(clientID) != nil {
			clientID = uuid.NewString()
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(cookieName, clientID, maxAgeDays*24*60*60, "/", "", c.Request.TLS != nil, true)

		ws, err := registry.Get(c.Request.Context(), clientID)
		if err != nil {
			response.Abort(c, http.StatusInternalServerError, response.CodeInternalServer, "open client workspace failed")
			return
		}
		c.Set(ContextWorkspaceKey, ws)
		c.Next()
	}
}

func Workspace(c *gin.Context) *app.Workspace {
	v, ok := c.Get(ContextWorkspaceKey)
	if !ok {
		return nil
	}
	ws, _ := v.(*app.Workspace)
	return ws
}
